package change

import (
	"os"
	"path/filepath"
)

type ecosystem struct {
	marker string
	cmds   VerifyCommands
}

// Checked in order; at most one ecosystem is assumed active per project.
var ecosystems = []ecosystem{
	{"Cargo.toml", VerifyCommands{Check: "cargo check", Lint: "cargo clippy", Test: "cargo test"}},
	{"package.json", VerifyCommands{Lint: "npm run lint", Test: "npm test"}},
	{"go.mod", VerifyCommands{Check: "go build ./...", Lint: "go vet ./...", Test: "go test ./..."}},
	{"pyproject.toml", VerifyCommands{Lint: "ruff check .", Test: "pytest"}},
	{"Makefile", VerifyCommands{Test: "make test"}},
}

// InferVerifyCommands maps the first recognized ecosystem marker file in the
// project root to its verification commands. No marker yields the empty set.
func InferVerifyCommands(projectRoot string) VerifyCommands {
	for _, eco := range ecosystems {
		if _, err := os.Stat(filepath.Join(projectRoot, eco.marker)); err == nil {
			return eco.cmds
		}
	}
	return VerifyCommands{}
}
