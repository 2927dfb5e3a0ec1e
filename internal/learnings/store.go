// Package learnings persists cross-iteration agent notes for a change.
//
// The file outlives any single orchestrator run on purpose: it is the only
// memory an agent has between iterations, so the store never truncates or
// deletes it.
package learnings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is the temp root used when none is configured.
const DefaultDir = "/tmp/ralphtool"

// Store resolves and maintains learnings files under a fixed root directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, falling back to DefaultDir.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

// Path returns the learnings file path for a change. Pure function of the
// change identity and the configured root.
func (s *Store) Path(change string) string {
	return filepath.Join(s.dir, change+"-learnings.md")
}

// Ensure creates the learnings file with the initial template if it does not
// exist yet. An existing file is left untouched.
func (s *Store) Ensure(change string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create learnings dir: %w", err)
	}
	path := s.Path(change)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("create learnings file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(template(change)); err != nil {
		return fmt.Errorf("write learnings template: %w", err)
	}
	return nil
}

// Read returns the file content and true when it holds anything beyond the
// initial template. A template-only file reads as empty. The comparison is
// content-based so incidental whitespace differences do not count as notes.
func (s *Store) Read(change string) (string, bool, error) {
	data, err := os.ReadFile(s.Path(change))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read learnings file: %w", err)
	}
	content := string(data)
	if normalize(content) == normalize(template(change)) {
		return "", false, nil
	}
	return content, true, nil
}

func template(change string) string {
	return fmt.Sprintf(`# Learnings — %s

<!-- Append discoveries, decisions and pitfalls below. One bullet per note.
     This file is shared across iterations; do not rewrite earlier entries. -->
`, change)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
