package change

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var scenarioRe = regexp.MustCompile(`^####\s+Scenario:\s+(.+?)\s*$`)

// loadScenarios collects every "#### Scenario:" block from the markdown
// files under the change's specs directory. A missing directory is fine.
func loadScenarios(changeDir string) ([]Scenario, error) {
	specsDir := filepath.Join(changeDir, "specs")
	if _, err := os.Stat(specsDir); os.IsNotExist(err) {
		return nil, nil
	}

	var scenarios []Scenario
	err := filepath.WalkDir(specsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read spec %s: %w", path, err)
		}
		rel, err := filepath.Rel(changeDir, path)
		if err != nil {
			rel = path
		}
		scenarios = append(scenarios, parseScenarios(string(data), rel)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk specs: %w", err)
	}
	return scenarios, nil
}

func parseScenarios(text, source string) []Scenario {
	var out []Scenario
	var current *Scenario
	for _, line := range strings.Split(text, "\n") {
		if m := scenarioRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				out = append(out, *current)
			}
			current = &Scenario{Name: m[1], Source: source}
			continue
		}
		if strings.HasPrefix(line, "#") {
			if current != nil {
				out = append(out, *current)
				current = nil
			}
			continue
		}
		if current == nil {
			continue
		}
		step := strings.TrimSpace(line)
		if step == "" {
			continue
		}
		current.Steps = append(current.Steps, strings.TrimPrefix(step, "- "))
	}
	if current != nil {
		out = append(out, *current)
	}
	return out
}
