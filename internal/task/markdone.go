package task

import (
	"regexp"
	"strings"
)

var checkboxRe = regexp.MustCompile(`^(\s*-\s+\[)( )(\]\s+)(\d+(?:\.\d+)+)(\s+.*)$`)

// MarkStoryDone rewrites the tasks document text with every task of the
// story checked off. Only checkbox markers change; all other bytes are
// preserved. Idempotent: a fully checked story yields changed=false.
func MarkStoryDone(text, storyID string) (updated string, changed bool) {
	lines := strings.Split(text, "\n")
	prefix := storyID + "."
	for i, line := range lines {
		m := checkboxRe.FindStringSubmatch(line)
		if m == nil || !strings.HasPrefix(m[4], prefix) {
			continue
		}
		lines[i] = m[1] + "x" + m[3] + m[4] + m[5]
		changed = true
	}
	return strings.Join(lines, "\n"), changed
}
