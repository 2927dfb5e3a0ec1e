package task

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedDocument reports a structural violation in the tasks document.
var ErrMalformedDocument = errors.New("malformed tasks document")

var (
	storyRe = regexp.MustCompile(`^##\s+(\d+)\.\s+(.+?)\s*$`)
	taskRe  = regexp.MustCompile(`^\s*-\s+\[( |x|X)\]\s+(\d+(?:\.\d+)+)\s+(.+?)\s*$`)
)

// Parse builds the story/task tree from the raw tasks document text.
//
// A `## <n>. <title>` heading opens a story. A `- [ ] <n>.<m> <description>`
// line is a task owned by the most recently opened story whose identifier
// prefixes the task's dotted identifier. Prose lines are ignored. The only
// structural violation is a task line before any story heading.
func Parse(text string) (Document, error) {
	var doc Document
	for i, line := range strings.Split(text, "\n") {
		if m := storyRe.FindStringSubmatch(line); m != nil {
			doc.Stories = append(doc.Stories, Story{ID: m[1], Title: m[2]})
			continue
		}
		m := taskRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if len(doc.Stories) == 0 {
			return Document{}, fmt.Errorf("line %d: task %s before any story: %w", i+1, m[2], ErrMalformedDocument)
		}
		t := Task{
			ID:          m[2],
			Description: m[3],
			Done:        m[1] == "x" || m[1] == "X",
		}
		owner := ownerIndex(doc.Stories, t.ID)
		if owner < 0 {
			// No story prefixes this id; treat the line as prose.
			continue
		}
		doc.Stories[owner].Tasks = append(doc.Stories[owner].Tasks, t)
	}
	return doc, nil
}

func ownerIndex(stories []Story, taskID string) int {
	for i := len(stories) - 1; i >= 0; i-- {
		if strings.HasPrefix(taskID, stories[i].ID+".") {
			return i
		}
	}
	return -1
}
