// Package task parses the tasks document of a change into stories and tasks.
package task

// Task is an atomic, checkbox-tracked unit of work within a story.
type Task struct {
	ID          string // dotted key, e.g. "1.2"
	Description string
	Done        bool
}

// Story is a top-level unit of work derived from a document heading.
type Story struct {
	ID    string // document-order key, e.g. "1"
	Title string
	Tasks []Task
}

// Done reports whether every task of the story is complete.
func (s Story) Done() bool {
	for _, t := range s.Tasks {
		if !t.Done {
			return false
		}
	}
	return true
}

// Document is the parsed task hierarchy. It is rebuilt from the source text
// on every read; the document on disk stays the single source of truth.
type Document struct {
	Stories []Story
}

// NextTask returns the first incomplete task in document order.
func (d Document) NextTask() (Task, bool) {
	for _, s := range d.Stories {
		for _, t := range s.Tasks {
			if !t.Done {
				return t, true
			}
		}
	}
	return Task{}, false
}

// NextStory returns the story owning the next incomplete task.
func (d Document) NextStory() (Story, bool) {
	for _, s := range d.Stories {
		if !s.Done() {
			return s, true
		}
	}
	return Story{}, false
}

// Story returns the story with the given identifier.
func (d Document) Story(id string) (Story, bool) {
	for _, s := range d.Stories {
		if s.ID == id {
			return s, true
		}
	}
	return Story{}, false
}

// Progress returns completed and total story counts.
func (d Document) Progress() (completed, total int) {
	total = len(d.Stories)
	for _, s := range d.Stories {
		if s.Done() {
			completed++
		}
	}
	return completed, total
}

// TaskTotals returns completed and total task counts across all stories.
func (d Document) TaskTotals() (completed, total int) {
	for _, s := range d.Stories {
		for _, t := range s.Tasks {
			total++
			if t.Done {
				completed++
			}
		}
	}
	return completed, total
}
