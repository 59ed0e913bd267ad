package taskwarrior

import (
	"fmt"
	"strings"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

var priorities = map[string]model.Priority{
	"H": model.HIGH,
	"M": model.MEDIUM,
	"L": model.LOW,
}

// ToImported converts a Taskwarrior task. Deleted tasks, recurrence
// templates and tasks with neither a due nor a scheduled date cannot be
// represented and return an error.
func ToImported(t Task) (model.Imported, error) {
	switch t.Status {
	case DELETED:
		return model.Imported{}, fmt.Errorf("task %s is deleted", t.UUID)
	case RECURRING:
		// The template; its pending instances are exported separately.
		return model.Imported{}, fmt.Errorf("task %s is a recurrence template", t.UUID)
	}

	due := t.Due
	if !due.set() {
		due = t.Scheduled
	}
	if !due.set() {
		return model.Imported{}, fmt.Errorf("task %s has no due or scheduled date", t.UUID)
	}

	priority := model.MEDIUM
	if p, ok := priorities[t.Priority]; ok {
		priority = p
	}
	for _, tag := range t.Tags {
		if strings.EqualFold(tag, "urgent") {
			priority = model.URGENT
		}
	}

	notes := make([]string, 0, len(t.Annotations))
	for _, ann := range t.Annotations {
		notes = append(notes, ann.Description)
	}

	return model.Imported{
		Draft: model.Draft{
			Title:       model.Truncate(strings.TrimSpace(t.Description), model.MaxTitleLen),
			Description: model.Truncate(strings.Join(notes, "\n"), model.MaxDescriptionLen),
			DueDate:     due.Time,
			Category:    categoryForProject(t.Project),
			Priority:    priority,
		},
		Completed: t.Status == COMPLETED,
	}, nil
}

// categoryForProject maps the top-level project name onto a category, e.g.
// "work.reports" becomes WORK. Unknown projects land in OTHER.
func categoryForProject(project string) model.Category {
	top, _, _ := strings.Cut(project, ".")
	if c, err := model.ParseCategory(top); err == nil {
		return c
	}
	if project == "" {
		return model.PERSONAL
	}
	return model.OTHER
}
