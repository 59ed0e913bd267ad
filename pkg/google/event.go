package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/colors"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/view"
	"google.golang.org/api/calendar/v3"
)

// taskIDProperty is the private extended property linking an event back to
// its task.
const taskIDProperty = "taskflow_id"

// EventForTask renders task as an all-day event on its due date. today
// decides whether the task is shown as overdue.
func EventForTask(task model.Task, today time.Time) (*calendar.Event, error) {
	due, err := task.DueIn(today.Location())
	if err != nil {
		return nil, fmt.Errorf("task %s has no usable due date: %w", task.ID, err)
	}
	start := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, today.Location())

	summary := task.Title
	if task.Completed {
		summary = "✓ " + summary
	} else if off, ok := view.DueOffset(task, today); ok && off < 0 {
		summary = "! " + summary
	}

	var desc strings.Builder
	if task.Description != "" {
		desc.WriteString(task.Description)
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Category: %s\n", task.Category)
	fmt.Fprintf(&desc, "Priority: %s\n", task.Priority)
	fmt.Fprintf(&desc, "ID: %s\n", task.ID)

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		ColorId:     colors.ForTask(task),
		Start:       &calendar.EventDateTime{Date: start.Format(time.DateOnly)},
		End:         &calendar.EventDateTime{Date: start.AddDate(0, 0, 1).Format(time.DateOnly)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{taskIDProperty: task.ID},
		},
	}, nil
}

// eventPatch returns the fields of target that differ from existing, or nil
// when the event is already up to date.
func eventPatch(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	if eventDate(existing.Start) != eventDate(target.Start) || eventDate(existing.End) != eventDate(target.End) {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

func eventDate(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.Date != "" {
		return dt.Date
	}
	return dt.DateTime
}
