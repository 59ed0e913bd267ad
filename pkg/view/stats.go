package view

import (
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// Stats summarises a collection for the dashboard header.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	DueToday  int `json:"dueToday"`
	Overdue   int `json:"overdue"`
}

func Summarize(tasks []model.Task, today time.Time) Stats {
	var s Stats
	for _, t := range tasks {
		s.Total++
		if t.Completed {
			s.Completed++
		} else {
			s.Pending++
		}
		off, ok := DueOffset(t, today)
		if !ok {
			continue
		}
		if off == 0 {
			s.DueToday++
		} else if off < 0 && !t.Completed {
			s.Overdue++
		}
	}
	return s
}

// CompletionRate is the completed share of all tasks, 0 for an empty collection.
func (s Stats) CompletionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}
