// Package view derives the ordered, filtered task lists shown to the user.
//
// Every function here is pure: it takes a snapshot of the collection plus the
// reference day and returns a fresh slice. Inputs are never reordered or
// modified.
package view

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

type Kind string

const (
	KindAll       Kind = "all"
	KindToday     Kind = "today"
	KindUpcoming  Kind = "upcoming"
	KindCompleted Kind = "completed"
)

var Kinds = []Kind{KindAll, KindToday, KindUpcoming, KindCompleted}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown view %q (want all, today, upcoming or completed)", s)
}

// farFuture is the sort key of tasks whose due date cannot be parsed.
const farFuture = math.MaxInt

const secondsPerDay = 24 * 60 * 60

// DueOffset returns the number of calendar days between today and the task's
// due date, both taken at midnight in today's location. ok is false when the
// due date is missing or unparseable.
func DueOffset(task model.Task, today time.Time) (offset int, ok bool) {
	due, err := task.DueIn(today.Location())
	if err != nil {
		return 0, false
	}
	return dayNumber(due) - dayNumber(today), true
}

// dayNumber maps the wall-clock date of t to a day count so that DST
// transitions never produce fractional days.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// Sort orders tasks by due-date offset, then priority rank. Equal keys keep
// their relative order.
func Sort(tasks []model.Task, today time.Time) []model.Task {
	type keyed struct {
		task   model.Task
		offset int
		rank   int
	}
	ks := make([]keyed, len(tasks))
	for i, t := range tasks {
		off, ok := DueOffset(t, today)
		if !ok {
			off = farFuture
		}
		ks[i] = keyed{task: t, offset: off, rank: t.Priority.Rank()}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].offset != ks[j].offset {
			return ks[i].offset < ks[j].offset
		}
		return ks[i].rank < ks[j].rank
	})

	out := make([]model.Task, len(ks))
	for i, k := range ks {
		out[i] = k.task
	}
	return out
}

func All(tasks []model.Task, today time.Time) []model.Task {
	return Sort(tasks, today)
}

// Today returns tasks due today, completed or not.
func Today(tasks []model.Task, today time.Time) []model.Task {
	return Sort(filter(tasks, func(t model.Task) bool {
		off, ok := DueOffset(t, today)
		return ok && off == 0
	}), today)
}

// Upcoming returns open tasks due after today. Completed future tasks are
// left out.
func Upcoming(tasks []model.Task, today time.Time) []model.Task {
	return Sort(filter(tasks, func(t model.Task) bool {
		if t.Completed {
			return false
		}
		off, ok := DueOffset(t, today)
		return ok && off > 0
	}), today)
}

func Completed(tasks []model.Task, today time.Time) []model.Task {
	return Sort(filter(tasks, func(t model.Task) bool {
		return t.Completed
	}), today)
}

// Overdue returns open tasks whose due day is already behind us.
func Overdue(tasks []model.Task, today time.Time) []model.Task {
	return Sort(filter(tasks, func(t model.Task) bool {
		if t.Completed {
			return false
		}
		off, ok := DueOffset(t, today)
		return ok && off < 0
	}), today)
}

// Of dispatches to the view named by kind. Unknown kinds fall back to All.
func Of(kind Kind, tasks []model.Task, today time.Time) []model.Task {
	switch kind {
	case KindToday:
		return Today(tasks, today)
	case KindUpcoming:
		return Upcoming(tasks, today)
	case KindCompleted:
		return Completed(tasks, today)
	default:
		return All(tasks, today)
	}
}

func filter(tasks []model.Task, keep func(model.Task) bool) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
