package colors

import "github.com/harrisonrobin/taskflow/pkg/model"

// Google Calendar event colour ids.
const (
	Lavender  = "1"
	Sage      = "2"
	Grape     = "3"
	Flamingo  = "4"
	Banana    = "5"
	Tangerine = "6"
	Peacock   = "7"
	Graphite  = "8"
	Blueberry = "9"
	Basil     = "10"
	Tomato    = "11"
)

var byCategory = map[model.Category]string{
	model.PERSONAL: Peacock,
	model.WORK:     Blueberry,
	model.SHOPPING: Banana,
	model.HEALTH:   Basil,
	model.OTHER:    Lavender,
}

// ForCategory returns the colour a category is shown with, Graphite for
// anything unknown.
func ForCategory(c model.Category) string {
	if id, ok := byCategory[c]; ok {
		return id
	}
	return Graphite
}

// ForTask picks the event colour for a task. Urgent open tasks stand out in
// Tomato regardless of category.
func ForTask(t model.Task) string {
	if t.Completed {
		return Graphite
	}
	if t.Priority == model.URGENT {
		return Tomato
	}
	return ForCategory(t.Category)
}
