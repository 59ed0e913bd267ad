package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

// ErrInvalidTask is wrapped by every validation failure.
var ErrInvalidTask = errors.New("invalid task")

type Category string

const (
	PERSONAL Category = "PERSONAL"
	WORK     Category = "WORK"
	SHOPPING Category = "SHOPPING"
	HEALTH   Category = "HEALTH"
	OTHER    Category = "OTHER"
)

// Categories lists the closed set of categories in display order.
var Categories = []Category{PERSONAL, WORK, SHOPPING, HEALTH, OTHER}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches case-insensitively against the known categories.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidTask, s)
	}
	return c, nil
}

type Priority string

const (
	URGENT Priority = "URGENT"
	HIGH   Priority = "HIGH"
	MEDIUM Priority = "MEDIUM"
	LOW    Priority = "LOW"
)

// Priorities lists the priorities from most to least pressing.
var Priorities = []Priority{URGENT, HIGH, MEDIUM, LOW}

// Rank orders priorities from URGENT (0) to LOW (3). Anything else ranks 4
// so it sorts after every known priority.
func (p Priority) Rank() int {
	switch p {
	case URGENT:
		return 0
	case HIGH:
		return 1
	case MEDIUM:
		return 2
	case LOW:
		return 3
	default:
		return 4
	}
}

func (p Priority) Valid() bool {
	return p.Rank() < 4
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, s)
	}
	return p, nil
}

// Task is a single to-do item. DueDate and CreatedAt hold ISO-8601 strings
// exactly as persisted; use Due and Created to get parsed times.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`
	CreatedAt   string   `json:"createdAt"`
}

// Draft holds the user-editable fields of a task that has not been added yet.
type Draft struct {
	Title       string
	Description string
	DueDate     time.Time
	Category    Category
	Priority    Priority
}

func (t Task) Due() (time.Time, error) {
	return ParseTime(t.DueDate)
}

// DueIn returns the due time as seen from loc. A bare calendar date names
// the same wall date everywhere, so it is read directly in loc.
func (t Task) DueIn(loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation(time.DateOnly, t.DueDate, loc); err == nil {
		return d, nil
	}
	due, err := t.Due()
	if err != nil {
		return time.Time{}, err
	}
	return due.In(loc), nil
}

// Validate reports whether t can live in a task collection.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	}
	if err := validateText(t.Title, t.Description); err != nil {
		return err
	}
	if t.DueDate == "" {
		return fmt.Errorf("%w: missing due date", ErrInvalidTask)
	}
	if _, err := t.Due(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	return validateEnums(t.Category, t.Priority)
}

// CheckRequired reports whether t has every required field. It is the test
// a restore candidate has to pass: values the views already tolerate, such
// as an unparseable due date or an unknown priority, are let through so a
// record that was in the collection can always go back in.
func (t Task) CheckRequired() error {
	for _, f := range []struct{ name, value string }{
		{"id", t.ID},
		{"title", t.Title},
		{"due date", t.DueDate},
		{"category", string(t.Category)},
		{"priority", string(t.Priority)},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidTask, f.name)
		}
	}
	return nil
}

func (d Draft) Validate() error {
	if err := validateText(d.Title, d.Description); err != nil {
		return err
	}
	if d.DueDate.IsZero() {
		return fmt.Errorf("%w: missing due date", ErrInvalidTask)
	}
	return validateEnums(d.Category, d.Priority)
}

func validateText(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("%w: title must be at most %d characters", ErrInvalidTask, MaxTitleLen)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrInvalidTask, MaxDescriptionLen)
	}
	return nil
}

func validateEnums(c Category, p Priority) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTask, c)
	}
	if !p.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, p)
	}
	return nil
}

// Imported is a task read from another tool, ready to be added.
type Imported struct {
	Draft     Draft
	Completed bool
}

// FilterCategory keeps the imported tasks in the named category. An unknown
// name is an error rather than an empty result.
func FilterCategory(tasks []Imported, name string) ([]Imported, error) {
	c, err := ParseCategory(name)
	if err != nil {
		return nil, err
	}
	filtered := make([]Imported, 0, len(tasks))
	for _, t := range tasks {
		if t.Draft.Category == c {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
