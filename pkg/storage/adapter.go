package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

// Adapter moves the whole task collection in and out of a Slot as a JSON
// array.
type Adapter struct {
	slot   Slot
	seed   func() []model.Task
	logger *log.Logger
}

// NewAdapter wires slot to a seed used whenever there is nothing usable in
// the slot. A nil logger means log.Default().
func NewAdapter(slot Slot, seed func() []model.Task, logger *log.Logger) *Adapter {
	if seed == nil {
		seed = func() []model.Task { return []model.Task{} }
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{slot: slot, seed: seed, logger: logger}
}

// Load returns the stored collection. It never fails: an empty slot yields
// the seed, unreadable or corrupt data is logged and also yields the seed.
func (a *Adapter) Load(ctx context.Context) []model.Task {
	tasks, err := a.read(ctx)
	if err == nil {
		return tasks
	}
	if !errors.Is(err, ErrEmpty) {
		a.logger.Printf("Error loading tasks from %s: %v", Key, err)
	}
	return a.seed()
}

func (a *Adapter) read(ctx context.Context) ([]model.Task, error) {
	data, err := a.slot.Read(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return a.dedupe(tasks), nil
}

// Save overwrites the slot with the full collection. On error the slot
// still holds whatever it held before.
func (a *Adapter) Save(ctx context.Context, tasks []model.Task) error {
	data, err := Encode(tasks)
	if err != nil {
		return err
	}
	if err := a.slot.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", Key, err)
	}
	return nil
}

func (a *Adapter) dedupe(tasks []model.Task) []model.Task {
	seen := make(map[string]bool, len(tasks))
	out := tasks[:0]
	for _, t := range tasks {
		if seen[t.ID] {
			a.logger.Printf("Warning: dropping stored task with duplicate id %q", t.ID)
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// Encode renders tasks in the persisted representation. A nil slice is
// written as [] rather than null.
func Encode(tasks []model.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tasks: %w", err)
	}
	return data, nil
}

func Decode(data []byte) ([]model.Task, error) {
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	if tasks == nil {
		return nil, errors.New("failed to decode tasks: stored value is null")
	}
	return tasks, nil
}

// Seed returns the welcome collection shown on first run. The result only
// depends on now.
func Seed(now time.Time) []model.Task {
	day := func(offset int) string {
		y, m, d := now.Date()
		return model.FormatTime(time.Date(y, m, d+offset, 12, 0, 0, 0, now.Location()))
	}
	created := model.FormatTime(now)
	return []model.Task{
		{
			ID:          "seed-1",
			Title:       "Welcome to TaskFlow",
			Description: "Mark this task complete to see it move to the Completed tab.",
			DueDate:     day(0),
			Category:    model.PERSONAL,
			Priority:    model.HIGH,
			CreatedAt:   created,
		},
		{
			ID:          "seed-2",
			Title:       "Plan the week",
			Description: "Add the tasks you need to get done in the next few days.",
			DueDate:     day(1),
			Category:    model.WORK,
			Priority:    model.MEDIUM,
			CreatedAt:   created,
		},
		{
			ID:          "seed-3",
			Title:       "Groceries",
			Description: "Milk, eggs, bread",
			DueDate:     day(3),
			Category:    model.SHOPPING,
			Priority:    model.LOW,
			CreatedAt:   created,
		},
	}
}

// SeedFunc adapts Seed to the Adapter's seed hook.
func SeedFunc(clock func() time.Time) func() []model.Task {
	return func() []model.Task { return Seed(clock()) }
}
