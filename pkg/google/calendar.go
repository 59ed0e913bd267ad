package google

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/index"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// CalendarClient mirrors tasks into one Google Calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
}

func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx}
}

// SyncEvent creates the event for task or patches the existing one.
func (c *CalendarClient) SyncEvent(ctx context.Context, task model.Task, today time.Time) (*calendar.Event, error) {
	event, err := EventForTask(task, today)
	if err != nil {
		return nil, err
	}

	existing, err := c.findEvent(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("error searching for event: %w", err)
	}

	if existing != nil {
		patch := eventPatch(existing, event)
		if patch == nil {
			c.remember(task.ID, existing.Id)
			return existing, nil
		}
		updated, err := c.srv.Events.Patch(c.calendarID, existing.Id, patch).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		c.remember(task.ID, updated.Id)
		return updated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	c.remember(task.ID, created.Id)
	return created, nil
}

// RemoveEvent deletes the event mirroring taskID, if there is one.
func (c *CalendarClient) RemoveEvent(ctx context.Context, taskID string) (bool, error) {
	existing, err := c.findEvent(ctx, taskID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		c.forget(taskID)
		return false, nil
	}
	if err := c.srv.Events.Delete(c.calendarID, existing.Id).Context(ctx).Do(); err != nil {
		return false, err
	}
	c.forget(taskID)
	return true, nil
}

// MirrorReport counts what Mirror did.
type MirrorReport struct {
	Synced  int
	Removed int
	Failed  int
}

// Mirror brings the calendar in line with tasks: open tasks get an event,
// completed tasks and tasks no longer in the collection lose theirs.
// Individual failures are logged and counted; the run carries on.
func (c *CalendarClient) Mirror(ctx context.Context, tasks []model.Task, today time.Time) MirrorReport {
	var report MirrorReport
	live := make(map[string]bool, len(tasks))

	for _, task := range tasks {
		live[task.ID] = true
		if task.Completed {
			if c.index == nil || c.index.Get(task.ID) == "" {
				continue
			}
			c.removeCounted(ctx, task.ID, &report)
			continue
		}
		if _, err := c.SyncEvent(ctx, task, today); err != nil {
			log.Printf("Error syncing task %s: %v", task.ID, err)
			report.Failed++
			continue
		}
		report.Synced++
	}

	if c.index != nil {
		for _, id := range c.index.TaskIDs() {
			if !live[id] {
				c.removeCounted(ctx, id, &report)
			}
		}
	}
	return report
}

func (c *CalendarClient) removeCounted(ctx context.Context, taskID string, report *MirrorReport) {
	removed, err := c.RemoveEvent(ctx, taskID)
	if err != nil {
		log.Printf("Error removing event for task %s: %v", taskID, err)
		report.Failed++
		return
	}
	if removed {
		report.Removed++
	}
}

// findEvent looks in the local index first and falls back to searching the
// calendar by extended property.
func (c *CalendarClient) findEvent(ctx context.Context, taskID string) (*calendar.Event, error) {
	if c.index != nil {
		if eventID := c.index.Get(taskID); eventID != "" {
			event, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && event.Status != "cancelled" {
				return event, nil
			}
		}
	}
	return c.GetEventByTaskID(ctx, taskID)
}

// GetEventByTaskID searches for the event carrying taskID in its private
// extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", taskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

func (c *CalendarClient) remember(taskID, eventID string) {
	if c.index != nil {
		c.index.Set(taskID, eventID)
	}
}

func (c *CalendarClient) forget(taskID string) {
	if c.index != nil {
		c.index.Remove(taskID)
	}
}
