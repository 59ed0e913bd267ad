package orgmode

import (
	"bufio"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/harrisonrobin/taskflow/pkg/model"
)

var (
	headlineRegex = regexp.MustCompile(`^\*+\s+(TODO|DONE)\s+(?:\[#([A-Z])\]\s*)?(.*?)(?:\s+:([\w@:]+):)?\s*$`)
	deadlineRegex = regexp.MustCompile(`(DEADLINE|SCHEDULED):\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?(?:\s+(\d{2}:\d{2}))?[^>]*>`)
	otherHeading  = regexp.MustCompile(`^\*+\s`)
)

var orgPriorities = map[string]model.Priority{
	"A": model.HIGH,
	"B": model.MEDIUM,
	"C": model.LOW,
}

// entry is a headline being collected until the next heading.
type entry struct {
	title     string
	priority  model.Priority
	tags      []string
	done      bool
	deadline  time.Time
	scheduled time.Time
	body      []string
	inDrawer  bool
}

// ParseFiles parses every file and concatenates the results.
func ParseFiles(filePaths []string) ([]model.Imported, error) {
	var all []model.Imported
	for _, path := range filePaths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		tasks, err := Parse(f, path)
		f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// Parse reads TODO and DONE headlines. A headline becomes a task when it
// carries a DEADLINE (or, failing that, a SCHEDULED) date; others are
// skipped with a log line.
func Parse(r io.Reader, source string) ([]model.Imported, error) {
	scanner := bufio.NewScanner(r)
	var tasks []model.Imported
	var current *entry

	flush := func() {
		if current == nil {
			return
		}
		if imp, ok := current.imported(); ok {
			tasks = append(tasks, imp)
		} else {
			log.Printf("Skipping %s entry %q: no DEADLINE or SCHEDULED date", source, current.title)
		}
		current = nil
	}

	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if m := headlineRegex.FindStringSubmatch(raw); m != nil {
			flush()
			current = &entry{title: strings.TrimSpace(m[3]), done: m[1] == "DONE", priority: model.MEDIUM}
			if p, ok := orgPriorities[m[2]]; ok {
				current.priority = p
			}
			if m[4] != "" {
				current.tags = strings.Split(m[4], ":")
			}
			continue
		}
		if otherHeading.MatchString(raw) {
			flush()
			continue
		}
		if current == nil {
			continue
		}

		if matches := deadlineRegex.FindAllStringSubmatch(line, -1); len(matches) > 0 {
			for _, m := range matches {
				ts := parseOrgTime(m[2], m[3])
				if m[1] == "DEADLINE" {
					current.deadline = ts
				} else {
					current.scheduled = ts
				}
			}
			continue
		}
		switch {
		case line == ":PROPERTIES:" || line == ":LOGBOOK:":
			current.inDrawer = true
		case line == ":END:":
			current.inDrawer = false
		case !current.inDrawer && line != "":
			current.body = append(current.body, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func parseOrgTime(date, clock string) time.Time {
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (e *entry) imported() (model.Imported, bool) {
	due := e.deadline
	if due.IsZero() {
		due = e.scheduled
	}
	if due.IsZero() || e.title == "" {
		return model.Imported{}, false
	}

	category := model.PERSONAL
	priority := e.priority
	for _, tag := range e.tags {
		if strings.EqualFold(tag, "urgent") {
			priority = model.URGENT
			continue
		}
		if c, err := model.ParseCategory(tag); err == nil {
			category = c
		}
	}

	return model.Imported{
		Draft: model.Draft{
			Title:       model.Truncate(e.title, model.MaxTitleLen),
			Description: model.Truncate(strings.Join(e.body, "\n"), model.MaxDescriptionLen),
			DueDate:     due,
			Category:    category,
			Priority:    priority,
		},
		Completed: e.done,
	}, true
}
