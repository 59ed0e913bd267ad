package taskwarrior

import (
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
)

type Client struct{}

func NewClient() *Client {
	return &Client{}
}

// GetTasks runs `task <filter> export` with hooks disabled.
func (c *Client) GetTasks(filter []string) ([]Task, error) {
	args := append(filter, "export", "rc.hooks=0")
	cmd := exec.Command("task", args...)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}

	var tasks []Task
	if err := json.Unmarshal(output, &tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
	}
	return tasks, nil
}

// ParseTasks reads a `task export` document: either one JSON array or a
// stream of JSON objects, one per line.
func (c *Client) ParseTasks(r io.Reader) ([]Task, error) {
	var tasks []Task
	decoder := json.NewDecoder(r)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		if len(raw) > 0 && raw[0] == '[' {
			var batch []Task
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, fmt.Errorf("failed to decode task json: %w", err)
			}
			tasks = append(tasks, batch...)
			continue
		}
		var task Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
