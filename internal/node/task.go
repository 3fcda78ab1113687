package node

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Task is a provider-defined unit of pending work. The scheduler never
// interprets it; sessions submit it to Path with a signed Message.
type Task struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Path    string `json:"path"`
	Message string `json:"message,omitempty"`
}

// defaultTaskMessage is signed when a task does not define its own message.
const defaultTaskMessage = "I am completing task {id} for {address} at {timestamp}"

// Validate checks that the task can be submitted.
func (t Task) Validate() error {
	var errs []error
	if strings.TrimSpace(t.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if !strings.HasPrefix(t.Path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with /", t.Path))
	}
	return errors.Join(errs...)
}

// Name returns the title when set, the ID otherwise.
func (t Task) Name() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}

// RenderMessage substitutes {id}, {address} and {timestamp} in the message
// template.
func (t Task) RenderMessage(address string, timestamp int64) string {
	msg := t.Message
	if msg == "" {
		msg = defaultTaskMessage
	}
	return strings.NewReplacer(
		"{id}", t.ID,
		"{address}", address,
		"{timestamp}", strconv.FormatInt(timestamp, 10),
	).Replace(msg)
}
