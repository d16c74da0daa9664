package upstream

import (
	"strconv"
	"time"
)

// Task is the subset of the upstream task model this subsystem reads.
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	// DueDate is the upstream wire form: epoch milliseconds as a string.
	DueDate  string    `json:"due_date,omitempty"`
	Assignee *Assignee `json:"assignee,omitempty"`
}

type Assignee struct {
	Username string `json:"username"`
}

// DueTime decodes DueDate. The upstream sends epoch milliseconds; ISO
// strings are accepted as a fallback.
func (t Task) DueTime() (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(t.DueDate, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	if ts, err := time.Parse(time.RFC3339, t.DueDate); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// Webhook is a push-subscription registration on the upstream API.
// Read-only after creation except for explicit deletion.
type Webhook struct {
	ID       string   `json:"id"`
	Endpoint string   `json:"endpoint"`
	Events   []string `json:"events"`
	SpaceID  string   `json:"space_id"`
	Status   string   `json:"status,omitempty"`
}

// Event names of the fixed subscription set.
const (
	EventTaskCreated   = "taskCreated"
	EventTaskUpdated   = "taskUpdated"
	EventTaskCompleted = "taskCompleted"
	EventTaskDeleted   = "taskDeleted"
)

// DefaultEvents is the subscription set the coordinator always registers.
func DefaultEvents() []string {
	return []string{EventTaskCreated, EventTaskUpdated, EventTaskCompleted, EventTaskDeleted}
}
