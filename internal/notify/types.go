package notify

import (
	"time"
)

// Kind classifies why a notification exists.
type Kind string

const (
	KindDueSoon Kind = "due_soon"
	KindOverdue Kind = "overdue"
	KindDaily   Kind = "daily"
	KindCustom  Kind = "custom"
)

// Status of a scheduled notification.
//
// Transitions are monotonic: Pending may move to Sent, Failed or
// Cancelled; the three terminal states never change again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Notification is one scheduled outbound message. Entries are never
// physically deleted; they accumulate in memory for the process
// lifetime (statistics and listing read them back).
type Notification struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	TaskTitle   string    `json:"task_title"`
	Recipients  []string  `json:"recipients"`
	Kind        Kind      `json:"kind"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Message     string    `json:"message"`
	Status      Status    `json:"status"`
}

// Statistics is the scheduler's observable state.
type Statistics struct {
	Pending   int       `json:"pending"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Cancelled int       `json:"cancelled"`
	Running   bool      `json:"running"`
	LastScan  time.Time `json:"last_scan"`
}

// Config controls the scan loop.
type Config struct {
	// ScanInterval between due-notification sweeps. Default 60s.
	ScanInterval time.Duration
	// Location for calendar math (daily reminders fire at 09:00 in this
	// zone). Nil means UTC.
	Location *time.Location
}

const DefaultScanInterval = 60 * time.Second

// Offsets of the reminder kinds relative to "now". Daily is calendar
// math, not an offset; see nextDailyAt.
const (
	dueSoonLead   = time.Hour
	defaultDelay  = 30 * time.Minute
	dailySendHour = 9
)
