package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the delivery log.
//
// Driver values:
//   - "file": append-only JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", the log is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryRecord is one send attempt (or a rate-limited skip).
// Keep it compact and schema-stable.
type DeliveryRecord struct {
	At             time.Time `json:"at"`
	NotificationID string    `json:"notification_id"`
	TaskID         string    `json:"task_id,omitempty"`
	Recipient      string    `json:"recipient"`
	Kind           string    `json:"kind"`
	OK             bool      `json:"ok"`
	Error          string    `json:"error,omitempty"`
	TookMS         int64     `json:"took_ms"`
}
