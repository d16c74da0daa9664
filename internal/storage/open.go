package storage

import (
	"context"
	"errors"
	"strings"

	logx "taskping/pkg/logx"
)

// Store is the delivery-log API consumed by the scheduler. It is
// observability only: losing it never affects delivery decisions.
type Store interface {
	AppendDelivery(ctx context.Context, r DeliveryRecord) error
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
