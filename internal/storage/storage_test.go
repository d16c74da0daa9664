package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "taskping/pkg/logx"
)

func sampleRecord(id, recipient string, ok bool) DeliveryRecord {
	r := DeliveryRecord{
		At:             time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		NotificationID: id,
		TaskID:         "t1",
		Recipient:      recipient,
		Kind:           "overdue",
		OK:             ok,
		TookMS:         42,
	}
	if !ok {
		r.Error = "gateway status 500"
	}
	return r
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deliveries")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.AppendDelivery(ctx, sampleRecord("n1", "+525512345678", true)); err != nil {
		t.Fatalf("AppendDelivery: %v", err)
	}
	if err := st.AppendDelivery(ctx, sampleRecord("n2", "+5551234567", false)); err != nil {
		t.Fatalf("AppendDelivery: %v", err)
	}

	got, err := st.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// newest first
	if got[0].NotificationID != "n2" || got[1].NotificationID != "n1" {
		t.Fatalf("order = %s, %s", got[0].NotificationID, got[1].NotificationID)
	}
	if got[0].OK || got[0].Error == "" {
		t.Fatalf("failure record mangled: %+v", got[0])
	}
	if !got[1].OK || got[1].Recipient != "+525512345678" {
		t.Fatalf("success record mangled: %+v", got[1])
	}
}

func TestFileStoreLimit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deliveries")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		r := sampleRecord("n", "+525512345678", true)
		r.NotificationID = string(rune('a' + i))
		if err := st.AppendDelivery(ctx, r); err != nil {
			t.Fatalf("AppendDelivery: %v", err)
		}
	}
	got, err := st.RecentDeliveries(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 2 || got[0].NotificationID != "e" || got[1].NotificationID != "d" {
		t.Fatalf("limited read = %+v", got)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deliveries.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.AppendDelivery(ctx, sampleRecord("n1", "+525512345678", true)); err != nil {
		t.Fatalf("AppendDelivery: %v", err)
	}
	if err := st.AppendDelivery(ctx, sampleRecord("n2", "+5551234567", false)); err != nil {
		t.Fatalf("AppendDelivery: %v", err)
	}

	got, err := st.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDeliveries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].NotificationID != "n2" || got[0].OK {
		t.Fatalf("newest record = %+v", got[0])
	}
	if got[1].Kind != "overdue" || got[1].TookMS != 42 {
		t.Fatalf("record fields lost: %+v", got[1])
	}
}
