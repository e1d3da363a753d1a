package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/echohue/internal/db"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestLedger_AppendAndQuery(t *testing.T) {
	l := openLedger(t)

	if err := l.AppendForLight(EventLightCommand, "http", 1, map[string]any{"bri": 200}); err != nil {
		t.Fatalf("AppendForLight: %v", err)
	}
	if err := l.AppendForLight(EventLightCommand, "http", 2, nil); err != nil {
		t.Fatalf("AppendForLight: %v", err)
	}
	if err := l.Append(EventDiscoveryReply, "10.0.0.5:50000", map[string]any{"st": "upnp:rootdevice"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	commands, err := l.GetByType(EventLightCommand, 10)
	if err != nil {
		t.Fatalf("GetByType: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("got %d light commands, want 2", len(commands))
	}
	// Newest first.
	if commands[0].Light != 2 || commands[0].Payload != nil {
		t.Errorf("newest command = %+v", commands[0])
	}
	if commands[1].Payload["bri"] != float64(200) {
		t.Errorf("payload bri = %v, want 200", commands[1].Payload["bri"])
	}

	replies, err := l.GetByType(EventDiscoveryReply, 10)
	if err != nil {
		t.Fatalf("GetByType: %v", err)
	}
	if len(replies) != 1 || replies[0].Light != NoLight || replies[0].Source != "10.0.0.5:50000" {
		t.Errorf("replies = %+v", replies)
	}

	byLight, err := l.GetByLight(1, 10)
	if err != nil {
		t.Fatalf("GetByLight: %v", err)
	}
	if len(byLight) != 1 {
		t.Errorf("light 1 entries = %d, want 1", len(byLight))
	}
}

func TestLedger_TimeRangeAndRetention(t *testing.T) {
	l := openLedger(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		age time.Duration
	}{
		{age: 0},
		{age: 2 * 24 * time.Hour},
		{age: 40 * 24 * time.Hour},
	}
	for _, tt := range tests {
		at := base.Add(-tt.age)
		l.now = func() time.Time { return at }
		if err := l.Append(EventDiscoveryReply, "x", nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	l.now = func() time.Time { return base }

	recent, err := l.GetByTimeRange(base.Add(-7*24*time.Hour), base, 10)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("recent = %d entries, want 2", len(recent))
	}

	deleted, err := l.DeleteOlderThan(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	all, err := l.GetByType(EventDiscoveryReply, 10)
	if err != nil {
		t.Fatalf("GetByType: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("remaining = %d, want 2", len(all))
	}
}
