package atomicstore

import (
	"path/filepath"
	"testing"
)

func TestEventLogAppendAndTail(t *testing.T) {
	log := NewEventLog(filepath.Join(t.TempDir(), "sessions.jsonl"))

	for i := 0; i < 5; i++ {
		if err := log.Append("session_start", "sid-1", map[string]interface{}{"n": i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	all, err := log.Tail(0)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d events, want 5", len(all))
	}
	if all[0].Type != "session_start" || all[0].SessionID != "sid-1" {
		t.Fatalf("unexpected event shape: %+v", all[0])
	}

	last2, err := log.Tail(2)
	if err != nil {
		t.Fatalf("Tail(2): %v", err)
	}
	if len(last2) != 2 {
		t.Fatalf("got %d, want 2", len(last2))
	}
	if last2[0].Fields["n"].(float64) != 3 {
		t.Fatalf("expected tail to keep the most recent entries, got %+v", last2)
	}
}
