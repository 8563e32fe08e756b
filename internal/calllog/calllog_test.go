package calllog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kotaehq/kotae/internal/kvstore"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	store, err := kvstore.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewLog(store)
}

func TestCalls_NewestFirst(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	for _, q := range []string{"first", "second", "third"} {
		if err := l.RecordCall(ctx, q, "answer to "+q, "llm"); err != nil {
			t.Fatalf("RecordCall: %v", err)
		}
	}

	records, err := l.Calls(ctx, 0)
	if err != nil {
		t.Fatalf("Calls: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].Query != "third" || records[2].Query != "first" {
		t.Errorf("order wrong: %+v", records)
	}
	if records[0].Source != "llm" || records[0].Timestamp.IsZero() {
		t.Errorf("record = %+v", records[0])
	}
}

func TestCalls_Limit(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.RecordCall(ctx, "q", "a", "cache"); err != nil {
			t.Fatal(err)
		}
	}
	records, err := l.Calls(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("limit 2 returned %d records", len(records))
	}
}

func TestFeedback(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	if err := l.RecordFeedback(ctx, "", 0, "too low"); err == nil {
		t.Error("rating 0 should be rejected")
	}
	if err := l.RecordFeedback(ctx, "", 6, "too high"); err == nil {
		t.Error("rating 6 should be rejected")
	}

	if err := l.RecordFeedback(ctx, "q-1", 4, "helpful"); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if err := l.RecordFeedback(ctx, "q-2", 1, ""); err != nil {
		t.Fatal(err)
	}

	records, err := l.Feedback(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].QueryID != "q-2" || records[1].Rating != 4 {
		t.Errorf("records = %+v", records)
	}
}

func TestLogsAreIndependent(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	if err := l.RecordCall(ctx, "q", "a", "llm"); err != nil {
		t.Fatal(err)
	}
	feedback, err := l.Feedback(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(feedback) != 0 {
		t.Errorf("call record leaked into feedback log: %+v", feedback)
	}
}
