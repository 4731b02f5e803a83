package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestHistory(t *testing.T) *History {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "operations.db")
	h, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRecordAndRecent(t *testing.T) {
	h := setupTestHistory(t)
	ctx := context.Background()

	errMsg := "vercel API request failed: 403 - forbidden"
	records := []*OperationRecord{
		{Method: "set_env", Resource: "prj_1", Status: "ok", DurationMS: 41.5,
			CreatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)},
		{Method: "redeploy", Resource: "dpl_1", Status: "error", ErrorMessage: &errMsg,
			CreatedAt: time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC)},
	}
	for _, r := range records {
		if _, err := h.Record(ctx, r); err != nil {
			t.Fatalf("Failed to record operation: %v", err)
		}
	}

	recent, err := h.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to query recent operations: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}

	// Newest first.
	if recent[0].Method != "redeploy" || recent[1].Method != "set_env" {
		t.Errorf("Unexpected order: %q then %q", recent[0].Method, recent[1].Method)
	}
	if recent[0].ErrorMessage == nil || *recent[0].ErrorMessage != errMsg {
		t.Errorf("ErrorMessage = %v, want %q", recent[0].ErrorMessage, errMsg)
	}
	if recent[1].DurationMS != 41.5 {
		t.Errorf("DurationMS = %v, want 41.5", recent[1].DurationMS)
	}
}

func TestRecordDefaultsCreatedAt(t *testing.T) {
	h := setupTestHistory(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	if _, err := h.Record(ctx, &OperationRecord{Method: "redeploy", Resource: "dpl_1", Status: "ok"}); err != nil {
		t.Fatalf("Failed to record operation: %v", err)
	}

	recent, err := h.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to query recent operations: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
	if recent[0].CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want a fresh timestamp", recent[0].CreatedAt)
	}
}

func TestRecentLimit(t *testing.T) {
	h := setupTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := h.Record(ctx, &OperationRecord{Method: "set_env", Resource: "prj_1", Status: "ok"}); err != nil {
			t.Fatalf("Failed to record operation: %v", err)
		}
	}

	recent, err := h.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to query recent operations: %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("len(recent) = %d, want 3", len(recent))
	}
}
