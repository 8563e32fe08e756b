package models

import (
	"testing"
	"time"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"processing to chunking_complete", StatusProcessing, StatusChunkingComplete, false},
		{"chunking_complete to embedding", StatusChunkingComplete, StatusEmbedding, false},
		{"embedding to completed", StatusEmbedding, StatusCompleted, false},
		{"processing to error", StatusProcessing, StatusError, false},
		{"embedding to error", StatusEmbedding, StatusError, false},
		{"skip forward allowed", StatusProcessing, StatusCompleted, false},
		{"no regression", StatusEmbedding, StatusProcessing, true},
		{"no self transition", StatusEmbedding, StatusEmbedding, true},
		{"completed is terminal", StatusCompleted, StatusError, true},
		{"error is terminal", StatusError, StatusProcessing, true},
		{"unknown target", StatusProcessing, Status("bogus"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.from.CanTransition(tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("CanTransition(%s -> %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusError.Terminal() {
		t.Error("completed and error should be terminal")
	}
	if StatusProcessing.Terminal() || StatusEmbedding.Terminal() {
		t.Error("in-flight states should not be terminal")
	}
}

func TestDocumentMetadata_Stale(t *testing.T) {
	now := time.Now()
	m := &DocumentMetadata{Status: StatusEmbedding, UpdatedAt: now.Add(-10 * time.Minute)}
	if !m.Stale(now, 5*time.Minute) {
		t.Error("old in-flight record should be stale")
	}
	m.UpdatedAt = now.Add(-1 * time.Minute)
	if m.Stale(now, 5*time.Minute) {
		t.Error("fresh record should not be stale")
	}
	m.Status = StatusCompleted
	m.UpdatedAt = now.Add(-time.Hour)
	if m.Stale(now, 5*time.Minute) {
		t.Error("terminal record is never stale")
	}
}
