// Package calllog persists the append-only call and feedback logs.
package calllog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kotaehq/kotae/internal/kvstore"
	"github.com/kotaehq/kotae/internal/models"
)

const (
	callsKey    = "call_logs"
	feedbackKey = "feedback_logs"
)

// Log records executed queries and user feedback. Both logs are append-only
// and read newest first.
type Log struct {
	store kvstore.Store
	now   func() time.Time
}

// NewLog creates a call log over the given store.
func NewLog(store kvstore.Store) *Log {
	return &Log{store: store, now: time.Now}
}

// RecordCall appends one executed query to the call log. Source names where
// the response came from, e.g. "cache" or "llm".
func (l *Log) RecordCall(ctx context.Context, query, response, source string) error {
	rec := models.CallRecord{
		Timestamp: l.now().UTC(),
		Query:     query,
		Response:  response,
		Source:    source,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}
	if err := l.store.ListPush(ctx, callsKey, string(data)); err != nil {
		return fmt.Errorf("append call record: %w", err)
	}
	return nil
}

// Calls returns up to limit call records, newest first. limit <= 0 returns all.
func (l *Log) Calls(ctx context.Context, limit int) ([]models.CallRecord, error) {
	stop := limit - 1
	if limit <= 0 {
		stop = -1
	}
	raw, err := l.store.ListRange(ctx, callsKey, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("read call log: %w", err)
	}
	records := make([]models.CallRecord, 0, len(raw))
	for _, data := range raw {
		var rec models.CallRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode call record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// RecordFeedback appends one feedback entry. Rating must be in [1, 5].
func (l *Log) RecordFeedback(ctx context.Context, queryID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %d out of range [1, 5]", rating)
	}
	rec := models.FeedbackRecord{
		Timestamp: l.now().UTC(),
		QueryID:   queryID,
		Rating:    rating,
		Comment:   comment,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal feedback record: %w", err)
	}
	if err := l.store.ListPush(ctx, feedbackKey, string(data)); err != nil {
		return fmt.Errorf("append feedback record: %w", err)
	}
	return nil
}

// Feedback returns up to limit feedback records, newest first. limit <= 0
// returns all.
func (l *Log) Feedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error) {
	stop := limit - 1
	if limit <= 0 {
		stop = -1
	}
	raw, err := l.store.ListRange(ctx, feedbackKey, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("read feedback log: %w", err)
	}
	records := make([]models.FeedbackRecord, 0, len(raw))
	for _, data := range raw {
		var rec models.FeedbackRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode feedback record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
