package models

import "time"

// CallRecord is one executed query, appended to the call log for observability.
// Records have no uniqueness constraint and no invariant beyond insertion order.
type CallRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Source    string    `json:"source,omitempty"`
}

// FeedbackRecord is one user feedback entry, appended to the feedback log.
// QueryID optionally ties it back to a call; the link is informational only.
type FeedbackRecord struct {
	Timestamp time.Time `json:"timestamp"`
	QueryID   string    `json:"query_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
}
