package models

import "fmt"

// Status is the lifecycle state of an ingested document. It only ever moves
// forward: Processing -> ChunkingComplete -> Embedding -> Completed, with Error
// reachable from any non-terminal state.
type Status string

const (
	StatusProcessing       Status = "processing"
	StatusChunkingComplete Status = "chunking_complete"
	StatusEmbedding        Status = "embedding"
	StatusCompleted        Status = "completed"
	StatusError            Status = "error"
)

// rank orders the forward states for transition checks. Terminal states have no
// outgoing transitions.
var rank = map[Status]int{
	StatusProcessing:       0,
	StatusChunkingComplete: 1,
	StatusEmbedding:        2,
	StatusCompleted:        3,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusChunkingComplete, StatusEmbedding, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether a document in state s may move to next.
// Error is reachable from any non-terminal state; forward states must advance
// strictly (no regression, no skipping back).
func (s Status) CanTransition(next Status) error {
	if !next.Valid() {
		return fmt.Errorf("unknown status %q", next)
	}
	if s.Terminal() {
		return fmt.Errorf("document is %s: no further transitions", s)
	}
	if next == StatusError {
		return nil
	}
	if rank[next] <= rank[s] {
		return fmt.Errorf("status cannot move from %s to %s", s, next)
	}
	return nil
}
