// Package history keeps an append-only JSONL log of review sessions in
// <git-dir>/commitmate/history.jsonl. Each line is one Record. The active
// file is bounded; older lines move to gzip archives (history.jsonl.N.gz)
// that ReadRecords still returns.
package history

import (
	"time"

	"github.com/google/uuid"
)

// Session outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeSkipped   = "skipped"
	OutcomeAborted   = "aborted"
)

// ValidOutcome reports whether s is one of the Outcome* constants.
func ValidOutcome(s string) bool {
	switch s {
	case OutcomeCommitted, OutcomeSkipped, OutcomeAborted:
		return true
	default:
		return false
	}
}

// Record is one line in history.jsonl.
type Record struct {
	SessionID     string   `json:"session_id"`
	Timestamp     string   `json:"timestamp"` // RFC 3339, UTC.
	Outcome       string   `json:"outcome"`
	Commit        string   `json:"commit,omitempty"` // Hash of the created commit.
	Branch        string   `json:"branch,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Bullets       []string `json:"bullets,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	Model         string   `json:"model,omitempty"`
	Attempts      int      `json:"attempts,omitempty"`
	Regenerations int      `json:"regenerations,omitempty"`
	Manual        bool     `json:"manual,omitempty"` // Entered by hand after suggestions ran out.
	Score         int      `json:"score,omitempty"`
	FilesTouched  int      `json:"files_touched,omitempty"`
	Version       string   `json:"version,omitempty"`
}

// NewRecord returns a Record with a fresh session id and the current time.
func NewRecord(outcome string) Record {
	return Record{
		SessionID: uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Outcome:   outcome,
	}
}
