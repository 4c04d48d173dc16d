// Package session keeps commit sessions in one repository from overlapping.
// A session holds an advisory lock on session.lock in the commitmate state
// directory; the lock file also records who holds it.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrLocked indicates another session holds the lock.
var ErrLocked = errors.New("session already active")

const lockFilename = "session.lock"

// Holder describes the session that owns the lock.
type Holder struct {
	SessionID string `json:"session_id"`
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
}

// Acquire takes the lock under stateDir for session id, creating stateDir if
// needed. It does not wait: a held lock returns ErrLocked. The caller must
// call release when the session ends.
func Acquire(stateDir, id string) (release func(), err error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "session lock: create state dir")
	}
	path := filepath.Join(stateDir, lockFilename)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "session lock: open %s", path)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	data, err := json.Marshal(Holder{
		SessionID: id,
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err == nil && f.Truncate(0) == nil {
		_, _ = f.WriteAt(data, 0)
	}
	return func() {
		_ = f.Truncate(0)
		_ = unlockFile(f)
		_ = f.Close()
	}, nil
}

// ReadHolder returns the holder recorded in the lock file. ok is false when
// the lock is free or the record cannot be read.
func ReadHolder(stateDir string) (h Holder, ok bool) {
	data, err := os.ReadFile(filepath.Join(stateDir, lockFilename))
	if err != nil || len(data) == 0 {
		return Holder{}, false
	}
	if err := json.Unmarshal(data, &h); err != nil || h.SessionID == "" {
		return Holder{}, false
	}
	return h, true
}
