package subscriber

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the subscriber service layer.
var (
	ErrNotFound = errors.New("subscriber not found")
)

// RecordProblem describes a single invalid record in a sync batch.
type RecordProblem struct {
	Index int    `json:"index"`
	Email string `json:"email,omitempty"`
	Cause string `json:"cause"`
}

// ValidationError reports malformed input records. It is always returned
// before any store access, so the caller can correct and resubmit safely.
type ValidationError struct {
	Problems []RecordProblem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		p := e.Problems[0]
		return fmt.Sprintf("invalid subscriber record %d: %s", p.Index, p.Cause)
	}
	return fmt.Sprintf("%d invalid subscriber records (first: record %d: %s)",
		len(e.Problems), e.Problems[0].Index, e.Problems[0].Cause)
}

// DuplicateEmailError is a uniqueness violation raised when an insert races
// a concurrent writer for the same email. The recommended recovery is to
// retry the colliding record, which will then classify as an update.
type DuplicateEmailError struct {
	Email string
	Err   error
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("subscriber email already exists: %s", e.Email)
}

func (e *DuplicateEmailError) Unwrap() error { return e.Err }

// ChunkError reports the failure of a single write chunk, naming every
// email the chunk carried so no record fails silently.
type ChunkError struct {
	Chunk  int
	Emails []string
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("sync chunk %d failed (%d records): %v", e.Chunk, len(e.Emails), e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// SyncError aggregates per-chunk failures from a sync call. The result set
// returned alongside it reflects whatever state the store persisted.
type SyncError struct {
	Chunks []*ChunkError
}

func (e *SyncError) Error() string {
	emails := e.FailedEmails()
	return fmt.Sprintf("sync failed for %d chunk(s) covering %d record(s): %s",
		len(e.Chunks), len(emails), strings.Join(emails, ", "))
}

// FailedEmails returns every email covered by a failed chunk, in chunk order.
func (e *SyncError) FailedEmails() []string {
	var out []string
	for _, c := range e.Chunks {
		out = append(out, c.Emails...)
	}
	return out
}
