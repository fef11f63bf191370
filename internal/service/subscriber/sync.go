package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

// DefaultChunkSize bounds the row count of a single insert or update
// statement. Tunable because oversized meta payloads inflate statement
// length independent of row count.
const DefaultChunkSize = 50

// SyncRecord is one requested subscriber in a sync batch. Tags and
// UnsubscribedAt are accepted for compatibility with the wider API surface
// but are not written by the engine; tag handling is the API layer's call.
type SyncRecord struct {
	Email          string         `json:"email"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Meta           map[string]any `json:"meta"`
	Tags           []int64        `json:"tags"`
	UnsubscribedAt *time.Time     `json:"unsubscribed_at"`
}

// Progress is a point-in-time snapshot of a running sync call.
type Progress struct {
	Step      string
	Processed int
	Total     int
	Elapsed   time.Duration
}

// ProgressReporter receives pipeline progress for a sync call. Reports are
// advisory; failures to report must not affect the sync itself.
type ProgressReporter interface {
	Report(ctx context.Context, syncID string, p Progress)
}

// Sync reconciles a batch of subscriber records against the workspace's
// existing rows and returns the persisted state of every submitted email,
// ordered by id.
//
// Validation happens before any store access. The existence index is a
// snapshot taken once; a concurrent insert between snapshot and write
// surfaces as a per-chunk *DuplicateEmailError inside the returned
// *SyncError, not as a whole-call failure. Chunks already committed stay
// committed, so the call is safe to re-run.
func (s *Service) Sync(ctx context.Context, workspaceID int64, records []SyncRecord) ([]domain.Subscriber, error) {
	started := time.Now()
	syncID := uuid.New().String()

	if err := validateRecords(records); err != nil {
		return nil, err
	}

	records = dedupeLastWins(records)
	emails := make([]string, len(records))
	for i, r := range records {
		emails[i] = r.Email
	}
	s.step(ctx, syncID, started, "validate", 0, len(records))

	existing, err := s.repo.LookupByEmails(ctx, workspaceID, emails)
	if err != nil {
		return nil, fmt.Errorf("lookup existing subscribers: %w", err)
	}
	s.step(ctx, syncID, started, "resolve_existing", 0, len(records))

	chunkSize := s.opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	workers := s.opts.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		failed    []*ChunkError
		processed int
	)
	sem := make(chan struct{}, workers)

	idx := 0
	for start := 0; start < len(records); start += chunkSize {
		chunk := records[start:min(start+chunkSize, len(records)):min(start+chunkSize, len(records))]
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, chunk []SyncRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			err := s.writeChunk(ctx, workspaceID, chunk, existing)

			mu.Lock()
			processed += len(chunk)
			done := processed
			if err != nil {
				failed = append(failed, &ChunkError{Chunk: i, Emails: chunkEmails(chunk), Err: err})
			}
			mu.Unlock()

			s.step(ctx, syncID, started, fmt.Sprintf("chunk_%d", i), done, len(records))
		}(idx, chunk)
		idx++
	}
	wg.Wait()

	// Deterministic error order regardless of worker scheduling.
	sort.Slice(failed, func(a, b int) bool { return failed[a].Chunk < failed[b].Chunk })

	rows, err := s.repo.FetchByEmails(ctx, workspaceID, emails)
	if err != nil {
		return nil, fmt.Errorf("fetch synced subscribers: %w", err)
	}
	s.step(ctx, syncID, started, "compile_result", len(records), len(records))

	if len(failed) > 0 {
		return rows, &SyncError{Chunks: failed}
	}
	return rows, nil
}

// writeChunk classifies one chunk against the existence snapshot and applies
// it in a single repository transaction.
func (s *Service) writeChunk(ctx context.Context, workspaceID int64, chunk []SyncRecord, existing map[string]int64) error {
	inserts, updates, err := classify(chunk, existing)
	if err != nil {
		return err
	}
	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}
	return s.repo.ApplyChunk(ctx, workspaceID, inserts, updates)
}

// classify splits a chunk into pending inserts and updates using the
// existence index. New subscribers get a freshly generated hash; updates
// never carry one. Meta is serialized here so the writer only sees scalar
// column values.
func classify(chunk []SyncRecord, existing map[string]int64) ([]PendingInsert, []PendingUpdate, error) {
	var inserts []PendingInsert
	var updates []PendingUpdate

	for _, r := range chunk {
		meta, err := serializeMeta(r.Meta)
		if err != nil {
			return nil, nil, fmt.Errorf("serialize meta for %s: %w", r.Email, err)
		}

		if id, ok := existing[r.Email]; ok {
			updates = append(updates, PendingUpdate{
				ID:        id,
				Email:     r.Email,
				FirstName: r.FirstName,
				LastName:  r.LastName,
				Meta:      meta,
			})
		} else {
			inserts = append(inserts, PendingInsert{
				Email:     r.Email,
				FirstName: r.FirstName,
				LastName:  r.LastName,
				Meta:      meta,
				Hash:      uuid.New().String(),
			})
		}
	}
	return inserts, updates, nil
}

// validateRecords rejects the whole batch before any writes occur.
func validateRecords(records []SyncRecord) error {
	var problems []RecordProblem
	for i, r := range records {
		switch {
		case r.Email == "":
			problems = append(problems, RecordProblem{Index: i, Cause: "email is required"})
		case !domain.ValidEmail(r.Email):
			problems = append(problems, RecordProblem{Index: i, Email: r.Email, Cause: "email is not a valid address"})
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// dedupeLastWins collapses duplicate emails so a batch resolves each email
// to exactly one classification. The last occurrence's values win; the
// first occurrence's position is kept.
func dedupeLastWins(records []SyncRecord) []SyncRecord {
	seen := make(map[string]int, len(records))
	out := make([]SyncRecord, 0, len(records))
	for _, r := range records {
		if at, ok := seen[r.Email]; ok {
			out[at] = r
			continue
		}
		seen[r.Email] = len(out)
		out = append(out, r)
	}
	return out
}

// serializeMeta returns the persisted text form of a meta map. A nil map
// serializes as the JSON string `""`, matching historical rows.
func serializeMeta(meta map[string]any) (string, error) {
	if meta == nil {
		return `""`, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func chunkEmails(chunk []SyncRecord) []string {
	out := make([]string, len(chunk))
	for i, r := range chunk {
		out[i] = r.Email
	}
	return out
}

// step emits one structured timing entry per pipeline step and forwards it
// to the progress reporter when one is configured.
func (s *Service) step(ctx context.Context, syncID string, started time.Time, name string, processed, total int) {
	elapsed := time.Since(started)
	logger.Debug("subscriber sync step",
		"sync_id", syncID,
		"step", name,
		"processed", processed,
		"total", total,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	if s.opts.Progress != nil {
		s.opts.Progress.Report(ctx, syncID, Progress{
			Step:      name,
			Processed: processed,
			Total:     total,
			Elapsed:   elapsed,
		})
	}
}
