package audit

import (
	"context"
	"sync"
	"time"

	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/repository"
	"github.com/damoang/angple-cms/pkg/logger"
)

const writeTimeout = 5 * time.Second

// Sink write-only audit target. Log never fails the caller.
type Sink interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// DBSink writes audit entries through the audit repository
type DBSink struct {
	repo  repository.AuditRepository
	async bool
	wg    sync.WaitGroup
}

// NewDBSink creates an asynchronous database sink
func NewDBSink(repo repository.AuditRepository) *DBSink {
	return &DBSink{repo: repo, async: true}
}

// Log writes an audit entry to the database
func (s *DBSink) Log(ctx context.Context, entry *domain.AuditLog) {
	if s == nil || s.repo == nil || entry == nil {
		return
	}
	if !s.async {
		s.write(ctx, entry)
		return
	}

	// Write async to avoid blocking the request
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.write(context.WithoutCancel(ctx), entry)
	}()
}

// Wait blocks until every pending asynchronous write finished
func (s *DBSink) Wait() {
	s.wg.Wait()
}

func (s *DBSink) write(ctx context.Context, entry *domain.AuditLog) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := s.repo.Create(ctx, entry); err != nil {
		l := logger.WithActor(*logger.FromContext(ctx), entry.ActorID, "")
		l.Error().Err(err).
			Str("action", entry.Action).
			Str("resource_kind", entry.ResourceKind).
			Str("resource_id", entry.ResourceID).
			Msg("audit log write failed")
	}
}

// Recorder keeps entries in memory
type Recorder struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *Recorder) Log(_ context.Context, entry *domain.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
}

// Entries returns a copy of everything logged so far
func (r *Recorder) Entries() []domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditLog, len(r.entries))
	copy(out, r.entries)
	return out
}

// Actions returns the logged actions in order
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, len(r.entries))
	for i, e := range r.entries {
		actions[i] = e.Action
	}
	return actions
}
