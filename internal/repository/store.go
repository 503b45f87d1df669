package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

const maxTxAttempts = 4

var txRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "store_transaction_retries_total",
	Help: "Transactions run again after a deadlock or lock wait timeout",
})

// Store unit of work over revisions and live records.
// Everything reached through the tx passed to Transaction commits or rolls back together.
type Store interface {
	Revisions() RevisionRepository
	LiveRecords(kind domain.ContentKind) (LiveRecordWriter, error)
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db        *gorm.DB
	revisions RevisionRepository
	writers   map[domain.ContentKind]LiveRecordWriter
}

// NewStore creates a Store. Later writers for the same kind replace earlier ones.
func NewStore(db *gorm.DB, writers ...LiveRecordWriter) Store {
	byKind := make(map[domain.ContentKind]LiveRecordWriter, len(writers))
	for _, w := range writers {
		byKind[w.Kind()] = w
	}
	return &gormStore{
		db:        db,
		revisions: NewRevisionRepository(db),
		writers:   byKind,
	}
}

func (s *gormStore) Revisions() RevisionRepository {
	return s.revisions
}

func (s *gormStore) LiveRecords(kind domain.ContentKind) (LiveRecordWriter, error) {
	w, ok := s.writers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no live record repository for kind %q", common.ErrValidation, kind)
	}
	return w, nil
}

// Transaction runs fn in one transaction. When the database aborts it on a lock
// conflict the whole of fn runs again in a fresh transaction, so fn must not keep
// state from a previous attempt. Nested calls join the outer transaction and leave
// retrying to it.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	db := s.db.WithContext(ctx)
	if inTransaction(db) {
		return db.Transaction(func(tx *gorm.DB) error {
			return fn(s.bind(tx))
		})
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = db.Transaction(func(tx *gorm.DB) error {
			return fn(s.bind(tx))
		})
		if err == nil || !isLockConflict(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		txRetries.Inc()
		logger.FromContext(ctx).Warn().Err(err).Int("attempt", attempt).Msg("transaction aborted by lock conflict, retrying")
	}
	if errors.Is(err, ErrLockConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrLockConflict, err)
}

func (s *gormStore) bind(tx *gorm.DB) *gormStore {
	writers := make(map[domain.ContentKind]LiveRecordWriter, len(s.writers))
	for kind, w := range s.writers {
		writers[kind] = w.WithTx(tx)
	}
	return &gormStore{
		db:        tx,
		revisions: NewRevisionRepository(tx),
		writers:   writers,
	}
}
