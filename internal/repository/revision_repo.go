package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxVersionAttempts = 5

var (
	// ErrDraftExists another writer took the draft slot first
	ErrDraftExists = errors.New("draft already exists for content")
	// ErrVersionConflict version allocation kept colliding with concurrent writers
	ErrVersionConflict = errors.New("could not allocate revision version")
	// ErrLockConflict the database aborted the whole transaction (deadlock or lock
	// wait timeout). Store.Transaction runs it again.
	ErrLockConflict = errors.New("transaction aborted by lock conflict")
)

// MySQL error numbers after which InnoDB has rolled the transaction back
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// RevisionRepository revision history data access
type RevisionRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Revision, error)
	FindByPreviewToken(ctx context.Context, token string) (*domain.Revision, error)
	// FindDraft returns the draft of (kind, contentID), or nil when there is none
	FindDraft(ctx context.Context, kind domain.ContentKind, contentID string) (*domain.Revision, error)
	// FindLatest returns the highest version of (kind, contentID), or nil when there is none
	FindLatest(ctx context.Context, kind domain.ContentKind, contentID string) (*domain.Revision, error)
	ListByContent(ctx context.Context, kind domain.ContentKind, contentID string) ([]*domain.Revision, error)
	ListByStatus(ctx context.Context, kind domain.ContentKind, contentID string, statuses ...domain.RevisionStatus) ([]*domain.Revision, error)
	// CreateNextVersion assigns MAX(version)+1 and inserts, retrying on version collisions
	CreateNextVersion(ctx context.Context, revision *domain.Revision) error
	Save(ctx context.Context, revision *domain.Revision) error
	ClearExpiredPreviews(ctx context.Context, now time.Time) (int64, error)
}

type revisionRepository struct {
	db *gorm.DB
}

// NewRevisionRepository creates a new RevisionRepository
func NewRevisionRepository(db *gorm.DB) RevisionRepository {
	return &revisionRepository{db: db}
}

func (r *revisionRepository) FindByID(ctx context.Context, id string) (*domain.Revision, error) {
	var revision domain.Revision
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&revision).Error
	if err != nil {
		return nil, notFound(err, "revision %s", id)
	}
	return &revision, nil
}

func (r *revisionRepository) FindByPreviewToken(ctx context.Context, token string) (*domain.Revision, error) {
	var revision domain.Revision
	err := r.db.WithContext(ctx).Where("preview_token = ?", token).First(&revision).Error
	if err != nil {
		return nil, notFound(err, "preview token")
	}
	return &revision, nil
}

func (r *revisionRepository) FindDraft(ctx context.Context, kind domain.ContentKind, contentID string) (*domain.Revision, error) {
	var revisions []*domain.Revision
	err := r.db.WithContext(ctx).
		Where("draft_key = ?", domain.DraftSlot(kind, contentID)).
		Limit(1).
		Find(&revisions).Error
	if err != nil || len(revisions) == 0 {
		return nil, err
	}
	return revisions[0], nil
}

func (r *revisionRepository) FindLatest(ctx context.Context, kind domain.ContentKind, contentID string) (*domain.Revision, error) {
	var revisions []*domain.Revision
	err := r.db.WithContext(ctx).
		Where("kind = ? AND content_id = ?", kind, contentID).
		Order("version DESC").
		Limit(1).
		Find(&revisions).Error
	if err != nil || len(revisions) == 0 {
		return nil, err
	}
	return revisions[0], nil
}

func (r *revisionRepository) ListByContent(ctx context.Context, kind domain.ContentKind, contentID string) ([]*domain.Revision, error) {
	var revisions []*domain.Revision
	err := r.db.WithContext(ctx).
		Where("kind = ? AND content_id = ?", kind, contentID).
		Order("version ASC").
		Find(&revisions).Error
	return revisions, err
}

func (r *revisionRepository) ListByStatus(ctx context.Context, kind domain.ContentKind, contentID string, statuses ...domain.RevisionStatus) ([]*domain.Revision, error) {
	var revisions []*domain.Revision
	err := r.db.WithContext(ctx).
		Where("kind = ? AND content_id = ? AND status IN ?", kind, contentID, statuses).
		Order("version ASC").
		Find(&revisions).Error
	return revisions, err
}

func nextVersion(db *gorm.DB, kind domain.ContentKind, contentID string) (int, error) {
	var maxVersion *int
	query := db.Model(&domain.Revision{}).
		Where("kind = ? AND content_id = ?", kind, contentID).
		Select("MAX(version)")
	// MySQL: a locking read sees rows committed after our snapshot was taken
	if db.Dialector.Name() == "mysql" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.Scan(&maxVersion).Error; err != nil {
		return 1, err
	}
	if maxVersion == nil {
		return 1, nil
	}
	return *maxVersion + 1, nil
}

// CreateNextVersion each attempt runs in its own savepoint (or transaction when
// called outside one) so a unique violation does not poison the caller's transaction.
// A lock conflict inside a caller's transaction cannot be retried here: MySQL already
// rolled that transaction back, so it is returned as ErrLockConflict.
func (r *revisionRepository) CreateNextVersion(ctx context.Context, revision *domain.Revision) error {
	db := r.db.WithContext(ctx)
	for attempt := 0; attempt < maxVersionAttempts; attempt++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			next, err := nextVersion(tx, revision.Kind, revision.ContentID)
			if err != nil {
				return err
			}
			revision.Version = next
			return tx.Create(revision).Error
		})
		if err == nil {
			return nil
		}
		if isLockConflict(err) {
			if inTransaction(db) {
				return fmt.Errorf("%w: %w", ErrLockConflict, err)
			}
			continue
		}
		if !isDuplicateKey(err) {
			return err
		}
		if revision.DraftKey != nil {
			var drafts int64
			if cerr := db.Model(&domain.Revision{}).Where("draft_key = ?", *revision.DraftKey).Count(&drafts).Error; cerr != nil {
				return cerr
			}
			if drafts > 0 {
				return ErrDraftExists
			}
		}
	}
	return fmt.Errorf("%w: %s %s", ErrVersionConflict, revision.Kind, revision.ContentID)
}

func (r *revisionRepository) Save(ctx context.Context, revision *domain.Revision) error {
	err := r.db.WithContext(ctx).Save(revision).Error
	if err != nil && isDuplicateKey(err) && revision.DraftKey != nil {
		return ErrDraftExists
	}
	return err
}

func (r *revisionRepository) ClearExpiredPreviews(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Revision{}).
		Where("preview_token IS NOT NULL AND preview_expires_at < ?", now).
		Updates(map[string]interface{}{"preview_token": nil, "preview_expires_at": nil})
	return result.RowsAffected, result.Error
}

// isDuplicateKey gorm only translates driver errors when TranslateError is on,
// so the driver messages are matched as well.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

// isLockConflict MySQL deadlock and lock wait timeout; gorm does not translate either
func isLockConflict(err error) bool {
	if errors.Is(err, ErrLockConflict) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlock || mysqlErr.Number == mysqlLockWaitTimeout
	}
	return false
}

func inTransaction(db *gorm.DB) bool {
	_, ok := db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", common.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
