package repository

import (
	"context"

	"github.com/damoang/angple-cms/internal/domain"
	"gorm.io/gorm"
)

// ListFilter live record list options
type ListFilter struct {
	Page   int
	Limit  int
	Status domain.ContentStatus // empty = every status
}

// Normalize applies pagination defaults (page >= 1, 1 <= limit <= 100)
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return f
}

// LiveRecordWriter wholesale overwrite of a live record, used by publish and rollback
type LiveRecordWriter interface {
	Kind() domain.ContentKind
	// Exists returns common.ErrNotFound when there is no live record contentID
	Exists(ctx context.Context, contentID string) error
	Write(ctx context.Context, contentID string, snapshot domain.Snapshot) error
	WithTx(tx *gorm.DB) LiveRecordWriter
}

// ContentRepository live record data access for one content kind
type ContentRepository[T any, P domain.Record[T]] struct {
	db   *gorm.DB
	kind domain.ContentKind
}

// NewContentRepository creates a repository for the live record type T
func NewContentRepository[T any, P domain.Record[T]](db *gorm.DB) *ContentRepository[T, P] {
	return &ContentRepository[T, P]{db: db, kind: P(new(T)).ContentKind()}
}

// NewCourseRepository live courses
func NewCourseRepository(db *gorm.DB) *ContentRepository[domain.Course, *domain.Course] {
	return NewContentRepository[domain.Course](db)
}

// NewLessonRepository live lessons
func NewLessonRepository(db *gorm.DB) *ContentRepository[domain.Lesson, *domain.Lesson] {
	return NewContentRepository[domain.Lesson](db)
}

// NewPackageRepository live packages
func NewPackageRepository(db *gorm.DB) *ContentRepository[domain.Package, *domain.Package] {
	return NewContentRepository[domain.Package](db)
}

// NewBlogPostRepository live blog posts
func NewBlogPostRepository(db *gorm.DB) *ContentRepository[domain.BlogPost, *domain.BlogPost] {
	return NewContentRepository[domain.BlogPost](db)
}

// NewPageRepository live pages
func NewPageRepository(db *gorm.DB) *ContentRepository[domain.Page, *domain.Page] {
	return NewContentRepository[domain.Page](db)
}

func (r *ContentRepository[T, P]) Kind() domain.ContentKind { return r.kind }

// WithTx returns a copy bound to tx
func (r *ContentRepository[T, P]) WithTx(tx *gorm.DB) LiveRecordWriter {
	return &ContentRepository[T, P]{db: tx, kind: r.kind}
}

func (r *ContentRepository[T, P]) Create(ctx context.Context, record P) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *ContentRepository[T, P]) Update(ctx context.Context, record P) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *ContentRepository[T, P]) FindByID(ctx context.Context, id string) (P, error) {
	record := P(new(T))
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(record).Error; err != nil {
		return nil, notFound(err, "%s %s", r.kind, id)
	}
	return record, nil
}

func (r *ContentRepository[T, P]) Exists(ctx context.Context, id string) error {
	var count int64
	err := r.db.WithContext(ctx).Model(P(new(T))).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound(gorm.ErrRecordNotFound, "%s %s", r.kind, id)
	}
	return nil
}

func (r *ContentRepository[T, P]) List(ctx context.Context, filter ListFilter) ([]P, int64, error) {
	filter = filter.Normalize()

	query := r.db.WithContext(ctx).Model(P(new(T)))
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []T
	err := query.Order("updated_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]P, len(items))
	for i := range items {
		records[i] = P(&items[i])
	}
	return records, total, nil
}

func (r *ContentRepository[T, P]) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(P(new(T)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "%s %s", r.kind, id)
	}
	return nil
}

func (r *ContentRepository[T, P]) SetStatus(ctx context.Context, id string, status domain.ContentStatus, actorID string) error {
	result := r.db.WithContext(ctx).Model(P(new(T))).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_by": actorID})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "%s %s", r.kind, id)
	}
	return nil
}

// Write overwrites the record with snapshot and forces it to published.
// A snapshot of another kind is rejected before anything is written.
func (r *ContentRepository[T, P]) Write(ctx context.Context, contentID string, snapshot domain.Snapshot) error {
	record, err := r.FindByID(ctx, contentID)
	if err != nil {
		return err
	}
	if err := record.ApplySnapshot(snapshot); err != nil {
		return err
	}
	record.SetStatus(domain.ContentPublished)
	return r.db.WithContext(ctx).Save(record).Error
}
