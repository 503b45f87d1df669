package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damoang/angple-cms/internal/audit"
	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/event"
	"github.com/damoang/angple-cms/internal/repository"
	"github.com/damoang/angple-cms/pkg/cache"
	"github.com/damoang/angple-cms/pkg/logger"
	"github.com/google/uuid"
)

// ListResult one page of live records
type ListResult[P any] struct {
	Items []P   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// ContentService CRUD over one content kind. Every create and update is
// snapshotted as a draft revision; every mutation invalidates the kind's cache.
type ContentService[T any, P domain.Record[T]] struct {
	repo      *repository.ContentRepository[T, P]
	workflow  *WorkflowService
	audit     audit.Sink
	events    event.Publisher
	cache     *cache.Manager
	partition string
	now       func() time.Time
}

// ContentDeps collaborators shared by every content service
type ContentDeps struct {
	Workflow *WorkflowService
	Audit    audit.Sink
	Events   event.Publisher
	Cache    *cache.Manager
	Now      func() time.Time
}

// NewContentService creates a service for the live record type T
func NewContentService[T any, P domain.Record[T]](repo *repository.ContentRepository[T, P], deps ContentDeps) *ContentService[T, P] {
	s := &ContentService[T, P]{
		repo:      repo,
		workflow:  deps.Workflow,
		audit:     deps.Audit,
		events:    deps.Events,
		cache:     deps.Cache,
		partition: PartitionFor(repo.Kind()),
		now:       deps.Now,
	}
	if s.audit == nil {
		s.audit = &audit.Recorder{}
	}
	if s.events == nil {
		s.events = event.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func NewCourseService(repo *repository.ContentRepository[domain.Course, *domain.Course], deps ContentDeps) *ContentService[domain.Course, *domain.Course] {
	return NewContentService(repo, deps)
}

func NewLessonService(repo *repository.ContentRepository[domain.Lesson, *domain.Lesson], deps ContentDeps) *ContentService[domain.Lesson, *domain.Lesson] {
	return NewContentService(repo, deps)
}

func NewBlogPostService(repo *repository.ContentRepository[domain.BlogPost, *domain.BlogPost], deps ContentDeps) *ContentService[domain.BlogPost, *domain.BlogPost] {
	return NewContentService(repo, deps)
}

func NewPageService(repo *repository.ContentRepository[domain.Page, *domain.Page], deps ContentDeps) *ContentService[domain.Page, *domain.Page] {
	return NewContentService(repo, deps)
}

func (s *ContentService[T, P]) Kind() domain.ContentKind { return s.repo.Kind() }

// ========================================
// Reads
// ========================================

// Get returns one record. Actors below ContentEditor only see published records.
func (s *ContentService[T, P]) Get(ctx context.Context, actor domain.Actor, id string) (P, error) {
	key := cache.ItemKey(id, scopeOf(actor))
	return cache.GetOrLoad(ctx, s.cache.Partition(s.partition), key, func(ctx context.Context) (P, error) {
		record, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !actor.Can(domain.RoleContentEditor) && !record.IsPublished() {
			return nil, fmt.Errorf("%w: %s %s", common.ErrNotFound, s.Kind(), id)
		}
		return record, nil
	})
}

// List returns a page of records, published only for actors below ContentEditor.
func (s *ContentService[T, P]) List(ctx context.Context, actor domain.Actor, filter repository.ListFilter) (*ListResult[P], error) {
	filter = filter.Normalize()
	if !actor.Can(domain.RoleContentEditor) {
		filter.Status = domain.ContentPublished
	}

	key := cache.ListKey(scopeOf(actor), filter.Page, filter.Limit, filter.Status)
	return cache.GetOrLoad(ctx, s.cache.Partition(s.partition), key, func(ctx context.Context) (*ListResult[P], error) {
		items, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		return &ListResult[P]{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
	})
}

// ========================================
// Mutations
// ========================================

// Create persists a new draft-status record from data and snapshots it as a draft revision.
func (s *ContentService[T, P]) Create(ctx context.Context, actor domain.Actor, data domain.Snapshot) (P, *domain.Revision, error) {
	if err := actor.Require(domain.RoleContentEditor, "create "+string(s.Kind())); err != nil {
		return nil, nil, err
	}
	record := P(new(T))
	if err := record.ApplySnapshot(data); err != nil {
		return nil, nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, nil, err
	}

	record.SetID(uuid.NewString())
	record.SetStatus(domain.ContentDraft)
	record.Touch(actor.ID)
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, nil, err
	}

	revision, _, err := s.workflow.SaveDraft(ctx, actor, s.Kind(), record.GetID(), record.Snapshot())
	if err != nil {
		return nil, nil, err
	}

	s.afterMutation(ctx, actor, record.GetID(), domain.AuditCreate, domain.EventContentCreated, map[string]interface{}{
		"title":   data.Title(),
		"version": revision.Version,
	})
	return record, revision, nil
}

// Update overwrites the record's data and saves it as the current draft revision.
// The live status is left as it is.
func (s *ContentService[T, P]) Update(ctx context.Context, actor domain.Actor, id string, data domain.Snapshot) (P, *domain.Revision, error) {
	return s.update(ctx, actor, id, domain.AuditUpdate, nil, func(record P) error {
		return record.ApplySnapshot(data)
	})
}

func (s *ContentService[T, P]) update(ctx context.Context, actor domain.Actor, id, action string, metadata map[string]interface{}, mutate func(record P) error) (P, *domain.Revision, error) {
	if err := actor.Require(domain.RoleContentEditor, action+" "+string(s.Kind())); err != nil {
		return nil, nil, err
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := mutate(record); err != nil {
		return nil, nil, err
	}
	snapshot := record.Snapshot()
	if err := snapshot.Validate(); err != nil {
		return nil, nil, err
	}

	record.Touch(actor.ID)
	if err := s.repo.Update(ctx, record); err != nil {
		return nil, nil, err
	}

	revision, _, err := s.workflow.SaveDraft(ctx, actor, s.Kind(), id, snapshot)
	if err != nil {
		return nil, nil, err
	}

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["title"] = snapshot.Title()
	metadata["version"] = revision.Version
	s.afterMutation(ctx, actor, id, action, domain.EventContentUpdated, metadata)
	return record, revision, nil
}

// Delete removes the live record. Its revision history is kept.
func (s *ContentService[T, P]) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := actor.Require(domain.RolePublisher, "delete "+string(s.Kind())); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.afterMutation(ctx, actor, id, domain.AuditDelete, domain.EventContentDeleted, nil)
	return nil
}

// Publish makes the current live data public without a review cycle.
// The revision history records it through WorkflowService.PublishCurrent.
func (s *ContentService[T, P]) Publish(ctx context.Context, actor domain.Actor, id string) (P, *domain.Revision, error) {
	if err := actor.Require(domain.RolePublisher, "publish "+string(s.Kind())); err != nil {
		return nil, nil, err
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	revision, err := s.workflow.PublishCurrent(ctx, actor, s.Kind(), id, record.Snapshot())
	if err != nil {
		return nil, nil, err
	}
	record.SetStatus(domain.ContentPublished)

	s.afterMutation(ctx, actor, id, domain.AuditPublishContent, domain.EventContentPublished, map[string]interface{}{
		"version": revision.Version,
	})
	return record, revision, nil
}

// Unpublish hides the record. Revisions are untouched.
func (s *ContentService[T, P]) Unpublish(ctx context.Context, actor domain.Actor, id string) error {
	if err := actor.Require(domain.RolePublisher, "unpublish "+string(s.Kind())); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, domain.ContentDraft, actor.ID); err != nil {
		return err
	}
	s.afterMutation(ctx, actor, id, domain.AuditUnpublish, domain.EventContentUnpublished, nil)
	return nil
}

// afterMutation audit, cache invalidation, then the event
func (s *ContentService[T, P]) afterMutation(ctx context.Context, actor domain.Actor, id, action, eventType string, metadata map[string]interface{}) {
	now := s.now().UTC()
	logAudit(ctx, s.audit, domain.NewAuditLog(actor.ID, action, s.Kind(), id, metadata, now))

	removed := s.cache.InvalidateItem(s.partition, id)
	logger.FromContext(ctx).Debug().
		Str("kind", string(s.Kind())).
		Str("content_id", id).
		Int("removed", removed).
		Msg("cache invalidated")

	publishEvent(ctx, s.events, domain.Event{
		Type:       eventType,
		EntityKind: s.Kind(),
		EntityID:   id,
		Payload:    metadata,
		Timestamp:  now,
		ActorID:    actor.ID,
	})
	contentMutations.WithLabelValues(string(s.Kind()), action).Inc()
}

// scopeOf cache scope: results depend on both who asks and their role
func scopeOf(actor domain.Actor) string {
	return actor.ID + "@" + actor.Role.String()
}
