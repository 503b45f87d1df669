package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/damoang/angple-cms/internal/audit"
	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/event"
	"github.com/damoang/angple-cms/internal/repository"
	"github.com/damoang/angple-cms/pkg/logger"
	"github.com/google/uuid"
)

const (
	DefaultPreviewTTL         = 24 * time.Hour
	DefaultPreviewPath        = "/preview/"
	DefaultPostPublishTimeout = 30 * time.Second

	// draft slot races are retried a few times before giving up
	maxDraftAttempts = 3
)

// WorkflowService revision state machine: drafts, review, publication, rollback and previews.
// Role gates are checked before anything is read or written.
type WorkflowService struct {
	store  repository.Store
	audit  audit.Sink
	events event.Publisher
	hooks  []PostPublishHook

	now         func() time.Time
	newID       func() string
	newToken    func() string
	previewTTL  time.Duration
	previewPath string
	hookTimeout time.Duration

	hookWG sync.WaitGroup
}

// WorkflowOption configures a WorkflowService
type WorkflowOption func(*WorkflowService)

// WithClock injects the clock
func WithClock(now func() time.Time) WorkflowOption {
	return func(s *WorkflowService) { s.now = now }
}

// WithPreviewTTL sets how long preview tokens stay valid
func WithPreviewTTL(ttl time.Duration) WorkflowOption {
	return func(s *WorkflowService) {
		if ttl > 0 {
			s.previewTTL = ttl
		}
	}
}

// WithPreviewPath sets the prefix of preview URLs
func WithPreviewPath(path string) WorkflowOption {
	return func(s *WorkflowService) {
		if path != "" {
			s.previewPath = path
		}
	}
}

// WithPostPublishHooks registers hooks run after publish and rollback commit
func WithPostPublishHooks(hooks ...PostPublishHook) WorkflowOption {
	return func(s *WorkflowService) { s.hooks = append(s.hooks, hooks...) }
}

// WithPostPublishTimeout bounds every hook run
func WithPostPublishTimeout(d time.Duration) WorkflowOption {
	return func(s *WorkflowService) {
		if d > 0 {
			s.hookTimeout = d
		}
	}
}

// WithTokenGenerator replaces the preview token generator
func WithTokenGenerator(gen func() string) WorkflowOption {
	return func(s *WorkflowService) { s.newToken = gen }
}

// NewWorkflowService creates a WorkflowService. sink and publisher may be nil.
func NewWorkflowService(store repository.Store, sink audit.Sink, publisher event.Publisher, opts ...WorkflowOption) *WorkflowService {
	s := &WorkflowService{
		store:       store,
		audit:       sink,
		events:      publisher,
		now:         time.Now,
		newID:       uuid.NewString,
		newToken:    newPreviewToken,
		previewTTL:  DefaultPreviewTTL,
		previewPath: DefaultPreviewPath,
		hookTimeout: DefaultPostPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = &audit.Recorder{}
	}
	if s.events == nil {
		s.events = event.Nop{}
	}
	return s
}

func newPreviewToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func (s *WorkflowService) clock() time.Time {
	return s.now().UTC()
}

// ========================================
// Drafts
// ========================================

// SaveDraft overwrites the draft of (kind, contentID) or creates one at the next version.
// A NeedsChanges latest revision is reopened as the draft, keeping its id and version.
// The live record must exist. created reports whether a new revision was allocated.
func (s *WorkflowService) SaveDraft(ctx context.Context, actor domain.Actor, kind domain.ContentKind, contentID string, data domain.Snapshot) (*domain.Revision, bool, error) {
	if err := actor.Require(domain.RoleContentEditor, "save draft"); err != nil {
		return nil, false, err
	}
	if err := validateTarget(kind, contentID); err != nil {
		return nil, false, err
	}
	if data.Kind != kind {
		return nil, false, fmt.Errorf("%w: %q snapshot for %q content", common.ErrValidation, data.Kind, kind)
	}
	if err := data.Validate(); err != nil {
		return nil, false, err
	}
	writer, err := s.store.LiveRecords(kind)
	if err != nil {
		return nil, false, err
	}
	if err := writer.Exists(ctx, contentID); err != nil {
		return nil, false, err
	}

	var (
		revision *domain.Revision
		created  bool
	)
	for attempt := 0; attempt < maxDraftAttempts; attempt++ {
		revision, created, err = s.saveDraftOnce(ctx, actor, kind, contentID, data)
		if !errors.Is(err, repository.ErrDraftExists) {
			break
		}
	}
	if err != nil {
		return nil, false, err
	}

	s.record(ctx, actor, domain.AuditSaveDraft, revision, map[string]interface{}{
		"created": created,
	})
	s.emit(ctx, actor, domain.EventRevisionDraftSaved, revision, map[string]interface{}{
		"created": created,
	})
	workflowTransitions.WithLabelValues(domain.AuditSaveDraft).Inc()
	return revision, created, nil
}

func (s *WorkflowService) saveDraftOnce(ctx context.Context, actor domain.Actor, kind domain.ContentKind, contentID string, data domain.Snapshot) (*domain.Revision, bool, error) {
	revisions := s.store.Revisions()
	now := s.clock()

	draft, err := revisions.FindDraft(ctx, kind, contentID)
	if err != nil {
		return nil, false, err
	}
	if draft == nil {
		latest, err := revisions.FindLatest(ctx, kind, contentID)
		if err != nil {
			return nil, false, err
		}
		if latest != nil && latest.Status == domain.RevisionNeedsChanges {
			latest.SetStatus(domain.RevisionDraft)
			draft = latest
		}
	}

	if draft != nil {
		draft.Data = data
		draft.UpdatedAt = now
		if err := revisions.Save(ctx, draft); err != nil {
			return nil, false, err
		}
		return draft, false, nil
	}

	revision := &domain.Revision{
		ID:        s.newID(),
		Kind:      kind,
		ContentID: contentID,
		Data:      data,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	revision.SetStatus(domain.RevisionDraft)
	if err := revisions.CreateNextVersion(ctx, revision); err != nil {
		return nil, false, err
	}
	return revision, true, nil
}

// ========================================
// Review
// ========================================

// SubmitForReview moves a Draft or NeedsChanges revision to PendingReview.
// Submitting a PendingReview revision again is a no-op.
func (s *WorkflowService) SubmitForReview(ctx context.Context, actor domain.Actor, revisionID string) (*domain.Revision, error) {
	if err := actor.Require(domain.RoleContentEditor, "submit for review"); err != nil {
		return nil, err
	}
	revision, err := s.store.Revisions().FindByID(ctx, revisionID)
	if err != nil {
		return nil, err
	}

	switch revision.Status {
	case domain.RevisionPendingReview:
		return revision, nil
	case domain.RevisionDraft, domain.RevisionNeedsChanges:
	default:
		return nil, policyViolation("cannot submit a %s revision for review", revision.Status)
	}

	revision.SetStatus(domain.RevisionPendingReview)
	revision.UpdatedAt = s.clock()
	if err := s.store.Revisions().Save(ctx, revision); err != nil {
		return nil, err
	}

	s.record(ctx, actor, domain.AuditSubmitReview, revision, nil)
	s.emit(ctx, actor, domain.EventRevisionSubmitted, revision, nil)
	workflowTransitions.WithLabelValues(domain.AuditSubmitReview).Inc()
	return revision, nil
}

// Approve marks a PendingReview revision Approved. notes is optional.
func (s *WorkflowService) Approve(ctx context.Context, actor domain.Actor, revisionID string, notes *string) (*domain.Revision, error) {
	if err := actor.Require(domain.RolePublisher, "approve"); err != nil {
		return nil, err
	}
	if notes != nil && strings.TrimSpace(*notes) == "" {
		notes = nil
	}
	return s.review(ctx, actor, revisionID, domain.RevisionApproved, notes)
}

// Reject sends a PendingReview revision back with mandatory notes.
func (s *WorkflowService) Reject(ctx context.Context, actor domain.Actor, revisionID string, notes string) (*domain.Revision, error) {
	if err := actor.Require(domain.RolePublisher, "reject"); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, fmt.Errorf("%w: review notes are required to reject", common.ErrValidation)
	}
	return s.review(ctx, actor, revisionID, domain.RevisionNeedsChanges, &notes)
}

func (s *WorkflowService) review(ctx context.Context, actor domain.Actor, revisionID string, to domain.RevisionStatus, notes *string) (*domain.Revision, error) {
	revision, err := s.store.Revisions().FindByID(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if revision.Status != domain.RevisionPendingReview {
		return nil, policyViolation("only pending_review revisions can be reviewed, revision is %s", revision.Status)
	}

	revision.SetStatus(to)
	revision.MarkReviewed(actor.ID, notes)
	revision.UpdatedAt = s.clock()
	if err := s.store.Revisions().Save(ctx, revision); err != nil {
		return nil, err
	}

	action, eventType := domain.AuditApprove, domain.EventRevisionApproved
	if to == domain.RevisionNeedsChanges {
		action, eventType = domain.AuditReject, domain.EventRevisionRejected
	}
	metadata := map[string]interface{}{}
	if notes != nil {
		metadata["review_notes"] = *notes
	}
	s.record(ctx, actor, action, revision, metadata)
	s.emit(ctx, actor, eventType, revision, nil)
	workflowTransitions.WithLabelValues(action).Inc()
	return revision, nil
}

// ========================================
// Publication
// ========================================

// Publish materializes an Approved revision into the live record.
// The status change and the live write commit together or not at all.
func (s *WorkflowService) Publish(ctx context.Context, actor domain.Actor, revisionID string) (*domain.Revision, error) {
	if err := actor.Require(domain.RolePublisher, "publish"); err != nil {
		return nil, err
	}

	var published *domain.Revision
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		revision, err := tx.Revisions().FindByID(ctx, revisionID)
		if err != nil {
			return err
		}
		if revision.Status != domain.RevisionApproved {
			return policyViolation("only approved revisions can be published, revision is %s", revision.Status)
		}
		writer, err := tx.LiveRecords(revision.Kind)
		if err != nil {
			return err
		}

		now := s.clock()
		revision.MarkPublished(actor.ID, now)
		revision.UpdatedAt = now
		if err := tx.Revisions().Save(ctx, revision); err != nil {
			return err
		}
		if err := writer.Write(ctx, revision.ContentID, revision.Data); err != nil {
			return fmt.Errorf("write live %s %s: %w", revision.Kind, revision.ContentID, err)
		}
		published = revision
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, domain.AuditPublish, published, nil)
	s.emit(ctx, actor, domain.EventRevisionPublished, published, nil)
	workflowTransitions.WithLabelValues(domain.AuditPublish).Inc()
	s.runHooks(ctx, published)
	return published, nil
}

// Rollback republishes the data of a Published revision as a new version.
// History is never rewritten: the target stays as it was.
func (s *WorkflowService) Rollback(ctx context.Context, actor domain.Actor, targetRevisionID string) (*domain.Revision, error) {
	if err := actor.Require(domain.RolePublisher, "rollback"); err != nil {
		return nil, err
	}

	var (
		target   *domain.Revision
		restored *domain.Revision
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		target, err = tx.Revisions().FindByID(ctx, targetRevisionID)
		if err != nil {
			return err
		}
		if target.Status != domain.RevisionPublished {
			return policyViolation("only published revisions can be rolled back to, revision is %s", target.Status)
		}
		writer, err := tx.LiveRecords(target.Kind)
		if err != nil {
			return err
		}

		now := s.clock()
		revision := &domain.Revision{
			ID:        s.newID(),
			Kind:      target.Kind,
			ContentID: target.ContentID,
			Data:      target.Data,
			CreatedBy: actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		revision.MarkPublished(actor.ID, now)
		if err := tx.Revisions().CreateNextVersion(ctx, revision); err != nil {
			return err
		}
		if err := writer.Write(ctx, revision.ContentID, revision.Data); err != nil {
			return fmt.Errorf("write live %s %s: %w", revision.Kind, revision.ContentID, err)
		}
		restored = revision
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, domain.AuditRollback, restored, map[string]interface{}{
		"rolled_back_to":     target.Version,
		"source_revision_id": target.ID,
	})
	s.emit(ctx, actor, domain.EventRevisionRolledBack, restored, map[string]interface{}{
		"rolled_back_to": target.Version,
	})
	workflowTransitions.WithLabelValues(domain.AuditRollback).Inc()
	s.runHooks(ctx, restored)
	return restored, nil
}

// PublishCurrent records a direct publish of the live record in the revision history.
// An outstanding draft holding the same data becomes Published; otherwise data is
// published as a new version (unless the latest settled revision already is it) and
// the draft keeps its unreviewed edits. Approved/PendingReview revisions it supersedes
// go back to NeedsChanges. The live record is overwritten in the same transaction.
func (s *WorkflowService) PublishCurrent(ctx context.Context, actor domain.Actor, kind domain.ContentKind, contentID string, data domain.Snapshot) (*domain.Revision, error) {
	if err := actor.Require(domain.RolePublisher, "publish"); err != nil {
		return nil, err
	}
	if err := validateTarget(kind, contentID); err != nil {
		return nil, err
	}
	if data.Kind != kind {
		return nil, fmt.Errorf("%w: %q snapshot for %q content", common.ErrValidation, data.Kind, kind)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var (
		published  *domain.Revision
		superseded []string
		changed    bool
	)
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		revisions := tx.Revisions()
		writer, err := tx.LiveRecords(kind)
		if err != nil {
			return err
		}
		now := s.clock()

		published, changed, err = s.publishCurrentRevision(ctx, revisions, actor, kind, contentID, data, now)
		if err != nil {
			return err
		}

		stale, err := revisions.ListByStatus(ctx, kind, contentID, domain.RevisionApproved, domain.RevisionPendingReview)
		if err != nil {
			return err
		}
		note := fmt.Sprintf("superseded by version %d", published.Version)
		superseded = make([]string, 0, len(stale))
		for _, revision := range stale {
			revision.SetStatus(domain.RevisionNeedsChanges)
			revision.MarkReviewed(actor.ID, &note)
			revision.UpdatedAt = now
			if err := revisions.Save(ctx, revision); err != nil {
				return err
			}
			superseded = append(superseded, revision.ID)
		}

		return writer.Write(ctx, contentID, data)
	})
	if err != nil {
		return nil, err
	}

	if changed || len(superseded) > 0 {
		s.record(ctx, actor, domain.AuditPublish, published, map[string]interface{}{
			"direct":     true,
			"superseded": superseded,
		})
		s.emit(ctx, actor, domain.EventRevisionPublished, published, map[string]interface{}{
			"direct": true,
		})
		workflowTransitions.WithLabelValues(domain.AuditPublish).Inc()
	}
	s.runHooks(ctx, published)
	return published, nil
}

// publishCurrentRevision returns the revision standing for data and whether history changed.
// The draft is promoted only when it holds exactly data; a draft with other edits
// stays a draft and data is published as a new version next to it.
func (s *WorkflowService) publishCurrentRevision(ctx context.Context, revisions repository.RevisionRepository, actor domain.Actor, kind domain.ContentKind, contentID string, data domain.Snapshot, now time.Time) (*domain.Revision, bool, error) {
	draft, err := revisions.FindDraft(ctx, kind, contentID)
	if err != nil {
		return nil, false, err
	}
	if draft != nil && sameSnapshot(draft.Data, data) {
		draft.MarkPublished(actor.ID, now)
		draft.UpdatedAt = now
		return draft, true, revisions.Save(ctx, draft)
	}

	// the outstanding draft is skipped: it is not what goes live
	settled, err := revisions.ListByStatus(ctx, kind, contentID,
		domain.RevisionPendingReview, domain.RevisionNeedsChanges, domain.RevisionApproved, domain.RevisionPublished)
	if err != nil {
		return nil, false, err
	}
	if n := len(settled); n > 0 {
		latest := settled[n-1]
		if latest.Status == domain.RevisionPublished && sameSnapshot(latest.Data, data) {
			return latest, false, nil
		}
	}

	revision := &domain.Revision{
		ID:        s.newID(),
		Kind:      kind,
		ContentID: contentID,
		Data:      data,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	revision.MarkPublished(actor.ID, now)
	return revision, true, revisions.CreateNextVersion(ctx, revision)
}

func sameSnapshot(a, b domain.Snapshot) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// ========================================
// Previews
// ========================================

// GeneratePreviewToken issues a new preview token, replacing any previous one.
func (s *WorkflowService) GeneratePreviewToken(ctx context.Context, actor domain.Actor, revisionID string) (*domain.PreviewLink, error) {
	if err := actor.Require(domain.RoleContentEditor, "generate preview"); err != nil {
		return nil, err
	}
	revision, err := s.store.Revisions().FindByID(ctx, revisionID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	token := s.newToken()
	expiresAt := now.Add(s.previewTTL)
	revision.PreviewToken = &token
	revision.PreviewExpiresAt = &expiresAt
	revision.UpdatedAt = now
	if err := s.store.Revisions().Save(ctx, revision); err != nil {
		return nil, err
	}

	s.record(ctx, actor, domain.AuditGeneratePreview, revision, map[string]interface{}{
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	s.emit(ctx, actor, domain.EventRevisionPreviewIssued, revision, nil)

	return &domain.PreviewLink{
		Token:     token,
		ExpiresAt: expiresAt,
		URL:       s.previewPath + token,
	}, nil
}

// ResolvePreview returns the revision behind token. Unknown and expired tokens
// both yield ErrExpired so nothing about the revision leaks.
func (s *WorkflowService) ResolvePreview(ctx context.Context, token string) (*domain.PreviewContent, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errPreviewUnavailable
	}
	revision, err := s.store.Revisions().FindByPreviewToken(ctx, token)
	if errors.Is(err, common.ErrNotFound) {
		return nil, errPreviewUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !revision.PreviewActive(s.clock()) {
		return nil, errPreviewUnavailable
	}

	return &domain.PreviewContent{
		Kind:      revision.Kind,
		ContentID: revision.ContentID,
		Version:   revision.Version,
		Status:    revision.Status,
		Data:      revision.Data,
	}, nil
}

var errPreviewUnavailable = fmt.Errorf("%w: preview not found or expired", common.ErrExpired)

// PurgeExpiredPreviews clears tokens whose expiry has passed
func (s *WorkflowService) PurgeExpiredPreviews(ctx context.Context) (int64, error) {
	return s.store.Revisions().ClearExpiredPreviews(ctx, s.clock())
}

// ========================================
// Reads
// ========================================

// History every revision of (kind, contentID), oldest first
func (s *WorkflowService) History(ctx context.Context, actor domain.Actor, kind domain.ContentKind, contentID string) ([]*domain.Revision, error) {
	if err := actor.Require(domain.RoleContentEditor, "view history"); err != nil {
		return nil, err
	}
	if err := validateTarget(kind, contentID); err != nil {
		return nil, err
	}
	return s.store.Revisions().ListByContent(ctx, kind, contentID)
}

func (s *WorkflowService) GetRevision(ctx context.Context, actor domain.Actor, revisionID string) (*domain.Revision, error) {
	if err := actor.Require(domain.RoleContentEditor, "view revision"); err != nil {
		return nil, err
	}
	return s.store.Revisions().FindByID(ctx, revisionID)
}

// ========================================
// Side effects
// ========================================

// record never fails the caller; a panicking sink is logged and dropped
func (s *WorkflowService) record(ctx context.Context, actor domain.Actor, action string, revision *domain.Revision, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["revision_id"] = revision.ID
	metadata["version"] = revision.Version
	logAudit(ctx, s.audit, domain.NewAuditLog(actor.ID, action, revision.Kind, revision.ContentID, metadata, s.clock()))
}

func (s *WorkflowService) emit(ctx context.Context, actor domain.Actor, eventType string, revision *domain.Revision, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["revision_id"] = revision.ID
	payload["version"] = revision.Version
	payload["status"] = string(revision.Status)
	publishEvent(ctx, s.events, domain.Event{
		Type:       eventType,
		EntityKind: revision.Kind,
		EntityID:   revision.ContentID,
		Payload:    payload,
		Timestamp:  s.clock(),
		ActorID:    actor.ID,
	})
}

func logAudit(ctx context.Context, sink audit.Sink, entry *domain.AuditLog) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error().
				Interface("panic", r).
				Str("action", entry.Action).
				Str("content_id", entry.ResourceID).
				Msg("audit sink panicked")
		}
	}()
	sink.Log(ctx, entry)
}

func publishEvent(ctx context.Context, publisher event.Publisher, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error().
				Interface("panic", r).
				Str("type", e.Type).
				Str("content_id", e.EntityID).
				Msg("event publisher panicked")
		}
	}()
	publisher.Publish(ctx, e)
}

func validateTarget(kind domain.ContentKind, contentID string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown content kind %q", common.ErrValidation, kind)
	}
	if strings.TrimSpace(contentID) == "" {
		return fmt.Errorf("%w: content id is required", common.ErrValidation)
	}
	return nil
}

func policyViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", common.ErrPolicyViolation, fmt.Sprintf(format, args...))
}
