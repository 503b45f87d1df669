package domain

import "time"

// RevisionStatus workflow state of a single revision
type RevisionStatus string

const (
	RevisionDraft         RevisionStatus = "draft"
	RevisionPendingReview RevisionStatus = "pending_review"
	RevisionApproved      RevisionStatus = "approved"
	RevisionNeedsChanges  RevisionStatus = "needs_changes"
	RevisionPublished     RevisionStatus = "published"
)

// Revision versioned snapshot of one content item.
// (kind, content_id, version) is unique; draft_key is non-NULL only while the
// revision is a Draft, so the unique index on it allows one draft per item.
type Revision struct {
	ID        string      `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	Kind      ContentKind `gorm:"column:kind;type:varchar(20);not null;uniqueIndex:idx_revisions_version,priority:1" json:"kind"`
	ContentID string      `gorm:"column:content_id;type:varchar(36);not null;uniqueIndex:idx_revisions_version,priority:2" json:"content_id"`
	Version   int         `gorm:"column:version;not null;uniqueIndex:idx_revisions_version,priority:3" json:"version"`

	Data     Snapshot       `gorm:"column:data;type:json;serializer:json" json:"data"`
	Status   RevisionStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	DraftKey *string        `gorm:"column:draft_key;type:varchar(80);uniqueIndex" json:"-"`

	CreatedBy string    `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`

	ReviewedBy  *string    `gorm:"column:reviewed_by;type:varchar(64)" json:"reviewed_by,omitempty"`
	ReviewNotes *string    `gorm:"column:review_notes;type:text" json:"review_notes,omitempty"`
	PublishedBy *string    `gorm:"column:published_by;type:varchar(64)" json:"published_by,omitempty"`
	PublishedAt *time.Time `gorm:"column:published_at" json:"published_at,omitempty"`

	PreviewToken     *string    `gorm:"column:preview_token;type:varchar(64);uniqueIndex" json:"-"`
	PreviewExpiresAt *time.Time `gorm:"column:preview_expires_at;index" json:"preview_expires_at,omitempty"`
}

func (Revision) TableName() string { return "revisions" }

// DraftSlot key of the single draft slot of (kind, contentID)
func DraftSlot(kind ContentKind, contentID string) string {
	return string(kind) + ":" + contentID
}

// SetStatus moves the revision to status and keeps the draft slot in sync.
func (r *Revision) SetStatus(status RevisionStatus) {
	r.Status = status
	if status == RevisionDraft {
		slot := DraftSlot(r.Kind, r.ContentID)
		r.DraftKey = &slot
		return
	}
	r.DraftKey = nil
}

// MarkReviewed records the reviewer and optional notes
func (r *Revision) MarkReviewed(reviewerID string, notes *string) {
	r.ReviewedBy = &reviewerID
	r.ReviewNotes = notes
}

// MarkPublished sets the published status and stamps
func (r *Revision) MarkPublished(actorID string, at time.Time) {
	r.SetStatus(RevisionPublished)
	r.PublishedBy = &actorID
	r.PublishedAt = &at
}

// PreviewActive reports whether the preview token is still usable at now.
func (r *Revision) PreviewActive(now time.Time) bool {
	return r.PreviewToken != nil && r.PreviewExpiresAt != nil && now.Before(*r.PreviewExpiresAt)
}

// PreviewLink issued preview credential
type PreviewLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"url"`
}

// PreviewContent what a preview token resolves to
type PreviewContent struct {
	Kind      ContentKind    `json:"kind"`
	ContentID string         `json:"content_id"`
	Version   int            `json:"version"`
	Status    RevisionStatus `json:"status"`
	Data      Snapshot       `json:"data"`
}
