package domain

import (
	"fmt"
	"time"

	"github.com/damoang/angple-cms/internal/common"
)

// ContentKind closed set of revisionable entity types
type ContentKind string

const (
	KindCourse   ContentKind = "course"
	KindLesson   ContentKind = "lesson"
	KindPackage  ContentKind = "package"
	KindBlogPost ContentKind = "blog_post"
	KindPage     ContentKind = "page"
)

// ContentKinds lists every kind in a stable order.
var ContentKinds = []ContentKind{KindCourse, KindLesson, KindPackage, KindBlogPost, KindPage}

// Valid reports whether k is one of the known kinds
func (k ContentKind) Valid() bool {
	switch k {
	case KindCourse, KindLesson, KindPackage, KindBlogPost, KindPage:
		return true
	}
	return false
}

// ParseContentKind parses a kind from a path segment or config value
func ParseContentKind(s string) (ContentKind, error) {
	k := ContentKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown content kind %q", common.ErrValidation, s)
	}
	return k, nil
}

// ContentStatus status of a live record, separate from the revision workflow status
type ContentStatus string

const (
	ContentDraft     ContentStatus = "draft"
	ContentPublished ContentStatus = "published"
)

// LiveMeta bookkeeping columns shared by every live record table
type LiveMeta struct {
	ID        string        `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	Status    ContentStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	CreatedBy string        `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	UpdatedBy string        `gorm:"column:updated_by;type:varchar(64)" json:"updated_by"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (m *LiveMeta) GetID() string { return m.ID }

func (m *LiveMeta) SetID(id string) { m.ID = id }

func (m *LiveMeta) GetStatus() ContentStatus { return m.Status }

func (m *LiveMeta) SetStatus(status ContentStatus) { m.Status = status }

func (m *LiveMeta) IsPublished() bool { return m.Status == ContentPublished }

// Touch records the acting identity on the record
func (m *LiveMeta) Touch(actorID string) {
	if m.CreatedBy == "" {
		m.CreatedBy = actorID
	}
	m.UpdatedBy = actorID
}

// LiveRecord the "current truth" of one content item.
// Snapshot and ApplySnapshot are the only way data moves between a record and its revisions.
type LiveRecord interface {
	ContentKind() ContentKind
	GetID() string
	SetID(id string)
	GetStatus() ContentStatus
	SetStatus(status ContentStatus)
	IsPublished() bool
	Touch(actorID string)
	Snapshot() Snapshot
	ApplySnapshot(s Snapshot) error
}

// Record constrains a pointer to a live record struct, for generic repositories and services.
type Record[T any] interface {
	*T
	LiveRecord
}
