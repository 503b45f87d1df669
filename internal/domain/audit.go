package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions. Content services log the business-level actions,
// the workflow engine logs the revision-level ones.
const (
	AuditCreate         = "create"
	AuditUpdate         = "update"
	AuditDelete         = "delete"
	AuditPublishContent = "publish_content"
	AuditUnpublish      = "unpublish"
	AuditAddCourse      = "add_course"
	AuditRemoveCourse   = "remove_course"

	AuditSaveDraft       = "save_draft"
	AuditSubmitReview    = "submit_review"
	AuditApprove         = "approve"
	AuditReject          = "reject"
	AuditPublish         = "publish"
	AuditRollback        = "rollback"
	AuditGeneratePreview = "generate_preview"
)

// AuditLog append-only record of an action
type AuditLog struct {
	ID           int64             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ActorID      string            `gorm:"column:actor_id;type:varchar(64);index" json:"actor_id"`
	Action       string            `gorm:"column:action;type:varchar(40);index" json:"action"`
	ResourceKind string            `gorm:"column:resource_kind;type:varchar(20)" json:"resource_kind"`
	ResourceID   string            `gorm:"column:resource_id;type:varchar(36);index" json:"resource_id"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"column:created_at;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// NewAuditLog builds an audit entry stamped at `at`
func NewAuditLog(actorID, action string, kind ContentKind, resourceID string, metadata map[string]interface{}, at time.Time) *AuditLog {
	return &AuditLog{
		ActorID:      actorID,
		Action:       action,
		ResourceKind: string(kind),
		ResourceID:   resourceID,
		Metadata:     datatypes.JSONMap(metadata),
		CreatedAt:    at,
	}
}
