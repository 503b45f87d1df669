package domain

import "time"

// Event types
const (
	EventContentCreated     = "content.created"
	EventContentUpdated     = "content.updated"
	EventContentDeleted     = "content.deleted"
	EventContentPublished   = "content.published"
	EventContentUnpublished = "content.unpublished"

	EventRevisionDraftSaved    = "revision.draft_saved"
	EventRevisionSubmitted     = "revision.submitted"
	EventRevisionApproved      = "revision.approved"
	EventRevisionRejected      = "revision.rejected"
	EventRevisionPublished     = "revision.published"
	EventRevisionRolledBack    = "revision.rolled_back"
	EventRevisionPreviewIssued = "revision.preview_issued"
)

// Event state-change notification, delivered at most once
type Event struct {
	Type       string                 `json:"type"`
	EntityKind ContentKind            `json:"entity_kind"`
	EntityID   string                 `json:"entity_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	ActorID    string                 `json:"actor_id"`
}

// ChangesLiveRecord reports whether the event implies the live record's visible shape changed.
func (e Event) ChangesLiveRecord() bool {
	switch e.Type {
	case EventContentCreated, EventContentUpdated, EventContentDeleted,
		EventContentPublished, EventContentUnpublished,
		EventRevisionPublished, EventRevisionRolledBack:
		return true
	}
	return false
}
