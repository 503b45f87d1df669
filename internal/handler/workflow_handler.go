package handler

import (
	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/middleware"
	"github.com/damoang/angple-cms/internal/service"
	"github.com/gin-gonic/gin"
)

// WorkflowHandler revision lifecycle endpoints
type WorkflowHandler struct {
	workflow *service.WorkflowService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(workflow *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow}
}

type reviewRequest struct {
	Notes *string `json:"notes"`
}

// SaveDraft handles PUT /api/v1/contents/:kind/:id/draft (404 when the live record is missing)
func (h *WorkflowHandler) SaveDraft(c *gin.Context) {
	kind, err := domain.ParseContentKind(c.Param("kind"))
	if err != nil {
		common.ErrorFrom(c, "Unknown content kind", err)
		return
	}
	data, err := bindSnapshot(c, kind)
	if err != nil {
		common.ErrorFrom(c, "Invalid request body", err)
		return
	}

	rev, created, err := h.workflow.SaveDraft(c.Request.Context(), middleware.GetActor(c), kind, c.Param("id"), data)
	if err != nil {
		common.ErrorFrom(c, "Failed to save draft", err)
		return
	}
	if created {
		common.CreatedResponse(c, rev)
		return
	}
	common.SuccessResponse(c, rev, nil)
}

// History handles GET /api/v1/contents/:kind/:id/revisions
func (h *WorkflowHandler) History(c *gin.Context) {
	kind, err := domain.ParseContentKind(c.Param("kind"))
	if err != nil {
		common.ErrorFrom(c, "Unknown content kind", err)
		return
	}

	revisions, err := h.workflow.History(c.Request.Context(), middleware.GetActor(c), kind, c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to load history", err)
		return
	}
	common.SuccessResponse(c, revisions, &common.Meta{Kind: string(kind), Total: int64(len(revisions))})
}

// GetRevision handles GET /api/v1/revisions/:id
func (h *WorkflowHandler) GetRevision(c *gin.Context) {
	rev, err := h.workflow.GetRevision(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to load revision", err)
		return
	}
	common.SuccessResponse(c, rev, nil)
}

// Submit handles POST /api/v1/revisions/:id/submit
func (h *WorkflowHandler) Submit(c *gin.Context) {
	rev, err := h.workflow.SubmitForReview(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to submit revision", err)
		return
	}
	common.SuccessResponse(c, rev, nil)
}

// Approve handles POST /api/v1/revisions/:id/approve
func (h *WorkflowHandler) Approve(c *gin.Context) {
	var req reviewRequest
	// empty body is fine: notes are optional on approval
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ErrorResponse(c, 400, "Invalid request body", err)
			return
		}
	}

	rev, err := h.workflow.Approve(c.Request.Context(), middleware.GetActor(c), c.Param("id"), req.Notes)
	if err != nil {
		common.ErrorFrom(c, "Failed to approve revision", err)
		return
	}
	common.SuccessResponse(c, rev, nil)
}

// Reject handles POST /api/v1/revisions/:id/reject
func (h *WorkflowHandler) Reject(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, 400, "Invalid request body", err)
		return
	}
	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}

	rev, err := h.workflow.Reject(c.Request.Context(), middleware.GetActor(c), c.Param("id"), notes)
	if err != nil {
		common.ErrorFrom(c, "Failed to reject revision", err)
		return
	}
	common.SuccessResponse(c, rev, nil)
}

// Publish handles POST /api/v1/revisions/:id/publish
func (h *WorkflowHandler) Publish(c *gin.Context) {
	rev, err := h.workflow.Publish(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to publish revision", err)
		return
	}
	common.SuccessResponse(c, rev, nil)
}

// Rollback handles POST /api/v1/revisions/:id/rollback
func (h *WorkflowHandler) Rollback(c *gin.Context) {
	rev, err := h.workflow.Rollback(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to roll back", err)
		return
	}
	common.CreatedResponse(c, rev)
}

// CreatePreview handles POST /api/v1/revisions/:id/preview
func (h *WorkflowHandler) CreatePreview(c *gin.Context) {
	link, err := h.workflow.GeneratePreviewToken(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to create preview link", err)
		return
	}
	common.CreatedResponse(c, link)
}

// ResolvePreview handles GET /preview/:token (no auth; the token is the credential)
func (h *WorkflowHandler) ResolvePreview(c *gin.Context) {
	content, err := h.workflow.ResolvePreview(c.Request.Context(), c.Param("token"))
	if err != nil {
		common.ErrorFrom(c, "Preview not available", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Robots-Tag", "noindex")
	common.SuccessResponse(c, content, nil)
}
