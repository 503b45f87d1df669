package handler

import (
	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/middleware"
	"github.com/damoang/angple-cms/internal/service"
	"github.com/gin-gonic/gin"
)

// ContentHandler CRUD endpoints for one content kind
type ContentHandler[T any, P domain.Record[T]] struct {
	svc *service.ContentService[T, P]
}

// NewContentHandler creates a handler over svc
func NewContentHandler[T any, P domain.Record[T]](svc *service.ContentService[T, P]) *ContentHandler[T, P] {
	return &ContentHandler[T, P]{svc: svc}
}

type mutationResponse struct {
	Record   interface{}      `json:"record"`
	Revision *domain.Revision `json:"revision,omitempty"`
}

// List handles GET /api/v1/{kind}
func (h *ContentHandler[T, P]) List(c *gin.Context) {
	result, err := h.svc.List(c.Request.Context(), middleware.GetActor(c), listFilter(c))
	if err != nil {
		common.ErrorFrom(c, "Failed to list content", err)
		return
	}
	common.SuccessResponse(c, result.Items, &common.Meta{
		Kind:  string(h.svc.Kind()),
		Page:  result.Page,
		Limit: result.Limit,
		Total: result.Total,
	})
}

// Get handles GET /api/v1/{kind}/:id
func (h *ContentHandler[T, P]) Get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to load content", err)
		return
	}
	common.SuccessResponse(c, record, nil)
}

// Create handles POST /api/v1/{kind}
func (h *ContentHandler[T, P]) Create(c *gin.Context) {
	data, err := bindSnapshot(c, h.svc.Kind())
	if err != nil {
		common.ErrorFrom(c, "Invalid request body", err)
		return
	}

	record, rev, err := h.svc.Create(c.Request.Context(), middleware.GetActor(c), data)
	if err != nil {
		common.ErrorFrom(c, "Failed to create content", err)
		return
	}
	common.CreatedResponse(c, mutationResponse{Record: record, Revision: rev})
}

// Update handles PUT /api/v1/{kind}/:id
func (h *ContentHandler[T, P]) Update(c *gin.Context) {
	data, err := bindSnapshot(c, h.svc.Kind())
	if err != nil {
		common.ErrorFrom(c, "Invalid request body", err)
		return
	}

	record, rev, err := h.svc.Update(c.Request.Context(), middleware.GetActor(c), c.Param("id"), data)
	if err != nil {
		common.ErrorFrom(c, "Failed to update content", err)
		return
	}
	common.SuccessResponse(c, mutationResponse{Record: record, Revision: rev}, nil)
}

// Delete handles DELETE /api/v1/{kind}/:id
func (h *ContentHandler[T, P]) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		common.ErrorFrom(c, "Failed to delete content", err)
		return
	}
	common.SuccessResponse(c, gin.H{"id": c.Param("id"), "deleted": true}, nil)
}

// Publish handles POST /api/v1/{kind}/:id/publish (direct publish of the live record)
func (h *ContentHandler[T, P]) Publish(c *gin.Context) {
	record, rev, err := h.svc.Publish(c.Request.Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to publish content", err)
		return
	}
	common.SuccessResponse(c, mutationResponse{Record: record, Revision: rev}, nil)
}

// Unpublish handles POST /api/v1/{kind}/:id/unpublish
func (h *ContentHandler[T, P]) Unpublish(c *gin.Context) {
	if err := h.svc.Unpublish(c.Request.Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		common.ErrorFrom(c, "Failed to unpublish content", err)
		return
	}
	common.SuccessResponse(c, gin.H{"id": c.Param("id"), "status": domain.ContentDraft}, nil)
}

// Register mounts the CRUD routes on group
func (h *ContentHandler[T, P]) Register(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/publish", h.Publish)
	group.POST("/:id/unpublish", h.Unpublish)
}
