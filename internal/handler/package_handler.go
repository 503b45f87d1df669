package handler

import (
	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/middleware"
	"github.com/damoang/angple-cms/internal/service"
	"github.com/gin-gonic/gin"
)

// PackageHandler package CRUD plus course membership
type PackageHandler struct {
	*ContentHandler[domain.Package, *domain.Package]
	packages *service.PackageService
}

// NewPackageHandler creates a new PackageHandler
func NewPackageHandler(packages *service.PackageService) *PackageHandler {
	return &PackageHandler{
		ContentHandler: NewContentHandler(packages.ContentService),
		packages:       packages,
	}
}

// AddCourse handles POST /api/v1/packages/:id/courses
func (h *PackageHandler) AddCourse(c *gin.Context) {
	var req struct {
		CourseID string `json:"course_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, 400, "course_id is required", err)
		return
	}

	pkg, rev, err := h.packages.AddCourse(c.Request.Context(), middleware.GetActor(c), c.Param("id"), req.CourseID)
	if err != nil {
		common.ErrorFrom(c, "Failed to add course", err)
		return
	}
	common.SuccessResponse(c, mutationResponse{Record: pkg, Revision: rev}, nil)
}

// RemoveCourse handles DELETE /api/v1/packages/:id/courses/:course_id
func (h *PackageHandler) RemoveCourse(c *gin.Context) {
	pkg, rev, err := h.packages.RemoveCourse(c.Request.Context(), middleware.GetActor(c), c.Param("id"), c.Param("course_id"))
	if err != nil {
		common.ErrorFrom(c, "Failed to remove course", err)
		return
	}
	common.SuccessResponse(c, mutationResponse{Record: pkg, Revision: rev}, nil)
}

// Register mounts CRUD and membership routes on group
func (h *PackageHandler) Register(group *gin.RouterGroup) {
	h.ContentHandler.Register(group)
	group.POST("/:id/courses", h.AddCourse)
	group.DELETE("/:id/courses/:course_id", h.RemoveCourse)
}
