package routes

import (
	"net/http"
	"strings"

	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/handler"
	"github.com/damoang/angple-cms/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers everything Setup mounts
type Handlers struct {
	Workflow  *handler.WorkflowHandler
	Courses   *handler.ContentHandler[domain.Course, *domain.Course]
	Lessons   *handler.ContentHandler[domain.Lesson, *domain.Lesson]
	Packages  *handler.PackageHandler
	BlogPosts *handler.ContentHandler[domain.BlogPost, *domain.BlogPost]
	Pages     *handler.ContentHandler[domain.Page, *domain.Page]
}

// Setup configures all API routes. previewPath is the public preview prefix (e.g. /preview/).
func Setup(router *gin.Engine, h Handlers, verifier middleware.TokenVerifier, previewPath string) {
	// Public preview: the token itself is the credential
	router.GET(PreviewRoute(previewPath), h.Workflow.ResolvePreview)

	api := router.Group("/api/v1", middleware.ActorAuth(verifier))

	// Content CRUD (역할 검사는 서비스 레이어에서)
	h.Courses.Register(api.Group("/courses"))
	h.Lessons.Register(api.Group("/lessons"))
	h.Packages.Register(api.Group("/packages"))
	h.BlogPosts.Register(api.Group("/blog-posts"))
	h.Pages.Register(api.Group("/pages"))

	// Revision history and drafts by (kind, id)
	contents := api.Group("/contents/:kind/:id")
	contents.GET("/revisions", h.Workflow.History)
	contents.PUT("/draft", h.Workflow.SaveDraft)

	// Revision workflow
	revisions := api.Group("/revisions/:id")
	revisions.GET("", h.Workflow.GetRevision)
	revisions.POST("/submit", h.Workflow.Submit)
	revisions.POST("/approve", h.Workflow.Approve)
	revisions.POST("/reject", h.Workflow.Reject)
	revisions.POST("/publish", h.Workflow.Publish)
	revisions.POST("/rollback", h.Workflow.Rollback)
	revisions.POST("/preview", h.Workflow.CreatePreview)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})
}

// PreviewRoute turns a preview URL prefix into a gin route pattern
func PreviewRoute(prefix string) string {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = "/preview"
	}
	return prefix + "/:token"
}
