package handler

import (
	"fmt"
	"strconv"

	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/repository"
	"github.com/gin-gonic/gin"
)

// bindSnapshot decodes the request body as the payload of the given kind.
// Clients send the bare payload ({"title": ...}); the kind comes from the route.
func bindSnapshot(c *gin.Context, kind domain.ContentKind) (domain.Snapshot, error) {
	s := domain.Snapshot{Kind: kind}
	var target interface{}
	switch kind {
	case domain.KindCourse:
		s.Course = &domain.CourseData{}
		target = s.Course
	case domain.KindLesson:
		s.Lesson = &domain.LessonData{}
		target = s.Lesson
	case domain.KindPackage:
		s.Package = &domain.PackageData{}
		target = s.Package
	case domain.KindBlogPost:
		s.BlogPost = &domain.BlogPostData{}
		target = s.BlogPost
	case domain.KindPage:
		s.Page = &domain.PageData{}
		target = s.Page
	default:
		return s, fmt.Errorf("%w: unknown content kind %q", common.ErrValidation, kind)
	}

	if err := c.ShouldBindJSON(target); err != nil {
		return s, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return s, nil
}

// listFilter reads page/limit/status query parameters
func listFilter(c *gin.Context) repository.ListFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return repository.ListFilter{
		Page:   page,
		Limit:  limit,
		Status: domain.ContentStatus(c.Query("status")),
	}.Normalize()
}
