package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/repository"
)

// PackageService course bundles: the generic content operations plus membership edits
type PackageService struct {
	*ContentService[domain.Package, *domain.Package]
	courses *repository.ContentRepository[domain.Course, *domain.Course]
}

// NewPackageService creates a PackageService
func NewPackageService(
	repo *repository.ContentRepository[domain.Package, *domain.Package],
	courses *repository.ContentRepository[domain.Course, *domain.Course],
	deps ContentDeps,
) *PackageService {
	return &PackageService{
		ContentService: NewContentService(repo, deps),
		courses:        courses,
	}
}

// AddCourse appends an existing course to the bundle
func (s *PackageService) AddCourse(ctx context.Context, actor domain.Actor, packageID, courseID string) (*domain.Package, *domain.Revision, error) {
	if err := actor.Require(domain.RoleContentEditor, "add course to package"); err != nil {
		return nil, nil, err
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		return nil, nil, err
	}

	metadata := map[string]interface{}{"course_id": courseID}
	return s.update(ctx, actor, packageID, domain.AuditAddCourse, metadata, func(pkg *domain.Package) error {
		if pkg.HasCourse(courseID) {
			return fmt.Errorf("%w: course %s is already in package %s", common.ErrValidation, courseID, packageID)
		}
		pkg.CourseIDs = append(slices.Clone(pkg.CourseIDs), courseID)
		return nil
	})
}

// RemoveCourse drops a course from the bundle, keeping the order of the rest
func (s *PackageService) RemoveCourse(ctx context.Context, actor domain.Actor, packageID, courseID string) (*domain.Package, *domain.Revision, error) {
	metadata := map[string]interface{}{"course_id": courseID}
	return s.update(ctx, actor, packageID, domain.AuditRemoveCourse, metadata, func(pkg *domain.Package) error {
		if !pkg.HasCourse(courseID) {
			return fmt.Errorf("%w: course %s is not in package %s", common.ErrNotFound, courseID, packageID)
		}
		pkg.CourseIDs = slices.DeleteFunc(slices.Clone(pkg.CourseIDs), func(id string) bool { return id == courseID })
		return nil
	})
}
