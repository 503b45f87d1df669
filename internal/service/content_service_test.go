package service

import (
	"context"
	"testing"

	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/repository"
	"github.com/damoang/angple-cms/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentService_CreateSnapshotsDraft(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(f.courses, f.deps())
	ctx := context.Background()

	course, rev, err := svc.Create(ctx, editor, courseData("Intro to Go"))
	require.NoError(t, err)
	assert.NotEmpty(t, course.GetID())
	assert.Equal(t, domain.ContentDraft, course.GetStatus())
	assert.Equal(t, editor.ID, course.CreatedBy)

	assert.Equal(t, 1, rev.Version)
	assert.Equal(t, domain.RevisionDraft, rev.Status)
	assert.Equal(t, course.GetID(), rev.ContentID)
	assert.Equal(t, "Intro to Go", rev.Data.Course.Title)

	// business-level and revision-level entries are both expected
	assert.Equal(t, []string{domain.AuditSaveDraft, domain.AuditCreate}, f.audit.Actions())
	assert.Equal(t, []string{domain.EventRevisionDraftSaved, domain.EventContentCreated}, f.events.Types())
}

func TestContentService_UpdateReusesDraft(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(f.courses, f.deps())
	ctx := context.Background()

	course, first, err := svc.Create(ctx, editor, courseData("v1"))
	require.NoError(t, err)

	updated, rev, err := svc.Update(ctx, editor, course.GetID(), courseData("v1 edited"))
	require.NoError(t, err)
	assert.Equal(t, "v1 edited", updated.Title)
	assert.Equal(t, first.ID, rev.ID)
	assert.Equal(t, 1, rev.Version)
	assert.Equal(t, "v1 edited", rev.Data.Course.Title)

	stored := f.liveCourse(t, course.GetID())
	assert.Equal(t, "v1 edited", stored.Title)
	assert.Equal(t, domain.ContentDraft, stored.Status)
}

func TestContentService_Validation(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(f.courses, f.deps())
	ctx := context.Background()

	_, _, err := svc.Create(ctx, editor, courseData(""))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, _, err = svc.Create(ctx, editor, domain.PageSnapshot(domain.PageData{Title: "wrong kind"}))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, _, err = svc.Update(ctx, editor, "missing", courseData("x"))
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, _, err = svc.Create(ctx, viewer, courseData("x"))
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, total, err := f.courses.List(ctx, repository.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.audit.Actions())
}

func TestContentService_ReadVisibilityAndCaching(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(f.courses, f.deps())
	ctx := context.Background()

	course, _, err := svc.Create(ctx, editor, courseData("hidden"))
	require.NoError(t, err)
	id := course.GetID()

	_, err = svc.Get(ctx, viewer, id)
	assert.ErrorIs(t, err, common.ErrNotFound, "viewers only see published records")

	got, err := svc.Get(ctx, editor, id)
	require.NoError(t, err)
	assert.Equal(t, "hidden", got.Title)

	p := f.cache.Partition(cache.PartitionCourse)
	_, ok := p.Get(cache.ItemKey(id, scopeOf(editor)))
	assert.True(t, ok, "editor read is cached")
	_, ok = p.Get(cache.ItemKey(id, scopeOf(viewer)))
	assert.False(t, ok, "errors are not cached")

	list, err := svc.List(ctx, viewer, repository.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)

	list, err = svc.List(ctx, editor, repository.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)

	// publishing invalidates every actor's entries for the item and the lists
	_, _, err = svc.Publish(ctx, publisher, id)
	require.NoError(t, err)
	assert.Zero(t, p.Len())

	got, err = svc.Get(ctx, viewer, id)
	require.NoError(t, err)
	assert.True(t, got.IsPublished())

	list, err = svc.List(ctx, viewer, repository.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestContentService_UpdateInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(f.courses, f.deps())
	ctx := context.Background()

	course, _, err := svc.Create(ctx, editor, courseData("before"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, editor, course.GetID())
	require.NoError(t, err)
	assert.Equal(t, "before", got.Title)

	_, _, err = svc.Update(ctx, editor, course.GetID(), courseData("after"))
	require.NoError(t, err)

	got, err = svc.Get(ctx, editor, course.GetID())
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
}

func TestContentService_PublishKeepsLineageCoherent(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(f.courses, f.deps())
	ctx := context.Background()

	course, draft, err := svc.Create(ctx, editor, courseData("direct"))
	require.NoError(t, err)

	_, rev, err := svc.Publish(ctx, editor, course.GetID())
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Nil(t, rev)

	published, rev, err := svc.Publish(ctx, publisher, course.GetID())
	require.NoError(t, err)
	assert.True(t, published.IsPublished())
	assert.Equal(t, draft.ID, rev.ID)
	assert.Equal(t, domain.RevisionPublished, rev.Status)

	drafts, err := f.store.Revisions().ListByStatus(ctx, domain.KindCourse, course.GetID(), domain.RevisionDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	// the published revision can be rolled back to like any other
	_, _, err = svc.Update(ctx, editor, course.GetID(), courseData("edited after publish"))
	require.NoError(t, err)
	_, _, err = svc.Publish(ctx, publisher, course.GetID())
	require.NoError(t, err)

	restored, err := f.workflow.Rollback(ctx, publisher, rev.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Version)
	assert.Equal(t, "direct", f.liveCourse(t, course.GetID()).Title)
}

func TestContentService_PublishLeavesUnreviewedDraftIntact(t *testing.T) {
	f := newFixture(t)
	svc := NewCourseService(f.courses, f.deps())
	ctx := context.Background()

	course, _, err := svc.Create(ctx, editor, courseData("live v1"))
	require.NoError(t, err)
	id := course.GetID()
	_, v1, err := svc.Publish(ctx, publisher, id)
	require.NoError(t, err)

	draft, created, err := f.workflow.SaveDraft(ctx, editor, domain.KindCourse, id, courseData("unreviewed draft edits"))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 2, draft.Version)

	// live data did not change since v1: nothing new to record
	_, rev, err := svc.Publish(ctx, publisher, id)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, rev.ID)
	assert.NotEqual(t, draft.ID, rev.ID)

	stored, err := f.store.Revisions().FindByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RevisionDraft, stored.Status)
	assert.Equal(t, "unreviewed draft edits", stored.Data.Course.Title)
	assert.Nil(t, stored.PublishedAt)
	assert.Equal(t, "live v1", f.liveCourse(t, id).Title)

	// live edited, then the draft overwritten again before publishing
	_, _, err = svc.Update(ctx, editor, id, courseData("live v2"))
	require.NoError(t, err)
	_, _, err = f.workflow.SaveDraft(ctx, editor, domain.KindCourse, id, courseData("still unreviewed"))
	require.NoError(t, err)

	_, rev, err = svc.Publish(ctx, publisher, id)
	require.NoError(t, err)
	assert.NotEqual(t, draft.ID, rev.ID)
	assert.Equal(t, 3, rev.Version)
	assert.Equal(t, domain.RevisionPublished, rev.Status)
	assert.Equal(t, "live v2", rev.Data.Course.Title)
	assert.Equal(t, "live v2", f.liveCourse(t, id).Title)

	history, err := f.workflow.History(ctx, editor, domain.KindCourse, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "live v1", history[0].Data.Course.Title)
	assert.Equal(t, domain.RevisionDraft, history[1].Status)
	assert.Equal(t, "still unreviewed", history[1].Data.Course.Title)
	assert.Equal(t, "live v2", history[2].Data.Course.Title)
}

func TestContentService_UnpublishAndDelete(t *testing.T) {
	f := newFixture(t)
	svc := NewBlogPostService(f.posts, f.deps())
	ctx := context.Background()

	post, _, err := svc.Create(ctx, editor, domain.BlogPostSnapshot(domain.BlogPostData{Title: "Hello", Body: "world"}))
	require.NoError(t, err)
	id := post.GetID()
	_, _, err = svc.Publish(ctx, publisher, id)
	require.NoError(t, err)

	require.NoError(t, svc.Unpublish(ctx, publisher, id))
	_, err = svc.Get(ctx, viewer, id)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, editor, id), common.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, publisher, id))
	_, err = svc.Get(ctx, admin, id)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// history survives deletion
	history, err := f.workflow.History(ctx, editor, domain.KindBlogPost, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.Contains(t, f.audit.Actions(), domain.AuditUnpublish)
	assert.Contains(t, f.audit.Actions(), domain.AuditDelete)
	assert.Contains(t, f.events.Types(), domain.EventContentDeleted)
}

func TestPackageService_Courses(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	courses := NewCourseService(f.courses, deps)
	packages := NewPackageService(f.packages, f.courses, deps)
	ctx := context.Background()

	c1, _, err := courses.Create(ctx, editor, courseData("one"))
	require.NoError(t, err)
	c2, _, err := courses.Create(ctx, editor, courseData("two"))
	require.NoError(t, err)

	pkg, _, err := packages.Create(ctx, editor, domain.PackageSnapshot(domain.PackageData{Title: "Bundle"}))
	require.NoError(t, err)

	pkg, rev, err := packages.AddCourse(ctx, editor, pkg.GetID(), c1.GetID())
	require.NoError(t, err)
	assert.Equal(t, []string{c1.GetID()}, pkg.CourseIDs)
	assert.Equal(t, []string{c1.GetID()}, rev.Data.Package.CourseIDs)

	pkg, _, err = packages.AddCourse(ctx, editor, pkg.GetID(), c2.GetID())
	require.NoError(t, err)
	assert.Equal(t, []string{c1.GetID(), c2.GetID()}, pkg.CourseIDs)

	_, _, err = packages.AddCourse(ctx, editor, pkg.GetID(), c1.GetID())
	assert.ErrorIs(t, err, common.ErrValidation)
	_, _, err = packages.AddCourse(ctx, editor, pkg.GetID(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	pkg, _, err = packages.RemoveCourse(ctx, editor, pkg.GetID(), c1.GetID())
	require.NoError(t, err)
	assert.Equal(t, []string{c2.GetID()}, pkg.CourseIDs)

	_, _, err = packages.RemoveCourse(ctx, editor, pkg.GetID(), c1.GetID())
	assert.ErrorIs(t, err, common.ErrNotFound)

	stored, err := f.packages.FindByID(ctx, pkg.GetID())
	require.NoError(t, err)
	assert.Equal(t, []string{c2.GetID()}, stored.CourseIDs)

	actions := f.audit.Actions()
	assert.Contains(t, actions, domain.AuditAddCourse)
	assert.Contains(t, actions, domain.AuditRemoveCourse)

	revisions, err := f.store.Revisions().ListByContent(ctx, domain.KindPackage, pkg.GetID())
	require.NoError(t, err)
	assert.Len(t, revisions, 1, "membership edits update the single draft")
}

func TestLessonAndPageServices(t *testing.T) {
	f := newFixture(t)
	deps := f.deps()
	lessons := NewLessonService(f.lessons, deps)
	pages := NewPageService(f.pages, deps)
	ctx := context.Background()

	_, _, err := lessons.Create(ctx, editor, domain.LessonSnapshot(domain.LessonData{Title: "no course"}))
	assert.ErrorIs(t, err, common.ErrValidation)

	lesson, rev, err := lessons.Create(ctx, editor, domain.LessonSnapshot(domain.LessonData{CourseID: "c1", Title: "Lesson 1", Position: 1}))
	require.NoError(t, err)
	assert.Equal(t, domain.KindLesson, rev.Kind)
	assert.Equal(t, lesson.GetID(), rev.ContentID)

	page, _, err := pages.Create(ctx, editor, domain.PageSnapshot(domain.PageData{Title: "About", Slug: "about"}))
	require.NoError(t, err)
	_, _, err = pages.Publish(ctx, publisher, page.GetID())
	require.NoError(t, err)

	got, err := pages.Get(ctx, viewer, page.GetID())
	require.NoError(t, err)
	assert.Equal(t, "about", got.Slug)
}
