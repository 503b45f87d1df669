package domain

import (
	"fmt"

	"github.com/damoang/angple-cms/internal/common"
)

// Snapshot revision payload: a tagged union keyed by Kind.
// Exactly one of the per-kind pointers is set and it must match Kind.
type Snapshot struct {
	Kind     ContentKind   `json:"kind"`
	Course   *CourseData   `json:"course,omitempty"`
	Lesson   *LessonData   `json:"lesson,omitempty"`
	Package  *PackageData  `json:"package,omitempty"`
	BlogPost *BlogPostData `json:"blog_post,omitempty"`
	Page     *PageData     `json:"page,omitempty"`
}

// CourseSnapshot wraps course data as a snapshot
func CourseSnapshot(d CourseData) Snapshot { return Snapshot{Kind: KindCourse, Course: &d} }

// LessonSnapshot wraps lesson data as a snapshot
func LessonSnapshot(d LessonData) Snapshot { return Snapshot{Kind: KindLesson, Lesson: &d} }

// PackageSnapshot wraps package data as a snapshot
func PackageSnapshot(d PackageData) Snapshot { return Snapshot{Kind: KindPackage, Package: &d} }

// BlogPostSnapshot wraps blog post data as a snapshot
func BlogPostSnapshot(d BlogPostData) Snapshot { return Snapshot{Kind: KindBlogPost, BlogPost: &d} }

// PageSnapshot wraps page data as a snapshot
func PageSnapshot(d PageData) Snapshot { return Snapshot{Kind: KindPage, Page: &d} }

func (s Snapshot) variants() int {
	n := 0
	if s.Course != nil {
		n++
	}
	if s.Lesson != nil {
		n++
	}
	if s.Package != nil {
		n++
	}
	if s.BlogPost != nil {
		n++
	}
	if s.Page != nil {
		n++
	}
	return n
}

func (s Snapshot) payloadMatches() bool {
	switch s.Kind {
	case KindCourse:
		return s.Course != nil
	case KindLesson:
		return s.Lesson != nil
	case KindPackage:
		return s.Package != nil
	case KindBlogPost:
		return s.BlogPost != nil
	case KindPage:
		return s.Page != nil
	}
	return false
}

// Validate checks the tag/payload pairing and the payload itself.
func (s Snapshot) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: unknown snapshot kind %q", common.ErrValidation, s.Kind)
	}
	if s.variants() != 1 || !s.payloadMatches() {
		return fmt.Errorf("%w: snapshot payload does not match kind %q", common.ErrValidation, s.Kind)
	}

	switch s.Kind {
	case KindCourse:
		return s.Course.Validate()
	case KindLesson:
		return s.Lesson.Validate()
	case KindPackage:
		return s.Package.Validate()
	case KindBlogPost:
		return s.BlogPost.Validate()
	default:
		return s.Page.Validate()
	}
}

// Title returns the payload title, used in audit metadata and events.
func (s Snapshot) Title() string {
	switch {
	case s.Course != nil:
		return s.Course.Title
	case s.Lesson != nil:
		return s.Lesson.Title
	case s.Package != nil:
		return s.Package.Title
	case s.BlogPost != nil:
		return s.BlogPost.Title
	case s.Page != nil:
		return s.Page.Title
	}
	return ""
}

func mismatch(want ContentKind, s Snapshot) error {
	return fmt.Errorf("%w: cannot apply %q snapshot to %q record", common.ErrValidation, s.Kind, want)
}
