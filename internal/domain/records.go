package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/damoang/angple-cms/internal/common"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", common.ErrValidation, field)
	}
	return nil
}

// ========================================
// Course
// ========================================

// CourseData editable course fields
type CourseData struct {
	Title       string   `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Slug        string   `gorm:"column:slug;type:varchar(255);index" json:"slug"`
	Summary     string   `gorm:"column:summary;type:varchar(500)" json:"summary"`
	Description string   `gorm:"column:description;type:text" json:"description"`
	Level       string   `gorm:"column:level;type:varchar(20)" json:"level"`
	PriceCents  int64    `gorm:"column:price_cents" json:"price_cents"`
	Tags        []string `gorm:"column:tags;type:json;serializer:json" json:"tags,omitempty"`
}

func (d *CourseData) Validate() error {
	if err := required("title", d.Title); err != nil {
		return err
	}
	if d.PriceCents < 0 {
		return fmt.Errorf("%w: price_cents must not be negative", common.ErrValidation)
	}
	return nil
}

// Course live course record
type Course struct {
	LiveMeta
	CourseData
}

func (Course) TableName() string { return "courses" }

func (*Course) ContentKind() ContentKind { return KindCourse }

func (c *Course) Snapshot() Snapshot {
	d := c.CourseData
	d.Tags = slices.Clone(d.Tags)
	return CourseSnapshot(d)
}

func (c *Course) ApplySnapshot(s Snapshot) error {
	if s.Kind != KindCourse || s.Course == nil {
		return mismatch(KindCourse, s)
	}
	c.CourseData = *s.Course
	return nil
}

// ========================================
// Lesson
// ========================================

// LessonData editable lesson fields
type LessonData struct {
	CourseID        string `gorm:"column:course_id;type:varchar(36);index" json:"course_id"`
	Title           string `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Body            string `gorm:"column:body;type:mediumtext" json:"body"`
	Position        int    `gorm:"column:position" json:"position"`
	DurationMinutes int    `gorm:"column:duration_minutes" json:"duration_minutes"`
	VideoURL        string `gorm:"column:video_url;type:varchar(500)" json:"video_url,omitempty"`
}

func (d *LessonData) Validate() error {
	if err := required("course_id", d.CourseID); err != nil {
		return err
	}
	if err := required("title", d.Title); err != nil {
		return err
	}
	if d.Position < 0 || d.DurationMinutes < 0 {
		return fmt.Errorf("%w: position and duration_minutes must not be negative", common.ErrValidation)
	}
	return nil
}

// Lesson live lesson record
type Lesson struct {
	LiveMeta
	LessonData
}

func (Lesson) TableName() string { return "lessons" }

func (*Lesson) ContentKind() ContentKind { return KindLesson }

func (l *Lesson) Snapshot() Snapshot { return LessonSnapshot(l.LessonData) }

func (l *Lesson) ApplySnapshot(s Snapshot) error {
	if s.Kind != KindLesson || s.Lesson == nil {
		return mismatch(KindLesson, s)
	}
	l.LessonData = *s.Lesson
	return nil
}

// ========================================
// Package (course bundle)
// ========================================

// PackageData editable package fields. CourseIDs keeps bundle order.
type PackageData struct {
	Title       string   `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Slug        string   `gorm:"column:slug;type:varchar(255);index" json:"slug"`
	Description string   `gorm:"column:description;type:text" json:"description"`
	PriceCents  int64    `gorm:"column:price_cents" json:"price_cents"`
	CourseIDs   []string `gorm:"column:course_ids;type:json;serializer:json" json:"course_ids"`
}

func (d *PackageData) Validate() error {
	if err := required("title", d.Title); err != nil {
		return err
	}
	if d.PriceCents < 0 {
		return fmt.Errorf("%w: price_cents must not be negative", common.ErrValidation)
	}
	seen := make(map[string]struct{}, len(d.CourseIDs))
	for _, id := range d.CourseIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: course %s listed twice", common.ErrValidation, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// HasCourse reports whether courseID is part of the bundle
func (d *PackageData) HasCourse(courseID string) bool {
	return slices.Contains(d.CourseIDs, courseID)
}

// Package live package record
type Package struct {
	LiveMeta
	PackageData
}

func (Package) TableName() string { return "packages" }

func (*Package) ContentKind() ContentKind { return KindPackage }

func (p *Package) Snapshot() Snapshot {
	d := p.PackageData
	d.CourseIDs = slices.Clone(d.CourseIDs)
	return PackageSnapshot(d)
}

func (p *Package) ApplySnapshot(s Snapshot) error {
	if s.Kind != KindPackage || s.Package == nil {
		return mismatch(KindPackage, s)
	}
	p.PackageData = *s.Package
	return nil
}

// ========================================
// Blog post
// ========================================

// BlogPostData editable blog post fields
type BlogPostData struct {
	Title      string   `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Slug       string   `gorm:"column:slug;type:varchar(255);index" json:"slug"`
	Excerpt    string   `gorm:"column:excerpt;type:varchar(500)" json:"excerpt"`
	Body       string   `gorm:"column:body;type:mediumtext" json:"body"`
	AuthorName string   `gorm:"column:author_name;type:varchar(100)" json:"author_name"`
	Tags       []string `gorm:"column:tags;type:json;serializer:json" json:"tags,omitempty"`
}

func (d *BlogPostData) Validate() error {
	if err := required("title", d.Title); err != nil {
		return err
	}
	return required("slug", d.Slug)
}

// BlogPost live blog post record
type BlogPost struct {
	LiveMeta
	BlogPostData
}

func (BlogPost) TableName() string { return "blog_posts" }

func (*BlogPost) ContentKind() ContentKind { return KindBlogPost }

func (b *BlogPost) Snapshot() Snapshot {
	d := b.BlogPostData
	d.Tags = slices.Clone(d.Tags)
	return BlogPostSnapshot(d)
}

func (b *BlogPost) ApplySnapshot(s Snapshot) error {
	if s.Kind != KindBlogPost || s.BlogPost == nil {
		return mismatch(KindBlogPost, s)
	}
	b.BlogPostData = *s.BlogPost
	return nil
}

// ========================================
// Page
// ========================================

// PageData editable page fields
type PageData struct {
	Title           string `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Slug            string `gorm:"column:slug;type:varchar(255);index" json:"slug"`
	Body            string `gorm:"column:body;type:mediumtext" json:"body"`
	MetaTitle       string `gorm:"column:meta_title;type:varchar(255)" json:"meta_title,omitempty"`
	MetaDescription string `gorm:"column:meta_description;type:varchar(500)" json:"meta_description,omitempty"`
}

func (d *PageData) Validate() error {
	if err := required("title", d.Title); err != nil {
		return err
	}
	return required("slug", d.Slug)
}

// Page live page record
type Page struct {
	LiveMeta
	PageData
}

func (Page) TableName() string { return "pages" }

func (*Page) ContentKind() ContentKind { return KindPage }

func (p *Page) Snapshot() Snapshot { return PageSnapshot(p.PageData) }

func (p *Page) ApplySnapshot(s Snapshot) error {
	if s.Kind != KindPage || s.Page == nil {
		return mismatch(KindPage, s)
	}
	p.PageData = *s.Page
	return nil
}
