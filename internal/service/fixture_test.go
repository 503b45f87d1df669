package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damoang/angple-cms/internal/audit"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/event"
	"github.com/damoang/angple-cms/internal/migration"
	"github.com/damoang/angple-cms/internal/repository"
	"github.com/damoang/angple-cms/pkg/cache"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	viewer    = domain.Actor{ID: "viewer-1", Role: domain.RoleViewer}
	editor    = domain.Actor{ID: "editor-1", Role: domain.RoleContentEditor}
	publisher = domain.Actor{ID: "publisher-1", Role: domain.RolePublisher}
	admin     = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// eventLog collects everything published on the bus
type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) handle(_ context.Context, e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]string, len(l.events))
	for i, e := range l.events {
		types[i] = e.Type
	}
	return types
}

// failingWriter live record writer that always fails
type failingWriter struct {
	kind domain.ContentKind
}

func (w failingWriter) Kind() domain.ContentKind { return w.kind }

func (w failingWriter) Write(context.Context, string, domain.Snapshot) error {
	return errors.New("live record write failed")
}

func (w failingWriter) Exists(context.Context, string) error { return nil }

func (w failingWriter) WithTx(*gorm.DB) repository.LiveRecordWriter { return w }

// deadlockOnceWriter once armed, fails the next Write the way InnoDB reports a deadlock victim
type deadlockOnceWriter struct {
	repository.LiveRecordWriter
	armed *atomic.Bool
}

func (w deadlockOnceWriter) Write(ctx context.Context, contentID string, snapshot domain.Snapshot) error {
	if w.armed.CompareAndSwap(true, false) {
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	}
	return w.LiveRecordWriter.Write(ctx, contentID, snapshot)
}

func (w deadlockOnceWriter) WithTx(tx *gorm.DB) repository.LiveRecordWriter {
	return deadlockOnceWriter{LiveRecordWriter: w.LiveRecordWriter.WithTx(tx), armed: w.armed}
}

type fixture struct {
	db       *gorm.DB
	clock    *fakeClock
	courses  *repository.ContentRepository[domain.Course, *domain.Course]
	lessons  *repository.ContentRepository[domain.Lesson, *domain.Lesson]
	packages *repository.ContentRepository[domain.Package, *domain.Package]
	posts    *repository.ContentRepository[domain.BlogPost, *domain.BlogPost]
	pages    *repository.ContentRepository[domain.Page, *domain.Page]
	store    repository.Store
	audit    *audit.Recorder
	events   *eventLog
	cache    *cache.Manager
	workflow *WorkflowService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	writers  []repository.LiveRecordWriter
	workflow []WorkflowOption
}

func withWriters(writers ...repository.LiveRecordWriter) fixtureOption {
	return func(c *fixtureConfig) { c.writers = append(c.writers, writers...) }
}

func withWorkflowOptions(opts ...WorkflowOption) fixtureOption {
	return func(c *fixtureConfig) { c.workflow = append(c.workflow, opts...) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.Run(db))

	f := &fixture{
		db:       db,
		clock:    &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		courses:  repository.NewCourseRepository(db),
		lessons:  repository.NewLessonRepository(db),
		packages: repository.NewPackageRepository(db),
		posts:    repository.NewBlogPostRepository(db),
		pages:    repository.NewPageRepository(db),
		audit:    &audit.Recorder{},
		events:   &eventLog{},
	}

	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	writers := append([]repository.LiveRecordWriter{f.courses, f.lessons, f.packages, f.posts, f.pages}, cfg.writers...)
	f.store = repository.NewStore(db, writers...)

	bus := event.NewBus()
	bus.Subscribe("test", event.Wildcard, f.events.handle)
	f.cache = cache.NewManager(cache.WithClock(f.clock.Now))

	workflowOpts := append([]WorkflowOption{WithClock(f.clock.Now)}, cfg.workflow...)
	f.workflow = NewWorkflowService(f.store, f.audit, bus, workflowOpts...)
	return f
}

func (f *fixture) deps() ContentDeps {
	return ContentDeps{
		Workflow: f.workflow,
		Audit:    f.audit,
		Events:   f.workflow.events,
		Cache:    f.cache,
		Now:      f.clock.Now,
	}
}

// seedCourse inserts a live course directly, bypassing the service
func (f *fixture) seedCourse(t *testing.T, id, title string) *domain.Course {
	t.Helper()
	course := &domain.Course{CourseData: domain.CourseData{Title: title}}
	course.SetID(id)
	course.SetStatus(domain.ContentDraft)
	course.Touch(editor.ID)
	require.NoError(t, f.courses.Create(context.Background(), course))
	return course
}

func (f *fixture) seedPage(t *testing.T, id, title string) *domain.Page {
	t.Helper()
	page := &domain.Page{PageData: domain.PageData{Title: title, Slug: id}}
	page.SetID(id)
	page.SetStatus(domain.ContentDraft)
	page.Touch(editor.ID)
	require.NoError(t, f.pages.Create(context.Background(), page))
	return page
}

func (f *fixture) liveCourse(t *testing.T, id string) *domain.Course {
	t.Helper()
	course, err := f.courses.FindByID(context.Background(), id)
	require.NoError(t, err)
	return course
}

func courseData(title string) domain.Snapshot {
	return domain.CourseSnapshot(domain.CourseData{Title: title, Level: "beginner"})
}

func strPtr(s string) *string { return &s }
