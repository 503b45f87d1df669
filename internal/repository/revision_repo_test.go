package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/migration"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "DB 생성 실패")

	// one connection: every goroutine sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, migration.Run(db))
	return db
}

func newRevision(kind domain.ContentKind, contentID string, status domain.RevisionStatus) *domain.Revision {
	rev := &domain.Revision{
		ID:        uuid.NewString(),
		Kind:      kind,
		ContentID: contentID,
		Data:      domain.CourseSnapshot(domain.CourseData{Title: "t"}),
		CreatedBy: "editor-1",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	rev.SetStatus(status)
	return rev
}

func TestNextVersion_EmptyStartsAtOne(t *testing.T) {
	next, err := nextVersion(setupTestDB(t), domain.KindCourse, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestIsLockConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}, true},
		{"lock wait timeout", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, true},
		{"wrapped deadlock", fmt.Errorf("write live course c1: %w", &mysql.MySQLError{Number: 1213}), true},
		{"already classified", fmt.Errorf("%w: boom", ErrLockConflict), true},
		{"duplicate entry", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLockConflict(tt.err))
		})
	}
}

func TestCreateNextVersion_Sequential(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		rev := newRevision(domain.KindCourse, "c1", domain.RevisionPublished)
		require.NoError(t, repo.CreateNextVersion(ctx, rev))
		assert.Equal(t, i, rev.Version)
	}

	// other content ids keep their own sequence
	other := newRevision(domain.KindCourse, "c2", domain.RevisionPublished)
	require.NoError(t, repo.CreateNextVersion(ctx, other))
	assert.Equal(t, 1, other.Version)

	// same id under another kind is another key
	lesson := newRevision(domain.KindLesson, "c1", domain.RevisionPublished)
	require.NoError(t, repo.CreateNextVersion(ctx, lesson))
	assert.Equal(t, 1, lesson.Version)
}

func TestCreateNextVersion_ConcurrentWritersAreGapless(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))
	ctx := context.Background()

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.CreateNextVersion(ctx, newRevision(domain.KindPage, "p1", domain.RevisionPublished))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	revisions, err := repo.ListByContent(ctx, domain.KindPage, "p1")
	require.NoError(t, err)
	versions := make([]int, 0, len(revisions))
	for _, r := range revisions {
		versions = append(versions, r.Version)
	}
	sort.Ints(versions)
	for i, v := range versions {
		assert.Equal(t, i+1, v)
	}
	assert.Len(t, versions, writers)
}

func TestCreateNextVersion_SecondDraftRejected(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.CreateNextVersion(ctx, newRevision(domain.KindCourse, "c1", domain.RevisionDraft)))

	err := repo.CreateNextVersion(ctx, newRevision(domain.KindCourse, "c1", domain.RevisionDraft))
	assert.ErrorIs(t, err, ErrDraftExists)

	drafts, err := repo.ListByStatus(ctx, domain.KindCourse, "c1", domain.RevisionDraft)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestFindDraft_FollowsStatus(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))
	ctx := context.Background()

	none, err := repo.FindDraft(ctx, domain.KindCourse, "c1")
	require.NoError(t, err)
	assert.Nil(t, none)

	rev := newRevision(domain.KindCourse, "c1", domain.RevisionDraft)
	require.NoError(t, repo.CreateNextVersion(ctx, rev))

	draft, err := repo.FindDraft(ctx, domain.KindCourse, "c1")
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, rev.ID, draft.ID)
	assert.Equal(t, "t", draft.Data.Course.Title)

	// leaving Draft frees the slot
	draft.SetStatus(domain.RevisionPendingReview)
	require.NoError(t, repo.Save(ctx, draft))

	none, err = repo.FindDraft(ctx, domain.KindCourse, "c1")
	require.NoError(t, err)
	assert.Nil(t, none)

	// and a new draft can take it
	require.NoError(t, repo.CreateNextVersion(ctx, newRevision(domain.KindCourse, "c1", domain.RevisionDraft)))
}

func TestSave_DraftSlotTaken(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))
	ctx := context.Background()

	rejected := newRevision(domain.KindCourse, "c1", domain.RevisionNeedsChanges)
	require.NoError(t, repo.CreateNextVersion(ctx, rejected))
	require.NoError(t, repo.CreateNextVersion(ctx, newRevision(domain.KindCourse, "c1", domain.RevisionDraft)))

	rejected.SetStatus(domain.RevisionDraft)
	assert.ErrorIs(t, repo.Save(ctx, rejected), ErrDraftExists)
}

func TestFindLatest(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateNextVersion(ctx, newRevision(domain.KindCourse, "c1", domain.RevisionPublished)))
	}

	latest, err := repo.FindLatest(ctx, domain.KindCourse, "c1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3, latest.Version)

	missing, err := repo.FindLatest(ctx, domain.KindCourse, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByID_NotFound(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestClearExpiredPreviews(t *testing.T) {
	repo := NewRevisionRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := newRevision(domain.KindPage, "p1", domain.RevisionDraft)
	expiredToken, expiredAt := "tok-expired", now.Add(-time.Minute)
	expired.PreviewToken, expired.PreviewExpiresAt = &expiredToken, &expiredAt
	require.NoError(t, repo.CreateNextVersion(ctx, expired))

	active := newRevision(domain.KindPage, "p2", domain.RevisionDraft)
	activeToken, activeAt := "tok-active", now.Add(time.Hour)
	active.PreviewToken, active.PreviewExpiresAt = &activeToken, &activeAt
	require.NoError(t, repo.CreateNextVersion(ctx, active))

	cleared, err := repo.ClearExpiredPreviews(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	_, err = repo.FindByPreviewToken(ctx, "tok-expired")
	assert.ErrorIs(t, err, common.ErrNotFound)

	found, err := repo.FindByPreviewToken(ctx, "tok-active")
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)
}
