package service

import (
	"context"
	"fmt"

	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/internal/event"
	"github.com/damoang/angple-cms/pkg/cache"
	"github.com/damoang/angple-cms/pkg/logger"
)

// PostPublishHook best-effort side effect run after a publish or rollback committed
type PostPublishHook struct {
	Name string
	Run  func(ctx context.Context, revision *domain.Revision) error
}

// runHooks starts every hook on its own goroutine with a timeout.
// Failures and panics are logged and counted, never returned.
func (s *WorkflowService) runHooks(ctx context.Context, revision *domain.Revision) {
	if len(s.hooks) == 0 {
		return
	}
	// copy: the caller owns revision and may keep using it
	snapshot := *revision
	base := context.WithoutCancel(ctx)
	l := logger.WithRevision(*logger.FromContext(ctx), string(snapshot.Kind), snapshot.ContentID, snapshot.ID, snapshot.Version)

	for _, hook := range s.hooks {
		s.hookWG.Add(1)
		go func(hook PostPublishHook) {
			defer s.hookWG.Done()
			hookCtx, cancel := context.WithTimeout(base, s.hookTimeout)
			defer cancel()

			if err := safeRun(hookCtx, hook, &snapshot); err != nil {
				hookFailures.WithLabelValues(hook.Name).Inc()
				l.Warn().Err(err).Str("hook", hook.Name).Msg("post-publish hook failed")
			}
		}(hook)
	}
}

func safeRun(ctx context.Context, hook PostPublishHook, revision *domain.Revision) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook.Run(ctx, revision)
}

// WaitForHooks blocks until every started hook returned (shutdown and tests)
func (s *WorkflowService) WaitForHooks() {
	s.hookWG.Wait()
}

// PartitionFor cache partition holding live records of kind
func PartitionFor(kind domain.ContentKind) string {
	switch kind {
	case domain.KindCourse:
		return cache.PartitionCourse
	case domain.KindLesson:
		return cache.PartitionLesson
	case domain.KindPackage:
		return cache.PartitionPackage
	case domain.KindBlogPost:
		return cache.PartitionBlog
	default:
		return cache.PartitionPage
	}
}

// CacheInvalidationHook purges the published item and its kind's lists
func CacheInvalidationHook(manager *cache.Manager) PostPublishHook {
	return PostPublishHook{
		Name: "cache_invalidation",
		Run: func(_ context.Context, revision *domain.Revision) error {
			manager.InvalidateItem(PartitionFor(revision.Kind), revision.ContentID)
			return nil
		},
	}
}

// InvalidateOnEvent bus handler that drops cached entries for events relayed
// from other instances, whose local caches the hook above cannot reach.
func InvalidateOnEvent(manager *cache.Manager) event.Handler {
	return func(_ context.Context, e domain.Event) {
		if !e.ChangesLiveRecord() || e.EntityID == "" {
			return
		}
		manager.InvalidateItem(PartitionFor(e.EntityKind), e.EntityID)
	}
}
