package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-cms/internal/domain"
	"github.com/stretchr/testify/assert"
)

func testEvent(eventType string) domain.Event {
	return domain.Event{
		Type:       eventType,
		EntityKind: domain.KindCourse,
		EntityID:   "c1",
		Payload:    map[string]interface{}{"version": 1},
		Timestamp:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ActorID:    "publisher-1",
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()

	var received domain.Event
	bus.Subscribe("cache", domain.EventRevisionPublished, func(_ context.Context, e domain.Event) {
		received = e
	})

	bus.Publish(context.Background(), testEvent(domain.EventRevisionPublished))

	assert.Equal(t, domain.EventRevisionPublished, received.Type)
	assert.Equal(t, "c1", received.EntityID)
	assert.Equal(t, 1, received.Payload["version"])
}

func TestBus_WildcardAndTopicIsolation(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var seen []string
	record := func(name string) Handler {
		return func(_ context.Context, e domain.Event) {
			mu.Lock()
			seen = append(seen, name+":"+e.Type)
			mu.Unlock()
		}
	}
	bus.Subscribe("all", Wildcard, record("all"))
	bus.Subscribe("drafts", domain.EventRevisionDraftSaved, record("drafts"))

	bus.Publish(context.Background(), testEvent(domain.EventContentCreated))
	bus.Publish(context.Background(), testEvent(domain.EventRevisionDraftSaved))

	assert.Equal(t, []string{
		"all:" + domain.EventContentCreated,
		"drafts:" + domain.EventRevisionDraftSaved,
		"all:" + domain.EventRevisionDraftSaved,
	}, seen)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var called bool
	bus.Subscribe("a", domain.EventContentUpdated, func(context.Context, domain.Event) { called = true })
	bus.Subscribe("b", domain.EventContentUpdated, func(context.Context, domain.Event) {})
	bus.Unsubscribe("a")

	bus.Publish(context.Background(), testEvent(domain.EventContentUpdated))

	assert.False(t, called)
	assert.Equal(t, map[string][]string{domain.EventContentUpdated: {"b"}}, bus.Subscriptions())
}

func TestBus_PanicRecovery(t *testing.T) {
	bus := NewBus()

	var secondCalled bool
	bus.Subscribe("bad", domain.EventContentDeleted, func(context.Context, domain.Event) { panic("boom") })
	bus.Subscribe("good", domain.EventContentDeleted, func(context.Context, domain.Event) { secondCalled = true })

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), testEvent(domain.EventContentDeleted))
	})
	assert.True(t, secondCalled)
}

func TestMulti(t *testing.T) {
	first, second := NewBus(), NewBus()
	var count int
	first.Subscribe("x", Wildcard, func(context.Context, domain.Event) { count++ })
	second.Subscribe("y", Wildcard, func(context.Context, domain.Event) { count++ })

	Multi{first, nil, second, Nop{}}.Publish(context.Background(), testEvent(domain.EventContentCreated))
	assert.Equal(t, 2, count)
}
