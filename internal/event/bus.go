package event

import (
	"context"
	"sync"

	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/pkg/logger"
)

// Wildcard topic that receives every event
const Wildcard = "*"

// Publisher fire-and-forget event delivery, at most once
type Publisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// Handler 이벤트 핸들러 함수
type Handler func(ctx context.Context, event domain.Event)

type subscription struct {
	subscriber string
	handler    Handler
}

// Bus in-process publish/subscribe keyed by event type
type Bus struct {
	subscribers map[string][]subscription // topic -> handlers
	mu          sync.RWMutex
}

// NewBus 생성자
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]subscription)}
}

// Subscribe 토픽 구독. topic "*" receives every event.
func (b *Bus) Subscribe(subscriber, topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{
		subscriber: subscriber,
		handler:    handler,
	})
	logger.GetLogger().Debug().Str("subscriber", subscriber).Str("topic", topic).Msg("event subscription added")
}

// Unsubscribe 구독자의 모든 구독 해제
func (b *Bus) Unsubscribe(subscriber string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subscribers {
		var remaining []subscription
		for _, s := range subs {
			if s.subscriber != subscriber {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = remaining
		}
	}
}

// Publish 이벤트 발행 (동기: 모든 핸들러 순차 실행)
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subscribers[event.Type])+len(b.subscribers[Wildcard]))
	subs = append(subs, b.subscribers[event.Type]...)
	if event.Type != Wildcard {
		subs = append(subs, b.subscribers[Wildcard]...)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.GetLogger().Error().
						Str("topic", event.Type).
						Str("subscriber", s.subscriber).
						Interface("panic", r).
						Msg("event handler panicked")
				}
			}()
			s.handler(ctx, event)
		}()
	}
}

// Subscriptions 구독 현황 조회
func (b *Bus) Subscriptions() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string][]string)
	for topic, subs := range b.subscribers {
		for _, s := range subs {
			result[topic] = append(result[topic], s.subscriber)
		}
	}
	return result
}

// Multi fans one publish out to several publishers
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event domain.Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) {}
