// Package mq publishes storefront events on a Redis channel for downstream
// consumers (fulfilment, analytics).
package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Channel = "storefront-events"

const (
	CheckoutCreated = "checkout.created"
	ReviewCreated   = "review.created"
)

// Event is the message published for every storefront action worth announcing.
type Event struct {
	Name     string         `json:"name"`
	UserID   string         `json:"user_id"`
	EntityID string         `json:"entity_id"`
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}

// Emitter publishes events. Emit never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

type RedisEmitter struct {
	rdb *redis.Client
}

func NewRedisEmitter(rdb *redis.Client) *RedisEmitter {
	return &RedisEmitter{rdb: rdb}
}

func (e *RedisEmitter) Emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("marshal event", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	// publish even if the request was cancelled after it succeeded
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		zap.L().Warn("publish event", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	zap.L().Debug("event published", zap.String("event", ev.Name), zap.String("entity_id", ev.EntityID))
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
