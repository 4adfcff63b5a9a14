// Package hooks processes post-mutation events from the listings and demand
// subsystems through a bounded worker queue: embedding synchronization,
// cascade deletes, and cache invalidation.
package hooks

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/domain"
	"github.com/casavia/matchengine/internal/metrics"
)

// EventKind identifies the mutation that occurred.
type EventKind string

// Event kinds.
const (
	PropertyMutated EventKind = "property_mutated"
	DemandMutated   EventKind = "demand_mutated"
	EntityDeleted   EventKind = "entity_deleted"
)

// Cache namespaces invalidated by mutations.
const (
	NSProperty       = "property"
	NSPropertySearch = "properties"
	NSDemand         = "demand"
)

// Event is one mutation notification.
type Event struct {
	Kind  EventKind        `json:"kind"`
	Owner domain.OwnerType `json:"owner"`
	ID    string           `json:"id"`
}

// Synchronizer maintains embedding records.
type Synchronizer interface {
	SyncProperty(ctx context.Context, id string) (bool, error)
	SyncDemand(ctx context.Context, id string) (bool, error)
	DeleteEmbedding(ctx context.Context, owner domain.OwnerType, id string) error
}

// CacheInvalidator drops cache entries made stale by a mutation.
type CacheInvalidator interface {
	Key(namespace, id string) string
	Invalidate(ctx context.Context, key string)
	InvalidateNamespace(ctx context.Context, namespace string)
}

// MatchStore cascades match deletion when an endpoint entity is deleted.
type MatchStore interface {
	DeleteForDemand(ctx context.Context, demandID string) error
	DeleteForProperty(ctx context.Context, propertyID string) error
}

// Queue is a bounded post-mutation work queue. Notify never blocks the
// mutation path: a full queue is reported to the caller instead of stalling
// or silently dropping.
type Queue struct {
	events  chan Event
	workers int
	syncer  Synchronizer
	cache   CacheInvalidator
	matches MatchStore
	logger  *zap.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a hook queue.
func New(queueSize, workers int, syncer Synchronizer, cache CacheInvalidator, matches MatchStore, logger *zap.Logger) *Queue {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 2
	}
	return &Queue{
		events:  make(chan Event, queueSize),
		workers: workers,
		syncer:  syncer,
		cache:   cache,
		matches: matches,
		logger:  logger,
	}
}

// Start launches the worker goroutines. Workers exit when ctx is canceled
// or Close drains the queue.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case e, ok := <-q.events:
					if !ok {
						return
					}
					q.process(ctx, e)
				}
			}
		}()
	}
}

// Close stops accepting events and waits for in-flight work.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.events) })
	q.wg.Wait()
}

// Notify enqueues a mutation event. Returns domain.ErrQueueFull when the
// queue is saturated; the caller decides whether to retry or log.
func (q *Queue) Notify(e Event) error {
	select {
	case q.events <- e:
		return nil
	default:
		metrics.HookEventsTotal.WithLabelValues(string(e.Kind), "rejected").Inc()
		return domain.ErrQueueFull
	}
}

// Process handles one event synchronously. Exposed for callers that want to
// await the result instead of enqueueing.
func (q *Queue) Process(ctx context.Context, e Event) error {
	return q.handle(ctx, e)
}

func (q *Queue) process(ctx context.Context, e Event) {
	if err := q.handle(ctx, e); err != nil {
		metrics.HookEventsTotal.WithLabelValues(string(e.Kind), "failed").Inc()
		q.logger.Warn("Hook event failed",
			zap.String("kind", string(e.Kind)),
			zap.String("owner", string(e.Owner)),
			zap.String("id", e.ID),
			zap.Error(err))
		return
	}
	metrics.HookEventsTotal.WithLabelValues(string(e.Kind), "processed").Inc()
}

func (q *Queue) handle(ctx context.Context, e Event) error {
	switch e.Kind {
	case PropertyMutated:
		q.cache.Invalidate(ctx, q.cache.Key(NSProperty, e.ID))
		q.cache.InvalidateNamespace(ctx, NSPropertySearch)
		_, err := q.syncer.SyncProperty(ctx, e.ID)
		return err

	case DemandMutated:
		q.cache.Invalidate(ctx, q.cache.Key(NSDemand, e.ID))
		_, err := q.syncer.SyncDemand(ctx, e.ID)
		return err

	case EntityDeleted:
		return q.handleDeleted(ctx, e)

	default:
		q.logger.Warn("Unknown hook event kind", zap.String("kind", string(e.Kind)))
		return nil
	}
}

func (q *Queue) handleDeleted(ctx context.Context, e Event) error {
	if err := q.syncer.DeleteEmbedding(ctx, e.Owner, e.ID); err != nil {
		return err
	}

	switch e.Owner {
	case domain.OwnerProperty:
		q.cache.Invalidate(ctx, q.cache.Key(NSProperty, e.ID))
		q.cache.InvalidateNamespace(ctx, NSPropertySearch)
		return q.matches.DeleteForProperty(ctx, e.ID)
	case domain.OwnerDemand:
		q.cache.Invalidate(ctx, q.cache.Key(NSDemand, e.ID))
		return q.matches.DeleteForDemand(ctx, e.ID)
	}
	return nil
}
