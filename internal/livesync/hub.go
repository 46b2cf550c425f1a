// Package livesync fans committed document changes out to live views.
// Changes are published on a Redis channel so every API node sees writes
// made by the others; without Redis the hub delivers in-process only.
package livesync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/isc-maritime/stockroom/internal/docstore"
)

// Channel is the Redis pub/sub channel carrying change batches.
const Channel = "stockroom.changes"

const subscriberBuffer = 64

// Listener reacts to changes committed on this node.
type Listener interface {
	HandleChanges(ctx context.Context, events []docstore.ChangeEvent)
}

type subscriber struct {
	ch          chan docstore.ChangeEvent
	collections map[string]struct{}
}

func (s *subscriber) wants(collection string) bool {
	if len(s.collections) == 0 {
		return true
	}
	_, ok := s.collections[collection]
	return ok
}

// Hub implements docstore.Notifier.
type Hub struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger

	mu        sync.RWMutex
	subs      map[*subscriber]struct{}
	listeners []Listener

	readyOnce sync.Once
	ready     chan struct{}
}

// NewHub builds a hub. client may be nil for single-process deployments.
func NewHub(client *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		client:  client,
		channel: Channel,
		logger:  logger,
		subs:    make(map[*subscriber]struct{}),
		ready:   make(chan struct{}),
	}
}

// AddListener registers a local listener, called synchronously on Notify.
func (h *Hub) AddListener(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// Notify receives committed changes from the document store.
func (h *Hub) Notify(ctx context.Context, events []docstore.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	h.mu.RLock()
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.RUnlock()
	for _, l := range listeners {
		l.HandleChanges(ctx, events)
	}

	if h.client == nil {
		h.deliver(events)
		return
	}
	payload, err := json.Marshal(events)
	if err != nil {
		h.logger.Error("livesync encode failed", slog.Any("error", err))
		return
	}
	if err := h.client.Publish(ctx, h.channel, payload).Err(); err != nil {
		h.logger.Warn("livesync publish failed, delivering locally", slog.Any("error", err))
		h.deliver(events)
	}
}

// Run relays published batches to local subscribers until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	if h.client == nil {
		h.readyOnce.Do(func() { close(h.ready) })
		<-ctx.Done()
		return nil
	}
	pubsub := h.client.Subscribe(ctx, h.channel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.readyOnce.Do(func() { close(h.ready) })

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var events []docstore.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &events); err != nil {
				h.logger.Warn("livesync dropped malformed message", slog.Any("error", err))
				continue
			}
			h.deliver(events)
		}
	}
}

// Ready is closed once Run is receiving messages.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Subscribe streams changes of the given collections (all when none given).
// The channel is closed when ctx ends. Slow readers lose events rather than
// block writers.
func (h *Hub) Subscribe(ctx context.Context, collections ...string) <-chan docstore.ChangeEvent {
	sub := &subscriber{
		ch:          make(chan docstore.ChangeEvent, subscriberBuffer),
		collections: make(map[string]struct{}, len(collections)),
	}
	for _, c := range collections {
		sub.collections[c] = struct{}{}
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.ch)
		h.mu.Unlock()
	}()
	return sub.ch
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) deliver(events []docstore.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		for _, evt := range events {
			if !sub.wants(evt.Collection) {
				continue
			}
			select {
			case sub.ch <- evt:
			default:
				h.logger.Warn("livesync subscriber lagging", slog.String("collection", evt.Collection))
			}
		}
	}
}
