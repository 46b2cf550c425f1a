package livesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/isc-maritime/stockroom/internal/docstore"
	"github.com/isc-maritime/stockroom/internal/platform/httpx"
)

const heartbeatInterval = 25 * time.Second

// Snapshot is the full content of one collection pushed to a live view.
type Snapshot struct {
	Collection string           `json:"collection"`
	Documents  []map[string]any `json:"documents"`
}

// Handler streams collection snapshots as Server-Sent Events.
type Handler struct {
	hub       *Hub
	reader    docstore.Reader
	allowed   map[string]struct{}
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler builds the stream handler. Only the listed collections can be
// watched.
func NewHandler(hub *Hub, reader docstore.Reader, logger *slog.Logger, collections ...string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		allowed[c] = struct{}{}
	}
	return &Handler{hub: hub, reader: reader, allowed: allowed, logger: logger, heartbeat: heartbeatInterval}
}

// MountRoutes registers the stream endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.Stream)
}

// Stream sends one snapshot per requested collection, then a fresh snapshot
// whenever that collection changes, until the client disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	collections, err := h.parseCollections(r.URL.Query().Get("collections"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "streaming unsupported")
		return
	}
	ctx := r.Context()
	events := h.hub.Subscribe(ctx, collections...)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, c := range collections {
		if err := h.sendSnapshot(ctx, w, c); err != nil {
			h.logger.Warn("live snapshot failed", slog.String("collection", c), slog.Any("error", err))
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, ok := <-events:
			if !ok {
				return
			}
			dirty := map[string]struct{}{evt.Collection: {}}
			order := []string{evt.Collection}
		drain:
			for {
				select {
				case more, ok := <-events:
					if !ok {
						return
					}
					if _, seen := dirty[more.Collection]; !seen {
						dirty[more.Collection] = struct{}{}
						order = append(order, more.Collection)
					}
				default:
					break drain
				}
			}
			for _, c := range order {
				if err := h.sendSnapshot(ctx, w, c); err != nil {
					h.logger.Warn("live snapshot failed", slog.String("collection", c), slog.Any("error", err))
					return
				}
			}
			flusher.Flush()
		}
	}
}

// LoadSnapshot reads a collection with each document's id folded into it.
func LoadSnapshot(ctx context.Context, reader docstore.Reader, collection string) (Snapshot, error) {
	docs, err := reader.List(ctx, collection)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Collection: collection, Documents: make([]map[string]any, 0, len(docs))}
	for _, doc := range docs {
		fields := map[string]any{}
		if err := json.Unmarshal(doc.Data, &fields); err != nil {
			return Snapshot{}, fmt.Errorf("livesync: decode %s/%s: %w", collection, doc.ID, err)
		}
		fields["id"] = doc.ID
		snap.Documents = append(snap.Documents, fields)
	}
	return snap, nil
}

func (h *Handler) sendSnapshot(ctx context.Context, w http.ResponseWriter, collection string) error {
	snap, err := LoadSnapshot(ctx, h.reader, collection)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
	return err
}

func (h *Handler) parseCollections(raw string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		c := strings.TrimSpace(part)
		if c == "" {
			continue
		}
		if _, ok := h.allowed[c]; !ok {
			return nil, fmt.Errorf("unknown collection %q", c)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("collections parameter required")
	}
	return out, nil
}
