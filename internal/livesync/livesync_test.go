package livesync

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/isc-maritime/stockroom/internal/docstore"
)

type countingListener struct {
	calls int
}

func (l *countingListener) HandleChanges(ctx context.Context, events []docstore.ChangeEvent) {
	l.calls += len(events)
}

func receive(t *testing.T, ch <-chan docstore.ChangeEvent) docstore.ChangeEvent {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return docstore.ChangeEvent{}
}

func TestHubRelaysThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(client, nil)
	listener := &countingListener{}
	hub.AddListener(listener)
	go func() { _ = hub.Run(ctx) }()
	select {
	case <-hub.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("hub never subscribed")
	}

	ch := hub.Subscribe(ctx, "consumables")
	hub.Notify(ctx, []docstore.ChangeEvent{
		{Collection: "purchases", ID: "p1", Op: docstore.OpPut},
		{Collection: "consumables", ID: "CON-001", Op: docstore.OpPut},
	})

	evt := receive(t, ch)
	require.Equal(t, "consumables", evt.Collection)
	require.Equal(t, "CON-001", evt.ID)
	require.Equal(t, 2, listener.calls)
}

func TestHubLocalDeliveryAndUnsubscribe(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	require.Equal(t, 1, hub.Subscribers())

	hub.Notify(context.Background(), []docstore.ChangeEvent{{Collection: "issuedItems", ID: "ISSUE-001", Op: docstore.OpDelete}})
	evt := receive(t, ch)
	require.Equal(t, docstore.OpDelete, evt.Op)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-ch
	require.False(t, open)
}

func readEvent(t *testing.T, r *bufio.Reader) (string, Snapshot) {
	t.Helper()
	var name string
	var snap Snapshot
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, snap
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap))
		}
	}
}

func putDoc(t *testing.T, store docstore.Store, id, name string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		return docstore.PutAs(ctx, tx, "consumables", id, map[string]any{"name": name})
	})
	require.NoError(t, err)
}

func TestStreamSendsSnapshots(t *testing.T) {
	hub := NewHub(nil, nil)
	store := docstore.NewMemory(hub)
	putDoc(t, store, "CON-001", "Rope")

	router := chi.NewRouter()
	NewHandler(hub, store, nil, "consumables", "purchases").MountRoutes(router)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?collections=nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/?collections=consumables", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, snap := readEvent(t, reader)
	require.Equal(t, "snapshot", name)
	require.Equal(t, "consumables", snap.Collection)
	require.Len(t, snap.Documents, 1)
	require.Equal(t, "CON-001", snap.Documents[0]["id"])

	putDoc(t, store, "CON-002", "Paint")
	_, snap = readEvent(t, reader)
	require.Len(t, snap.Documents, 2)
	require.Equal(t, "Paint", snap.Documents[1]["name"])
}
