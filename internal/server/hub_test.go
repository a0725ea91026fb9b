package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/models"
	tu "github.com/desertthunder/audiotap/internal/testing"
)

func wsURL(h *harness, query string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws" + query
}

// readUntilClosed collects JSON updates until the server closes the connection.
func readUntilClosed(t *testing.T, conn *websocket.Conn) ([]models.Update, error) {
	t.Helper()
	var updates []models.Update
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	for {
		var u models.Update
		if err := conn.ReadJSON(&u); err != nil {
			return updates, err
		}
		updates = append(updates, u)
	}
}

func TestWebsocketStreamsTask(t *testing.T) {
	h := newHarness(t, 80, nil)
	id := h.start(t, `{"audio_resource": "a.wav", "chunk_size": 4, "pacing_interval": "10ms", "plugins": [{"name": "energy"}]}`)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(h, "?task_id="+id), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	updates, err := readUntilClosed(t, conn)
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal closure, got %v", err)
	}
	if len(updates) == 0 {
		t.Fatal("expected at least the terminal update")
	}

	last := updates[len(updates)-1]
	if !last.Terminal() || last.Status != models.StatusCompleted || last.TaskID != id {
		t.Errorf("last update = %+v, want terminal completed", last)
	}

	prev := -1
	for _, u := range updates[:len(updates)-1] {
		if u.TaskID != id {
			t.Errorf("update for foreign task %s", u.TaskID)
		}
		if u.Chunk <= prev {
			t.Errorf("chunk %d after %d", u.Chunk, prev)
		}
		if u.Offset != u.Chunk*4 {
			t.Errorf("chunk %d offset = %d", u.Chunk, u.Offset)
		}
		prev = u.Chunk
	}
}

func TestWebsocketLateSubscriber(t *testing.T) {
	h := newHarness(t, 10, nil)
	id := h.start(t, energyJob)
	h.wait(t, id)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(h, "?task_id="+id), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	updates, _ := readUntilClosed(t, conn)
	if len(updates) != 1 || updates[0].Status != models.StatusCompleted {
		t.Errorf("late subscriber got %+v, want one terminal update", updates)
	}
}

func TestWebsocketUnknownTask(t *testing.T) {
	h := newHarness(t, 10, nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(h, "?task_id=nope"), nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 response, got %v", resp)
	}
}

func TestWebsocketFollowAll(t *testing.T) {
	h := newHarness(t, 40, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(h, ""), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	tu.Eventually(t, waitTimeout, func() bool { return h.api.Hub().Clients() == 1 }, "client never registered")

	a := h.start(t, energyJob)
	b := h.start(t, energyJob)

	seen := map[string]bool{}
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	for !(seen[a] && seen[b]) {
		var u models.Update
		if err := conn.ReadJSON(&u); err != nil {
			t.Fatalf("read failed before both tasks finished: %v", err)
		}
		if u.Terminal() {
			seen[u.TaskID] = true
		}
	}
}

func TestHubDropsForSlowClient(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := NewHub(quietLogger(), m)

	// a registered client with nobody draining its queue
	c := &client{taskID: "t1", send: make(chan models.Update, 2)}
	hub.clients[c] = struct{}{}
	other := &client{taskID: "t2", send: make(chan models.Update, 2)}
	hub.clients[other] = struct{}{}

	for i := range 5 {
		hub.Emit(models.Update{TaskID: "t1", Chunk: i, Results: models.ChunkResult{}})
	}

	if len(c.send) != 2 {
		t.Errorf("queue length = %d, want 2", len(c.send))
	}
	if len(other.send) != 0 {
		t.Errorf("client for another task received %d updates", len(other.send))
	}
	if got := testutil.ToFloat64(m.UpdatesDropped.WithLabelValues("websocket")); got != 3 {
		t.Errorf("dropped = %v, want 3", got)
	}
}
