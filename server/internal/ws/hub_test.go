package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sasilab/sasi/pkg/types"
	"github.com/sasilab/sasi/pkg/viability"
	"github.com/sasilab/sasi/server/internal/store"
	wsHub "github.com/sasilab/sasi/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(runs ...*store.Run) *store.Store {
	st := store.New(5 * time.Minute)
	for _, r := range runs {
		st.Put(context.Background(), r) //nolint:errcheck
	}
	return st
}

func run(name, state string, v float64) *store.Run {
	r := store.NewRun(store.KindFixed, viability.Simple(),
		[]types.Record{{E: 0.8, V: v, State: state}}, time.Now())
	r.Name = name
	return r
}

// startHub serves the hub from a test server and starts its Run loop.
// Returns the ws:// URL, the hub, and a cancel for the loop.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, raw)
	}
	return m
}

// waitCount polls hub.Count until it equals want or the deadline passes.
func waitCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Count: got %d, want %d", hub.Count(), want)
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateRuns(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore(run("stable", "STABLE", 0.444)))

	m := readMessage(t, dial(t, wsURL))
	if m.Event != wsHub.EventRuns {
		t.Errorf("event: got %q, want %q", m.Event, wsHub.EventRuns)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
	if len(m.Data.Runs) != 1 || m.Data.Runs[0].Name != "stable" {
		t.Fatalf("runs: got %+v, want one run named stable", m.Data.Runs)
	}
	if m.Data.Runs[0].State != "STABLE" || m.Data.Runs[0].FinalV != 0.444 {
		t.Errorf("summary: got %+v", m.Data.Runs[0])
	}
}

func TestHub_EmptyStore_EmptyRuns(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore())
	m := readMessage(t, dial(t, wsURL))
	if m.Data.Runs == nil || len(m.Data.Runs) != 0 {
		t.Errorf("runs: got %v, want []", m.Data.Runs)
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i])
	}
	waitCount(t, hub, 3)

	conns[0].Close()
	waitCount(t, hub, 2)
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn) // empty list on connect

	st.Put(context.Background(), run("collapse", "STRUCTURAL_COLLAPSE", 0.091)) //nolint:errcheck

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if len(m.Data.Runs) == 0 {
			continue
		}
		if got := m.Data.Runs[0].Name; got != "collapse" {
			t.Errorf("run name: got %q, want collapse", got)
		}
		return
	}
	t.Fatal("no broadcast carried the new run")
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	waitCount(t, hub, 1)

	cancel()
	waitCount(t, hub, 0)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
