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

	"github.com/climdiff/climdiff/internal/store"
	"github.com/climdiff/climdiff/internal/ws"
	"github.com/climdiff/climdiff/pkg/types"
)

var sel = types.Selection{Model: types.MPIESMLR, Variable: types.NearSurfaceTemp}

// startHub serves hub over httptest and runs its loop until cleanup.
func startHub(t *testing.T, st *store.Store, interval time.Duration) (string, *ws.Hub) {
	t.Helper()
	hub := ws.New(st, interval)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m ws.Message
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestHub_ImmediateRunListOnConnect(t *testing.T) {
	st := store.New(time.Minute)
	st.Create(sel)
	url, _ := startHub(t, st, time.Hour)

	m := readMessage(t, dial(t, url))
	if m.Event != "runs" {
		t.Errorf("event: got %q, want runs", m.Event)
	}
	if len(m.Data.Runs) != 1 || m.Data.Runs[0].State != store.StatePending {
		t.Errorf("runs: %+v", m.Data.Runs)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at missing")
	}
}

func TestHub_BroadcastOnTick(t *testing.T) {
	st := store.New(time.Minute)
	url, _ := startHub(t, st, 20*time.Millisecond)

	conn := dial(t, url)
	if m := readMessage(t, conn); len(m.Data.Runs) != 0 {
		t.Fatalf("initial runs: got %d, want 0", len(m.Data.Runs))
	}
	st.Create(sel)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m := readMessage(t, conn); len(m.Data.Runs) == 1 {
			return
		}
	}
	t.Fatal("new run never broadcast")
}

func TestHub_NotifyBroadcastsImmediately(t *testing.T) {
	st := store.New(time.Minute)
	url, hub := startHub(t, st, time.Hour)

	conn := dial(t, url)
	readMessage(t, conn)

	r := st.Create(sel)
	st.Start(r.ID)
	hub.Notify()

	m := readMessage(t, conn)
	if len(m.Data.Runs) != 1 || m.Data.Runs[0].State != store.StateRunning {
		t.Errorf("runs after notify: %+v", m.Data.Runs)
	}
}

func TestHub_Count(t *testing.T) {
	url, hub := startHub(t, store.New(time.Minute), time.Hour)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, url)
		readMessage(t, conns[i])
	}
	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}

	conns[0].Close()
	time.Sleep(50 * time.Millisecond) // let readLoop see the close
	if n := hub.Count(); n != 2 {
		t.Errorf("Count after disconnect: got %d, want 2", n)
	}
}
