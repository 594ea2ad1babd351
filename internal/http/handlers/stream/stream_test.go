package stream

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/guard"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
	"github.com/magabrotheeeer/openconnect-gateway/internal/session"
)

type fakeSource struct {
	mu    sync.Mutex
	state session.State
	subs  []chan struct{}
}

func (f *fakeSource) Snapshot() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSource) set(st session.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func startServer(t *testing.T, src *fakeSource) *websocket.Conn {
	t.Helper()
	routes := config.Routes{Login: "/auth/login", Onboarding: "/onboarding", Landing: "/profile", AdminLanding: "/admin"}
	g := guard.New(routes, guard.DefaultViews(routes))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(log, g, func(*http.Request) (guard.StateSource, bool) { return src, true })

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func TestStream_PushesDecisionOnSessionChange(t *testing.T) {
	src := &fakeSource{state: session.State{
		IsAuthenticated:        true,
		HasCompletedOnboarding: true,
		User:                   &models.User{ID: "u1", HasCompletedProfile: true},
	}}
	ws := startServer(t, src)

	require.NoError(t, ws.WriteJSON(Message{Path: "/profile"}))
	ev := read(t, ws)
	require.Equal(t, "decision", ev.Type)
	require.NotNil(t, ev.Decision)
	assert.Equal(t, guard.Render, ev.Decision.Action)
	assert.Equal(t, "profile", ev.Decision.View)

	require.Eventually(t, func() bool { return src.subscribers() == 1 }, time.Second, 5*time.Millisecond)
	src.set(session.State{})

	ev = read(t, ws)
	require.NotNil(t, ev.Decision)
	assert.Equal(t, "login", ev.Decision.View)
	assert.Equal(t, "/auth/login", ev.Decision.Target)
	assert.Equal(t, "anonymous", ev.Decision.State)
}

func TestStream_RejectsRelativePath(t *testing.T) {
	ws := startServer(t, &fakeSource{})

	require.NoError(t, ws.WriteJSON(Message{Path: "profile"}))
	ev := read(t, ws)
	assert.Equal(t, "error", ev.Type)
	assert.Nil(t, ev.Decision)
}

func TestConn_CloseSerializedWithSend(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peer, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer peer.Close()
		for {
			if _, _, err := peer.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	c := &conn{ws: ws}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if err := c.send(Event{Type: "decision"}); err != nil {
					return
				}
			}
		}()
	}
	require.NoError(t, c.close())
	wg.Wait()

	assert.ErrorIs(t, c.send(Event{Type: "decision"}), errClosed)
	assert.ErrorIs(t, c.ping(), errClosed)
	assert.NoError(t, c.close())
}
