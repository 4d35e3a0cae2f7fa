package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepid/tracker/internal/storage"
	"github.com/livepid/tracker/pkg/core"
	"github.com/livepid/tracker/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_session/end_session.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	secret   string
	messages []streaming.Envelope
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestInit_RequiresURL(t *testing.T) {
	b := New(Config{}, nil)
	assert.Error(t, b.Init())
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	s := &core.Session{Name: "duels"}
	require.NoError(t, b.StartSession(s))
	assert.Equal(t, uint(1), s.ID)

	require.NoError(t, b.EndSession())

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[len(msgs)-1].Type)

	var p streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &p))
	assert.Equal(t, "duels", p.Name)

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()
}

func TestRecordsWithoutSession(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.ErrorIs(t, b.RecordResolution(&core.Resolution{}), storage.ErrNoSession)
	assert.ErrorIs(t, b.RecordStatusChange(&core.StatusChange{}), storage.ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), storage.ErrNoSession)
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{Name: "M"}))

	r := &core.Resolution{VictimName: "Zezima", Outcome: core.OutcomeOnPid}
	require.NoError(t, b.RecordResolution(r))
	assert.Equal(t, uint(1), r.SessionID)
	require.NoError(t, b.RecordStatusChange(&core.StatusChange{Tick: 5, To: core.StatusOnPid}))

	require.NoError(t, b.EndSession())

	// end_session is acked after the earlier messages were read
	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeStartSession])
	assert.Equal(t, 1, types[streaming.TypeEndSession])
	assert.Equal(t, 1, types[streaming.TypeResolution])
	assert.Equal(t, 1, types[streaming.TypeStatusChange])
	assert.Zero(t, b.Dropped())
}

func TestStartSession_AckTimeoutWhenClosed(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())

	done := make(chan error, 1)
	go func() { done <- b.StartSession(&core.Session{Name: "late"}) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("StartSession did not return after close")
	}
}

func TestReconnect_ResendsSessionHeader(t *testing.T) {
	var mu sync.Mutex
	var sockets int
	var resumed []streaming.Envelope

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		mu.Lock()
		sockets++
		n := sockets
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			if n > 1 {
				mu.Lock()
				resumed = append(resumed, env)
				mu.Unlock()
			}
			if env.Type == streaming.TypeStartSession {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
				// the first socket drops right after the session opens
				if n == 1 {
					return
				}
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	b.conn.retryDelay = 10 * time.Millisecond
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartSession(&core.Session{Name: "ladder"}))

	received := func(n int) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(resumed) >= n
		}
	}
	require.Eventually(t, received(1), 2*time.Second, 10*time.Millisecond)
	require.NoError(t, b.RecordResolution(&core.Resolution{VictimName: "Zezima", Outcome: core.OutcomeOnPid}))
	require.Eventually(t, received(2), 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, sockets)
	assert.Equal(t, streaming.TypeStartSession, resumed[0].Type)
	assert.Equal(t, streaming.TypeResolution, resumed[1].Type)

	var p streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(resumed[0].Payload, &p))
	assert.Equal(t, "ladder", p.Name)
}
