package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(h *Hub, sessionID int64, id string) *Client {
	return &Client{ID: id, SessionID: sessionID, hub: h, send: make(chan WSMessage, 4), logger: zap.NewNop()}
}

// loopback is an in-process stand-in for Redis pub/sub.
type loopback struct {
	mu        sync.Mutex
	handlers  map[int64]func(string, []byte)
	published int
	failWith  error
	cancelled []int64
}

func newLoopback() *loopback { return &loopback{handlers: map[int64]func(string, []byte){}} }

func (l *loopback) PublishSessionEvent(sessionID int64, event string, payload []byte) error {
	l.mu.Lock()
	l.published++
	h := l.handlers[sessionID]
	err := l.failWith
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (l *loopback) SubscribeSession(sessionID int64, handler func(string, []byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[sessionID] = handler
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers, sessionID)
		l.cancelled = append(l.cancelled, sessionID)
	}, nil
}

func TestBroadcastOnlyReachesSessionRoom(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient(h, 1, "a")
	b := newTestClient(h, 2, "b")
	h.Register(a)
	h.Register(b)

	h.Broadcast(1, EventSessionUpdated, map[string]string{"reason": "question_added"})

	require.Len(t, a.send, 1)
	assert.Empty(t, b.send)
	msg := <-a.send
	assert.Equal(t, EventSessionUpdated, msg.Event)
	assert.JSONEq(t, `{"reason":"question_added"}`, string(msg.Data))
}

func TestNotifyWithoutRedisBroadcastsLocally(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient(h, 9, "c")
	h.Register(c)

	h.Notify(9, EventSessionEnded, nil)

	require.Len(t, c.send, 1)
	msg := <-c.send
	assert.Equal(t, EventSessionEnded, msg.Event)
	assert.Nil(t, msg.Data)
}

func TestNotifyWithRedisDeliversOnce(t *testing.T) {
	lb := newLoopback()
	h := NewHub(zap.NewNop(), lb, lb)
	c := newTestClient(h, 3, "c")
	h.Register(c)

	h.Notify(3, EventGrabAttention, map[string]string{"trigger": "ann-1"})

	assert.Equal(t, 1, lb.published)
	assert.Len(t, c.send, 1)
}

func TestNotifyFallsBackWhenPublishFails(t *testing.T) {
	lb := newLoopback()
	lb.failWith = errors.New("redis down")
	h := NewHub(zap.NewNop(), lb, lb)
	c := newTestClient(h, 3, "c")
	h.Register(c)

	h.Notify(3, EventSessionUpdated, nil)

	assert.Len(t, c.send, 1)
}

func TestUnregisterCancelsSubscriptionWhenRoomEmpties(t *testing.T) {
	lb := newLoopback()
	h := NewHub(zap.NewNop(), lb, lb)
	a := newTestClient(h, 5, "a")
	b := newTestClient(h, 5, "b")
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 2, h.ClientCount(5))

	h.Unregister(a)
	assert.Empty(t, lb.cancelled)
	_, open := <-a.send
	assert.False(t, open)

	h.Unregister(b)
	assert.Equal(t, []int64{5}, lb.cancelled)
	assert.Equal(t, 0, h.ClientCount(5))
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	c := newTestClient(h, 1, "c")
	h.Register(c)

	for i := 0; i < cap(c.send)+3; i++ {
		h.Broadcast(1, EventSessionUpdated, json.RawMessage(`{}`))
	}
	assert.Len(t, c.send, cap(c.send))
}

type members map[string]bool

func (m members) IsParticipant(_ context.Context, _ int64, name string) (bool, error) {
	return m[name], nil
}

func TestServeWsRejectsBeforeUpgrade(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(zap.NewNop(), nil, nil)
	r := gin.New()
	r.GET("/ws", ServeWs(h, members{"ann": true}, NewUpgrader(nil), zap.NewNop()))

	cases := []struct {
		query  string
		status int
	}{
		{"", http.StatusBadRequest},
		{"?session_id=x&participant_name=ann", http.StatusBadRequest},
		{"?session_id=1", http.StatusBadRequest},
		{"?session_id=1&participant_name=bob", http.StatusForbidden},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws"+tc.query, nil))
		assert.Equal(t, tc.status, w.Code, tc.query)
	}
}

func TestUpgraderOrigins(t *testing.T) {
	up := NewUpgrader([]string{"http://app.test"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	req.Header.Set("Origin", "http://app.test")
	assert.True(t, up.CheckOrigin(req))
	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, up.CheckOrigin(req))
}
