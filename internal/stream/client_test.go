package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	requests []SubscribeRequest
	conns    []*websocket.Conn
	got      chan SubscribeRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{got: make(chan SubscribeRequest, 16)}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()

	for {
		var req SubscribeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		b.mu.Lock()
		b.requests = append(b.requests, req)
		b.mu.Unlock()
		b.got <- req
	}
}

func (b *fakeBackend) conn(i int) *websocket.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.conns) {
		return nil
	}
	return b.conns[i]
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextRequest(t *testing.T, ch <-chan SubscribeRequest) SubscribeRequest {
	t.Helper()
	select {
	case req := <-ch:
		return req
	case <-time.After(3 * time.Second):
		t.Fatal("no subscription request received")
		return SubscribeRequest{}
	}
}

func TestClientSendsSubscriptionAndDeliversMessages(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c := NewClient(wsURL(srv), 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, c.Connected, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Subscribe([]string{"KRW-BTC", "KRW-ETH"}))

	req := nextRequest(t, backend.got)
	assert.Equal(t, SubscribeType, req.Type)
	assert.Equal(t, []string{"KRW-BTC", "KRW-ETH"}, req.Symbols)

	server := backend.conn(0)
	require.NotNil(t, server)
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, server.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"tick","payload":{"code":"KRW-BTC","trade_price":5,"trade_timestamp":1000}}`)))

	select {
	case msg := <-c.Messages():
		require.Equal(t, TypeTick, msg.Type)
		assert.Equal(t, "KRW-BTC", msg.Tick.Symbol)
	case <-time.After(3 * time.Second):
		t.Fatal("tick not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	_, open := <-c.Messages()
	assert.False(t, open)
}

func TestClientResubscribesAfterReconnect(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	c := NewClient(wsURL(srv), 8)
	assert.ErrorIs(t, c.Subscribe([]string{"KRW-XRP"}), ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	// The set recorded while offline goes out on connect.
	assert.Equal(t, []string{"KRW-XRP"}, nextRequest(t, backend.got).Symbols)

	backend.conn(0).Close()

	assert.Equal(t, []string{"KRW-XRP"}, nextRequest(t, backend.got).Symbols)
}
