// Package stream is the websocket boundary to the dashboard backend: it delivers
// decoded inbound messages in arrival order and sends subscription lists.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	minBackoff   = 500 * time.Millisecond
	maxBackoff   = 10 * time.Second
	writeTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("stream not connected")

// Client keeps one websocket connection alive. The last requested subscription
// set is sent eagerly after every successful connect.
type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	out    chan Message

	connected atomic.Bool
	kick      chan struct{}

	mu      sync.Mutex
	desired []string
	hasSet  bool
}

// NewClient creates a client for url. buffer sizes the inbound channel.
func NewClient(url string, buffer int) *Client {
	return &Client{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		out:    make(chan Message, buffer),
		kick:   make(chan struct{}, 1),
	}
}

// Messages returns the inbound channel. It is closed when Run returns.
func (c *Client) Messages() <-chan Message { return c.out }

// Connected reports whether a session is live.
func (c *Client) Connected() bool { return c.connected.Load() }

// Subscribe records symbols as the desired set and schedules a send. It never
// blocks. ErrNotConnected means the set will go out on the next connect.
func (c *Client) Subscribe(symbols []string) error {
	cp := make([]string, len(symbols))
	copy(cp, symbols)

	c.mu.Lock()
	c.desired = cp
	c.hasSet = true
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) subscription() (SubscribeRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SubscribeRequest{Type: SubscribeType, Symbols: c.desired}, c.hasSet
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.out)

	backoff := minBackoff
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnf("stream dial %s failed: %v, retrying in %v", c.url, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = minBackoff
		log.Infof("stream connected to %s", c.url)
		err = c.session(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("stream session ended: %v", err)
	}
}

func (c *Client) session(ctx context.Context, conn *websocket.Conn) error {
	c.connected.Store(true)
	defer c.connected.Store(false)
	defer conn.Close()

	select {
	case <-c.kick:
	default:
	}
	if err := c.sendSubscription(conn); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop(ctx, conn) }()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			conn.Close()
			<-readErr
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-c.kick:
			if err := c.sendSubscription(conn); err != nil {
				conn.Close()
				<-readErr
				return err
			}
		}
	}
}

func (c *Client) sendSubscription(conn *websocket.Conn) error {
	req, ok := c.subscription()
	if !ok {
		return nil
	}
	if req.Symbols == nil {
		req.Symbols = []string{}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscription: %w", err)
	}
	log.Debugf("stream subscribed to %d symbols", len(req.Symbols))
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("closed by peer: %w", err)
			}
			return fmt.Errorf("read message: %w", err)
		}
		msg, err := Decode(data)
		if err != nil {
			log.Warnf("dropping stream message: %v", err)
			continue
		}
		select {
		case c.out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
