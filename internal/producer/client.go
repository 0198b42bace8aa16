package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/pscheid92/coderelay/internal/protocol"
	"golang.org/x/sync/singleflight"
)

const writeTimeout = 5 * time.Second

// ErrDuplicateCode is returned by Send for a code delivered within the dedupe window.
var ErrDuplicateCode = errors.New("code already sent recently")

type ClientOptions struct {
	URL            string
	ID             string
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	Deduper        domain.Deduper
	Clock          clockwork.Clock
}

// Client holds the producer connection to the relay. Run keeps it connected;
// Send may be called concurrently from any goroutine.
type Client struct {
	opts   ClientOptions
	dialer *websocket.Dialer
	sends  singleflight.Group

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(opts ClientOptions) *Client {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.DialTimeout,
		},
	}
}

// Run connects, identifies and reads server messages until ctx is done,
// reconnecting after a fixed delay whenever the connection is lost.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		slog.Warn("Relay connection lost, reconnecting", "error", err, "delay", c.opts.ReconnectDelay)

		timer := c.opts.Clock.NewTimer(c.opts.ReconnectDelay)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

// Connected reports whether a producer session is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) session(ctx context.Context) error {
	dialCtx := ctx
	if c.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
	}

	conn, _, err := c.dialer.DialContext(dialCtx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer func() { _ = conn.Close() }()

	hello, err := protocol.IdentifyRequest(domain.ClientTypeProducer, c.opts.ID)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	c.setConn(conn)
	defer c.setConn(nil)
	slog.Info("Connected to relay", "url", c.opts.URL, "producer_id", c.opts.ID)

	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "producer shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		_ = conn.Close()
	})
	defer stop()

	return c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read from relay: %w", err)
		}

		msg, err := protocol.DecodeOutbound(data)
		if err != nil {
			slog.Warn("Received invalid message from relay", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeAck:
			slog.Info("Relay acknowledged code", "code", msg.Code)
		case protocol.TypePong:
		case protocol.TypeServerStatusUpdate:
			slog.Debug("Relay status", "message", msg.Message)
		default:
			slog.Debug("Ignoring relay message", "type", string(msg.Type))
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// Send delivers code unless it was already sent within the dedupe window.
// A code is only recorded as sent after the write succeeded, so a code that
// could not be delivered is retried the next time it is seen. Concurrent
// sends of the same code share a single delivery.
func (c *Client) Send(ctx context.Context, code string) error {
	_, err, _ := c.sends.Do(code, func() (any, error) {
		return nil, c.send(ctx, code)
	})
	return err
}

func (c *Client) send(ctx context.Context, code string) error {
	seen, err := c.opts.Deduper.Seen(ctx, code)
	if err != nil {
		slog.Warn("Dedupe lookup failed, sending anyway", "code", code, "error", err)
	}
	if seen {
		return ErrDuplicateCode
	}

	data, err := protocol.NewCodeRequest(code)
	if err != nil {
		return err
	}

	if err := c.write(data); err != nil {
		return fmt.Errorf("send code %q: %w", code, err)
	}

	if err := c.opts.Deduper.Record(ctx, code); err != nil {
		slog.Warn("Failed to record sent code", "code", code, "error", err)
	}
	slog.Info("Sent code to relay", "code", code)
	return nil
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return domain.ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
