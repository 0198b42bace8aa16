package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/coderelay/internal/adapter/metrics"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/pscheid92/coderelay/internal/protocol"
)

const (
	defaultLivenessInterval = 30 * time.Second
	defaultCloseGrace       = time.Second
	defaultSendBuffer       = 16

	shutdownReason = "server shutting down"

	sourceProducer = "producer"
	sourceHTTP     = "http"
)

type Options struct {
	// LivenessInterval is the keepalive probe period. A connection that
	// misses one probe is terminated on the following tick.
	LivenessInterval time.Duration
	// CloseGrace bounds how long an orderly close may take before the
	// connection is force-terminated.
	CloseGrace time.Duration
	// SendBuffer is the outbound queue depth per connection.
	SendBuffer int
	Clock      clockwork.Clock
	Metrics    *metrics.RelayMetrics
}

func (o Options) withDefaults() Options {
	if o.LivenessInterval <= 0 {
		o.LivenessInterval = defaultLivenessInterval
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = defaultCloseGrace
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	ctx   context.Context
	conn  *websocket.Conn
	reply chan registerReply
}

type registerReply struct {
	id  string
	ctx context.Context
	err error
}

type unregisterCmd struct {
	baseHubCmd
	id string
}

type inboundCmd struct {
	baseHubCmd
	id  string
	msg protocol.Inbound
}

type protocolErrorCmd struct {
	baseHubCmd
	id  string
	err *domain.ProtocolError
}

type pongCmd struct {
	baseHubCmd
	id string
}

type publishCmd struct {
	baseHubCmd
	code  string
	reply chan publishReply
}

type publishReply struct {
	delivered int
	err       error
}

type statsCmd struct {
	baseHubCmd
	reply chan domain.RelayStats
}

type closeExpiredCmd struct {
	baseHubCmd
	id string
}

type drainCmd struct {
	baseHubCmd
}

// Hub owns the connection registry, the producer slot and the consumer set.
type Hub struct {
	opts  Options
	cmdCh chan hubCmd
	done  chan struct{}

	// Owned by the run goroutine.
	conns     map[string]*connection
	producer  *connection
	consumers map[string]*connection
	draining  bool
}

// NewHub starts the hub goroutine. It runs until Drain completes.
func NewHub(opts Options) *Hub {
	h := &Hub{
		opts:      opts.withDefaults(),
		cmdCh:     make(chan hubCmd, 256),
		done:      make(chan struct{}),
		conns:     make(map[string]*connection),
		consumers: make(map[string]*connection),
	}
	go h.run()
	return h
}

// Done is closed once the hub has drained every connection and stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Publish fans code out to every consumer as if the producer had sent it.
// It returns the number of consumers the event was queued for.
func (h *Hub) Publish(ctx context.Context, code string) (int, error) {
	if err := (protocol.NewCode{Code: code}).Validate(); err != nil {
		return 0, err
	}

	reply := make(chan publishReply, 1)
	if err := h.send(ctx, publishCmd{code: code, reply: reply}); err != nil {
		return 0, err
	}

	select {
	case r := <-reply:
		return r.delivered, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.done:
		return 0, domain.ErrHubStopped
	}
}

// Stats returns a snapshot of the registry.
func (h *Hub) Stats(ctx context.Context) (domain.RelayStats, error) {
	reply := make(chan domain.RelayStats, 1)
	if err := h.send(ctx, statsCmd{reply: reply}); err != nil {
		return domain.RelayStats{}, err
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return domain.RelayStats{}, ctx.Err()
	case <-h.done:
		return domain.RelayStats{}, domain.ErrHubStopped
	}
}

// Drain stops the liveness monitor, asks every connection to close with
// 1001 and waits until all of them are gone. Connections that do not finish
// their close within CloseGrace are terminated. New connections are refused
// from the moment draining starts.
func (h *Hub) Drain(ctx context.Context) error {
	if err := h.send(ctx, drainCmd{}); err != nil && !errors.Is(err, domain.ErrHubStopped) {
		return err
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain relay connections: %w", ctx.Err())
	}
}

func (h *Hub) register(ctx context.Context, conn *websocket.Conn) (string, context.Context, error) {
	reply := make(chan registerReply, 1)
	if err := h.send(ctx, registerCmd{ctx: ctx, conn: conn, reply: reply}); err != nil {
		return "", nil, err
	}

	select {
	case r := <-reply:
		return r.id, r.ctx, r.err
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case <-h.done:
		return "", nil, domain.ErrHubStopped
	}
}

func (h *Hub) send(ctx context.Context, cmd hubCmd) error {
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return domain.ErrHubStopped
	}
}

func (h *Hub) run() {
	defer close(h.done)

	ticker := h.opts.Clock.NewTicker(h.opts.LivenessInterval)
	defer ticker.Stop()
	tickCh := ticker.Chan()

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				if conn, ok := h.conns[c.id]; ok {
					h.remove(conn)
				}
			case inboundCmd:
				if conn, ok := h.conns[c.id]; ok {
					h.handleInbound(conn, c.msg)
				}
			case protocolErrorCmd:
				if conn, ok := h.conns[c.id]; ok {
					h.rejectConnection(conn, c.err)
				}
			case pongCmd:
				if conn, ok := h.conns[c.id]; ok {
					conn.alive = true
				}
			case publishCmd:
				h.handlePublish(c)
			case statsCmd:
				c.reply <- h.stats()
			case closeExpiredCmd:
				if conn, ok := h.conns[c.id]; ok {
					slog.WarnContext(conn.ctx, "Connection did not close within grace window, terminating",
						"role", conn.role.String(), "grace", h.opts.CloseGrace)
					h.opts.Metrics.ForcedClose()
					h.remove(conn)
				}
			case drainCmd:
				if !h.draining {
					ticker.Stop()
					tickCh = nil
					h.handleDrain()
				}
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}

			if h.draining && len(h.conns) == 0 {
				slog.Info("Relay hub drained")
				return
			}

		case <-tickCh:
			h.handleLivenessTick()
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if h.draining {
		c.reply <- registerReply{err: domain.ErrDraining}
		return
	}

	id := uuid.NewString()
	conn := newConnection(c.ctx, id, newConnWriter(c.conn, h.opts.Metrics, h.opts.SendBuffer))
	h.conns[id] = conn
	h.opts.Metrics.ConnectionOpened(domain.RoleUnidentified.String())

	slog.DebugContext(conn.ctx, "Connection registered", "total_connections", len(h.conns))
	c.reply <- registerReply{id: id, ctx: conn.ctx}
}

func (h *Hub) handleInbound(c *connection, msg protocol.Inbound) {
	if c.closing {
		return
	}

	switch m := msg.(type) {
	case protocol.Identify:
		h.handleIdentify(c, m)
	case protocol.NewCode:
		h.handleNewCode(c, m)
	case protocol.Ping:
		if c.role == domain.RoleUnidentified {
			slog.WarnContext(c.ctx, "Ignoring ping from unidentified connection")
			h.opts.Metrics.MessageIgnored("not_identified")
			return
		}
		c.send(protocol.PongEvent())
	default:
		slog.WarnContext(c.ctx, "Ignoring message of unknown type", "type", string(msg.MessageType()))
		h.opts.Metrics.MessageIgnored("unknown_type")
	}
}

func (h *Hub) handleIdentify(c *connection, m protocol.Identify) {
	if c.role != domain.RoleUnidentified {
		h.rejectConnection(c, domain.NewProtocolError(domain.ErrReidentify,
			fmt.Sprintf("already identified as %s %q", c.role, c.displayName)))
		return
	}

	if err := m.Validate(); err != nil {
		var pe *domain.ProtocolError
		if !errors.As(err, &pe) {
			pe = domain.NewProtocolError(domain.ErrInvalidIdentify, err.Error())
		}
		h.rejectConnection(c, pe)
		return
	}

	role, _ := m.ClientType.Role()
	name := m.DisplayName()

	if role == domain.RoleProducer && h.producer != nil {
		h.rejectConnection(c, domain.NewProtocolError(domain.ErrProducerTaken,
			fmt.Sprintf("producer %q is connected", h.producer.displayName)))
		return
	}

	c.role = role
	c.displayName = name
	h.opts.Metrics.RoleAssigned(domain.RoleUnidentified.String(), role.String())

	switch role {
	case domain.RoleProducer:
		h.producer = c
		slog.InfoContext(c.ctx, "Producer identified", "display_name", name)
		h.announce(fmt.Sprintf("Producer %s connected", name), nil)
	case domain.RoleConsumer:
		h.consumers[c.id] = c
		slog.InfoContext(c.ctx, "Consumer identified", "display_name", name, "consumers", len(h.consumers))
		h.announce(fmt.Sprintf("Consumer %s connected", name), c)
	}
}

func (h *Hub) handleNewCode(c *connection, m protocol.NewCode) {
	if h.producer != c {
		slog.WarnContext(c.ctx, "Ignoring new_code from connection that is not the producer", "role", c.role.String())
		h.opts.Metrics.MessageIgnored("not_producer")
		return
	}
	if err := m.Validate(); err != nil {
		slog.WarnContext(c.ctx, "Ignoring new_code without a code")
		h.opts.Metrics.MessageIgnored("empty_code")
		return
	}

	h.broadcast(m.Code, sourceProducer)
	c.send(protocol.AckEvent(m.Code))
}

func (h *Hub) handlePublish(c publishCmd) {
	if h.draining {
		c.reply <- publishReply{err: domain.ErrDraining}
		return
	}
	c.reply <- publishReply{delivered: h.broadcast(c.code, sourceHTTP)}
}

// broadcast queues a new_code event for every consumer that is not closing.
// A consumer whose queue is full misses this event; it is left for its own
// close or the liveness monitor to reap.
func (h *Hub) broadcast(code, source string) int {
	data, err := protocol.Encode(protocol.NewCodeEvent(code))
	if err != nil {
		slog.Error("Failed to encode code event", "error", err)
		return 0
	}

	delivered, dropped := 0, 0
	for _, consumer := range h.consumers {
		if consumer.closing {
			continue
		}
		if consumer.writer.enqueue(data) {
			delivered++
			continue
		}
		dropped++
		slog.WarnContext(consumer.ctx, "Dropping code for consumer with full send queue", "code", code)
	}

	h.opts.Metrics.Broadcast(source, delivered, dropped)
	slog.Info("Code broadcast", "code", code, "source", source, "delivered", delivered, "dropped", dropped)
	return delivered
}

// announce sends a status update to every consumer except skip.
func (h *Hub) announce(message string, skip *connection) {
	data, err := protocol.Encode(protocol.StatusEvent(message))
	if err != nil {
		slog.Error("Failed to encode status event", "error", err)
		return
	}
	for _, consumer := range h.consumers {
		if consumer == skip || consumer.closing {
			continue
		}
		consumer.writer.enqueue(data)
	}
}

func (h *Hub) handleLivenessTick() {
	var dead []*connection
	for _, c := range h.conns {
		if c.closing {
			continue
		}
		if !c.alive {
			dead = append(dead, c)
			continue
		}
		c.alive = false
		c.writer.ping()
	}

	for _, c := range dead {
		slog.WarnContext(c.ctx, "Connection missed keepalive probe, terminating",
			"role", c.role.String(), "display_name", c.displayName)
		h.opts.Metrics.LivenessTerminated()
		h.remove(c)
	}
}

func (h *Hub) handleDrain() {
	h.draining = true
	slog.Info("Relay draining connections", "connections", len(h.conns), "grace", h.opts.CloseGrace)
	for _, c := range h.conns {
		h.beginClose(c, domain.CloseGoingAway, shutdownReason)
	}
}

func (h *Hub) rejectConnection(c *connection, pe *domain.ProtocolError) {
	slog.WarnContext(c.ctx, "Closing connection for protocol violation",
		"reason", pe.Reason(), "close_code", pe.CloseCode, "error", pe.Error())
	h.opts.Metrics.ProtocolError(pe.Reason())
	h.beginClose(c, pe.CloseCode, pe.Err.Error())
}

// beginClose sends a close frame and arms the grace timer. The connection
// stays registered until the peer completes the close or the timer fires,
// but it no longer takes part in dispatch or fanout.
func (h *Hub) beginClose(c *connection, code int, text string) {
	if c.closing {
		return
	}
	c.closing = true
	c.writer.requestClose(code, text)

	id := c.id
	c.closeTimer = h.opts.Clock.AfterFunc(h.opts.CloseGrace, func() {
		select {
		case h.cmdCh <- closeExpiredCmd{id: id}:
		case <-h.done:
		}
	})
}

// remove tears down c and drops it from the registry. It is a no-op for a
// connection that was already removed.
func (h *Hub) remove(c *connection) {
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)

	if c.closeTimer != nil {
		c.closeTimer.Stop()
	}
	c.writer.terminate()
	h.opts.Metrics.ConnectionClosed(c.role.String())

	switch c.role {
	case domain.RoleProducer:
		if h.producer == c {
			h.producer = nil
			slog.InfoContext(c.ctx, "Producer disconnected", "display_name", c.displayName)
			h.announce(fmt.Sprintf("Producer %s disconnected", c.displayName), nil)
		}
	case domain.RoleConsumer:
		delete(h.consumers, c.id)
		slog.InfoContext(c.ctx, "Consumer disconnected", "display_name", c.displayName, "consumers", len(h.consumers))
		h.announce(fmt.Sprintf("Consumer %s disconnected", c.displayName), nil)
	default:
		slog.DebugContext(c.ctx, "Unidentified connection closed")
	}
}

func (h *Hub) stats() domain.RelayStats {
	s := domain.RelayStats{
		Consumers:   len(h.consumers),
		Connections: len(h.conns),
	}
	if h.producer != nil {
		s.ProducerConnected = true
		s.ProducerName = h.producer.displayName
	}
	return s
}
