package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/pscheid92/coderelay/internal/protocol"
)

const maxFrameSize = 64 * 1024

// Serve runs the read loop for an upgraded connection and returns once the
// connection is gone. Decoded frames are handed to the hub in arrival order.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	id, connCtx, err := h.register(ctx, conn)
	if err != nil {
		slog.WarnContext(ctx, "Refusing WebSocket connection", "error", err)
		msg := websocket.FormatCloseMessage(domain.CloseGoingAway, shutdownReason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
		_ = conn.Close()
		return
	}
	defer func() {
		_ = h.send(context.WithoutCancel(connCtx), unregisterCmd{id: id})
	}()

	conn.SetReadLimit(maxFrameSize)
	conn.SetPongHandler(func(string) error {
		_ = h.send(connCtx, pongCmd{id: id})
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived, domain.ClosePolicyViolation, domain.CloseUnsupportedData) {
				slog.DebugContext(connCtx, "WebSocket read ended", "error", err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			var pe *domain.ProtocolError
			if !errors.As(err, &pe) {
				pe = domain.NewProtocolError(domain.ErrMalformedFrame, err.Error())
			}
			if h.send(connCtx, protocolErrorCmd{id: id, err: pe}) != nil {
				return
			}
			continue
		}

		if h.send(connCtx, inboundCmd{id: id, msg: msg}) != nil {
			return
		}
	}
}
