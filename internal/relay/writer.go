package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/coderelay/internal/adapter/metrics"
)

const writeDeadline = 5 * time.Second

type closeRequest struct {
	code int
	text string
}

// connWriter is the only goroutine that writes to its connection.
// All methods are non-blocking and safe to call from the hub. Socket
// deadlines are wall-clock time, whatever clock the hub runs on.
type connWriter struct {
	conn     *websocket.Conn
	metrics  *metrics.RelayMetrics
	sendCh   chan []byte
	pingCh   chan struct{}
	closeCh  chan closeRequest
	done     chan struct{}
	stopOnce sync.Once
}

func newConnWriter(conn *websocket.Conn, m *metrics.RelayMetrics, buffer int) *connWriter {
	w := &connWriter{
		conn:    conn,
		metrics: m,
		sendCh:  make(chan []byte, buffer),
		pingCh:  make(chan struct{}, 1),
		closeCh: make(chan closeRequest, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *connWriter) run() {
	for {
		select {
		case data := <-w.sendCh:
			if err := w.write(websocket.TextMessage, data); err != nil {
				_ = w.conn.Close()
				return
			}
		case <-w.pingCh:
			if err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				_ = w.conn.Close()
				return
			}
		case req := <-w.closeCh:
			w.flush()
			msg := websocket.FormatCloseMessage(req.code, req.text)
			_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeDeadline))
			return
		case <-w.done:
			return
		}
	}
}

// flush writes whatever is already queued so that events accepted before a
// close request still precede the close frame.
func (w *connWriter) flush() {
	for {
		select {
		case data := <-w.sendCh:
			if err := w.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (w *connWriter) write(messageType int, data []byte) error {
	start := time.Now()
	_ = w.conn.SetWriteDeadline(start.Add(writeDeadline))
	if err := w.conn.WriteMessage(messageType, data); err != nil {
		return err
	}
	w.metrics.ObserveSend(time.Since(start))
	return nil
}

// enqueue queues a text frame. It reports false when the queue is full or the
// writer has stopped.
func (w *connWriter) enqueue(data []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}

	select {
	case w.sendCh <- data:
		return true
	default:
		return false
	}
}

// ping queues a keepalive probe; at most one probe is ever pending.
func (w *connWriter) ping() {
	select {
	case w.pingCh <- struct{}{}:
	default:
	}
}

// requestClose asks the writer to send a close frame after the queued frames.
// Only the first request takes effect.
func (w *connWriter) requestClose(code int, text string) {
	select {
	case w.closeCh <- closeRequest{code: code, text: text}:
	default:
	}
}

// terminate drops the transport without a handshake.
func (w *connWriter) terminate() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.conn.Close()
	})
}
