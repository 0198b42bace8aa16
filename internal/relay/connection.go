package relay

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/coderelay/internal/domain"
	"github.com/pscheid92/coderelay/internal/platform/correlation"
	"github.com/pscheid92/coderelay/internal/protocol"
)

// connection is the hub's record for one accepted transport. It is only
// touched from the hub goroutine.
type connection struct {
	id          string
	ctx         context.Context
	role        domain.Role
	displayName string
	writer      *connWriter

	// alive is cleared on every liveness tick and set again by a pong.
	alive bool

	// closing is set once an orderly close has been requested.
	closing    bool
	closeTimer clockwork.Timer
}

func newConnection(ctx context.Context, id string, w *connWriter) *connection {
	return &connection{
		id:     id,
		ctx:    correlation.WithConnID(ctx, id),
		writer: w,
		alive:  true,
	}
}

// send encodes msg and queues it for the writer. It reports whether the
// frame was queued.
func (c *connection) send(msg protocol.Outbound) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		return false
	}
	return c.writer.enqueue(data)
}
