// Package gate tracks whether the MCP session handshake has completed and
// refuses work until it has.
package gate

import (
	"sync/atomic"

	"github.com/worldnine/textwell-mcp/internal/common"
)

type State int32

const (
	Disconnected State = iota
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gate is a three-state session flag. The zero value is Disconnected and
// ready to use.
type Gate struct {
	state atomic.Int32
}

func New() *Gate {
	return &Gate{}
}

// MarkConnected moves Disconnected to Connected. It reports whether this
// call made the transition; later calls and calls after Close are no-ops.
func (g *Gate) MarkConnected() bool {
	return g.state.CompareAndSwap(int32(Disconnected), int32(Connected))
}

// Close moves the gate to its terminal state.
func (g *Gate) Close() {
	g.state.Store(int32(Closed))
}

func (g *Gate) State() State {
	return State(g.state.Load())
}

// EnsureReady returns a NotConnected error unless the handshake has
// completed and the gate has not been closed.
func (g *Gate) EnsureReady() error {
	switch g.State() {
	case Connected:
		return nil
	case Closed:
		return common.NewError(common.KindNotConnected, "Server is shutting down", common.ErrNotConnected)
	default:
		return common.NewError(common.KindNotConnected, "Server not connected", common.ErrNotConnected)
	}
}
