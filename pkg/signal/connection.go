package signal

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Connection is the handle returned by Connect. It identifies exactly one
// registration; disconnecting it never affects any other registration.
type Connection struct {
	id        string
	connected atomic.Bool
	detach    func(id string)
}

func newConnection(detach func(id string)) *Connection {
	c := &Connection{
		id:     uuid.NewString(),
		detach: detach,
	}
	c.connected.Store(true)
	return c
}

// inertConnection is handed out by closed signals.
func inertConnection() *Connection {
	return &Connection{id: uuid.NewString()}
}

// ID returns the stable identity of the registration.
func (c *Connection) ID() string {
	return c.id
}

// Connected reports whether the listener is still registered.
func (c *Connection) Connected() bool {
	return c.connected.Load()
}

// Disconnect removes the listener from its signal. Disconnected is terminal;
// calling Disconnect again is a no-op.
func (c *Connection) Disconnect() {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}
	if c.detach != nil {
		c.detach(c.id)
	}
}

// release marks the connection disconnected without touching the signal.
// Used when the signal drops all entries at once.
func (c *Connection) release() {
	c.connected.Store(false)
}
