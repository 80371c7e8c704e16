package websocket

import (
	"errors"
	"net/http"
	"sync"
)

// ErrAlreadyShutDown is returned by Group.Shutdown when the group has
// already been shut down once (spec.md section 5: "a client factory owning
// its group must shut the group down exactly once - subsequent shutdowns
// fail with already_shut_down").
var ErrAlreadyShutDown = errors.New("websocket: group already shut down")

// Group owns a shared *http.Transport used by one or more Dialers: the
// connection pool and proxy configuration are shared across every
// connection a Dialer using this Group's Transport dials, and the engine
// never mutates that shared state per connection. Because Transport is an
// *http.Transport, those Dialers use the HTTP/1.1 upgrade handshake, not
// HTTP/2 WebSocket bootstrapping (RFC 8441). A Group must be shut down
// exactly once when the owning application is done with it.
type Group struct {
	// Transport is the shared *http.Transport Dialers should set as their
	// HTTPClient's Transport.
	Transport *http.Transport

	mu       sync.Mutex
	shutdown bool
}

// NewGroup returns a Group wrapping transport. If transport is nil, a new
// *http.Transport with default settings is created.
func NewGroup(transport *http.Transport) *Group {
	if transport == nil {
		transport = &http.Transport{}
	}
	return &Group{Transport: transport}
}

// Shutdown closes idle connections on the group's transport. Calling it
// more than once returns ErrAlreadyShutDown.
func (g *Group) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shutdown {
		return ErrAlreadyShutDown
	}
	g.shutdown = true
	g.Transport.CloseIdleConnections()
	return nil
}
