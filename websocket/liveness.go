package websocket

import (
	"context"
	"time"
)

// SetPingInterval starts (or restarts) the liveness scheduler (spec.md
// section 4.5): every interval, if a previously-sent ping has not yet been
// answered, the transport is force-closed with close code 1006 without
// attempting a close handshake; otherwise an empty-payload ping is sent and
// the connection waits for the matching pong. d=0 cancels the scheduler.
//
// The scheduler goroutine holds only a context derived from the
// connection's lifetime and exits via ctx.Done(), so Close always wins a
// race against a late tick — no tick ever fires once the connection has
// entered stateClosed.
func (c *Conn) SetPingInterval(d time.Duration) {
	if c.livenessStop != nil {
		c.livenessStop()
		c.livenessStop = nil
	}
	if d <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.livenessStop = cancel
	go c.runLiveness(ctx, d)
}

func (c *Conn) runLiveness(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if connState(c.state.Load()) != stateOpen {
				return
			}
			if c.awaitingPong.Load() {
				c.setCloseCode(CloseAbnormalClosure)
				_ = c.Close()
				return
			}
			c.awaitingPong.Store(true)
			if err := c.WriteControl(PingMessage, nil, time.Now().Add(interval)); err != nil {
				return
			}
		}
	}
}
