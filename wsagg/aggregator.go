// Package wsagg reassembles the fragment sequence of a WebSocket message
// into a single logical message, per RFC 6455 section 5.4. A data frame
// (text or binary) either stands alone (fin=true) or opens a run of
// continuation frames terminated by the first continuation frame with
// fin=true; control frames are never fragmented and may interleave freely
// with a pending fragmented message.
package wsagg

import "github.com/relaywire/wsock/wsframe"

// Message is a fully reassembled application message.
type Message struct {
	Kind    wsframe.Opcode // wsframe.OpText or wsframe.OpBinary
	Payload []byte

	// Compressed reports whether the leading frame of this message carried
	// RSV1, i.e. the message was produced under permessage-deflate and
	// still needs inflation by the caller.
	Compressed bool
}

type pendingMessage struct {
	kind       wsframe.Opcode
	compressed bool
	payload    []byte
	frameCount int
}

// Aggregator reassembles fragmented WebSocket messages. It is not safe for
// concurrent use; a connection feeds it frames from its single reader
// goroutine, one at a time, in wire order.
type Aggregator struct {
	limits  Limits
	pending *pendingMessage
}

// New returns an Aggregator enforcing limits. A zero Limits means no bounds.
func New(limits Limits) *Aggregator {
	return &Aggregator{limits: limits}
}

// Pending reports whether a fragmented message is in progress.
func (a *Aggregator) Pending() bool {
	return a.pending != nil
}

// Feed applies f to the aggregation state machine described in spec.md
// section 4.2. Control frames (ping/pong/close) always pass through without
// touching aggregation state and are returned as a single-frame Message. A
// non-nil Message return means a complete message is ready for delivery; a
// nil Message with a nil error means f merely extended a pending fragmented
// message.
func (a *Aggregator) Feed(f wsframe.Frame) (*Message, error) {
	if f.Opcode.IsControl() {
		return &Message{Kind: f.Opcode, Payload: f.Payload}, nil
	}

	if f.Opcode == wsframe.OpContinuation {
		return a.feedContinuation(f)
	}
	return a.feedDataFrame(f)
}

func (a *Aggregator) feedDataFrame(f wsframe.Frame) (*Message, error) {
	if a.pending != nil {
		return nil, ErrExpectedContinuation
	}

	if f.Fin {
		if a.limits.MaxMessageBytes > 0 && int64(len(f.Payload)) > a.limits.MaxMessageBytes {
			return nil, ErrMessageTooBig
		}
		return &Message{Kind: f.Opcode, Payload: f.Payload, Compressed: f.RSV1}, nil
	}

	if err := a.checkNonFinalSize(len(f.Payload)); err != nil {
		return nil, err
	}

	a.pending = &pendingMessage{
		kind:       f.Opcode,
		compressed: f.RSV1,
		payload:    append([]byte(nil), f.Payload...),
		frameCount: 1,
	}
	if err := a.checkBounds(); err != nil {
		a.pending = nil
		return nil, err
	}
	return nil, nil
}

func (a *Aggregator) feedContinuation(f wsframe.Frame) (*Message, error) {
	if a.pending == nil {
		return nil, ErrUnexpectedContinuation
	}
	if f.RSV1 {
		return nil, ErrReservedBits
	}

	if !f.Fin {
		if err := a.checkNonFinalSize(len(f.Payload)); err != nil {
			return nil, err
		}
	}

	a.pending.payload = append(a.pending.payload, f.Payload...)
	a.pending.frameCount++
	if err := a.checkBounds(); err != nil {
		a.pending = nil
		return nil, err
	}

	if !f.Fin {
		return nil, nil
	}

	msg := &Message{
		Kind:       a.pending.kind,
		Payload:    a.pending.payload,
		Compressed: a.pending.compressed,
	}
	a.pending = nil
	return msg, nil
}

func (a *Aggregator) checkNonFinalSize(n int) error {
	if a.limits.MinNonFinalFragmentSize > 0 && n < a.limits.MinNonFinalFragmentSize {
		return ErrNonFinalFragmentTooSmall
	}
	return nil
}

func (a *Aggregator) checkBounds() error {
	if a.limits.MaxFrameCount > 0 && a.pending.frameCount > a.limits.MaxFrameCount {
		return ErrTooManyFrames
	}
	if a.limits.MaxMessageBytes > 0 && int64(len(a.pending.payload)) > a.limits.MaxMessageBytes {
		return ErrMessageTooBig
	}
	return nil
}
