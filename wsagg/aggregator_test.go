package wsagg

import (
	"testing"

	"github.com/relaywire/wsock/wsframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedSingleFrameMessage(t *testing.T) {
	agg := New(Limits{})
	msg, err := agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("hi")})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, wsframe.OpText, msg.Kind)
	assert.Equal(t, []byte("hi"), msg.Payload)
	assert.False(t, agg.Pending())
}

func TestFeedMultiFrameReassembly(t *testing.T) {
	// spec.md section 8, scenario 2: "Hello! Vapor rules the most" split at
	// a 13-byte boundary.
	agg := New(Limits{})

	msg, err := agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("Hel")})
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.True(t, agg.Pending())

	msg, err = agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpContinuation, Payload: []byte("lo! Vapor r")})
	require.NoError(t, err)
	assert.Nil(t, msg)

	msg, err = agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpContinuation, Payload: []byte("ules the most")})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, wsframe.OpText, msg.Kind)
	assert.Equal(t, "Hello! Vapor rules the most", string(msg.Payload))
	assert.False(t, agg.Pending())
}

func TestFeedContinuationWithoutPendingIsError(t *testing.T) {
	agg := New(Limits{})
	_, err := agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpContinuation, Payload: []byte("x")})
	assert.ErrorIs(t, err, ErrUnexpectedContinuation)
}

func TestFeedDataFrameWhilePendingIsError(t *testing.T) {
	agg := New(Limits{})
	_, err := agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("a")})
	require.NoError(t, err)

	_, err = agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpBinary, Payload: []byte("b")})
	assert.ErrorIs(t, err, ErrExpectedContinuation)
}

func TestFeedControlFramesPassThroughWhilePending(t *testing.T) {
	agg := New(Limits{})
	_, err := agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("a")})
	require.NoError(t, err)

	msg, err := agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpPing, Payload: []byte("ping")})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, wsframe.OpPing, msg.Kind)
	assert.True(t, agg.Pending(), "control frame must not consume the pending fragmented message")

	msg, err = agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpContinuation, Payload: []byte("b")})
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "ab", string(msg.Payload))
}

func TestFeedRejectsRSV1OnContinuation(t *testing.T) {
	agg := New(Limits{})
	_, err := agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("a")})
	require.NoError(t, err)

	_, err = agg.Feed(wsframe.Frame{Fin: true, RSV1: true, Opcode: wsframe.OpContinuation, Payload: []byte("b")})
	assert.ErrorIs(t, err, ErrReservedBits)
}

func TestFeedCompressedFlagCarriesFromLeadingFrame(t *testing.T) {
	agg := New(Limits{})
	_, err := agg.Feed(wsframe.Frame{Fin: false, RSV1: true, Opcode: wsframe.OpBinary, Payload: []byte("a")})
	require.NoError(t, err)

	msg, err := agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpContinuation, Payload: []byte("b")})
	require.NoError(t, err)
	assert.True(t, msg.Compressed)
}

func TestMaxFrameCountExceeded(t *testing.T) {
	agg := New(Limits{MaxFrameCount: 2})
	_, err := agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("a")})
	require.NoError(t, err)
	_, err = agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpContinuation, Payload: []byte("b")})
	require.NoError(t, err)
	_, err = agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpContinuation, Payload: []byte("c")})
	assert.ErrorIs(t, err, ErrTooManyFrames)
	assert.False(t, agg.Pending(), "a bound violation must clear pending state")
}

func TestMaxMessageBytesExceeded(t *testing.T) {
	agg := New(Limits{MaxMessageBytes: 4})
	_, err := agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("abcd")})
	require.NoError(t, err)
	_, err = agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpContinuation, Payload: []byte("e")})
	assert.ErrorIs(t, err, ErrMessageTooBig)
}

func TestMinNonFinalFragmentSize(t *testing.T) {
	agg := New(Limits{MinNonFinalFragmentSize: 3})
	_, err := agg.Feed(wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("ab")})
	assert.ErrorIs(t, err, ErrNonFinalFragmentTooSmall)
}

func TestMinNonFinalFragmentSizeIgnoredOnFinalFrame(t *testing.T) {
	agg := New(Limits{MinNonFinalFragmentSize: 3})
	msg, err := agg.Feed(wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("ab")})
	require.NoError(t, err)
	assert.Equal(t, "ab", string(msg.Payload))
}
