package websocket

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/wsock/wsagg"
	"github.com/relaywire/wsock/wsframe"
)

type mockConn struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

func newMockConn() *mockConn {
	return &mockConn{
		readBuf:  new(bytes.Buffer),
		writeBuf: new(bytes.Buffer),
	}
}

func (m *mockConn) Read(b []byte) (n int, err error) {
	return m.readBuf.Read(b)
}

func (m *mockConn) Write(b []byte) (n int, err error) {
	return m.writeBuf.Write(b)
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

func (m *mockConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (m *mockConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (m *mockConn) SetDeadline(_ time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(_ time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(_ time.Time) error { return nil }

// writeClientFrame appends f to mock.readBuf, masked as a client-to-server
// frame, so a server-side Conn's decoder accepts it.
func writeClientFrame(t *testing.T, mock *mockConn, f wsframe.Frame) {
	t.Helper()
	enc := wsframe.NewEncoder(mock.readBuf, false)
	require.NoError(t, enc.Encode(f))
}

// writeServerFrame appends f to mock.readBuf, unmasked as a server-to-client
// frame, so a client-side Conn's decoder accepts it.
func writeServerFrame(t *testing.T, mock *mockConn, f wsframe.Frame) {
	t.Helper()
	enc := wsframe.NewEncoder(mock.readBuf, true)
	require.NoError(t, enc.Encode(f))
}

func TestNewConnDefaults(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	assert.Equal(t, CloseNoStatusReceived, conn.CloseCode())
	assert.Equal(t, stateOpen, connState(conn.state.Load()))
	assert.NotEqual(t, [16]byte{}, [16]byte(conn.ID()))
}

func TestCloseIsIdempotent(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, mock.closed)
	assert.Equal(t, stateClosed, connState(conn.state.Load()))
}

func TestCloseWithCodeRewritesSyntheticCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		wantWire int
	}{
		{"no status received rewritten", CloseNoStatusReceived, CloseNormalClosure},
		{"abnormal closure rewritten", CloseAbnormalClosure, CloseNormalClosure},
		{"normal closure passes through", CloseNormalClosure, CloseNormalClosure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockConn()
			conn := newConn(mock, true, 0, 0)

			require.NoError(t, conn.CloseWithCode(tt.code, ""))
			assert.Equal(t, tt.code, conn.CloseCode())

			dec := wsframe.NewDecoder(mock.writeBuf, false)
			f, err := dec.Decode()
			require.NoError(t, err)
			assert.Equal(t, wsframe.OpClose, f.Opcode)

			gotCode := int(f.Payload[0])<<8 | int(f.Payload[1])
			assert.Equal(t, tt.wantWire, gotCode)
		})
	}
}

func TestWriteControlRejectsNonControlType(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	err := conn.WriteControl(TextMessage, nil, time.Now().Add(time.Second))
	assert.ErrorIs(t, err, ErrInvalidControlFrame)
}

func TestWriteControlRejectsOversizedPayload(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	err := conn.WriteControl(PingMessage, make([]byte, 126), time.Now().Add(time.Second))
	assert.ErrorIs(t, err, ErrControlFramePayloadTooBig)
}

func TestWriteMessageRejectsInvalidType(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	err := conn.WriteMessage(PingMessage, []byte("oops"))
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestNextWriterDroppedAfterClose(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)
	require.NoError(t, conn.Close())

	w, err := conn.NextWriter(TextMessage)
	require.NoError(t, err)

	n, err := w.Write([]byte("discarded"))
	require.NoError(t, err)
	assert.Equal(t, len("discarded"), n)
	require.NoError(t, w.Close())
	assert.Zero(t, mock.writeBuf.Len())
}

func TestReadMessageEchoesPingThenReturnsData(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpPing, Payload: []byte("ping-data")})
	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("hello")})

	msgType, p, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TextMessage, msgType)
	assert.Equal(t, "hello", string(p))

	dec := wsframe.NewDecoder(mock.writeBuf, false)
	f, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, wsframe.OpPong, f.Opcode)
	assert.Equal(t, "ping-data", string(f.Payload))
}

func TestReadMessageFragmentedReassembly(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	writeClientFrame(t, mock, wsframe.Frame{Fin: false, Opcode: wsframe.OpText, Payload: []byte("Hel")})
	writeClientFrame(t, mock, wsframe.Frame{Fin: false, Opcode: wsframe.OpContinuation, Payload: []byte("lo, ")})
	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpContinuation, Payload: []byte("World!")})

	msgType, p, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TextMessage, msgType)
	assert.Equal(t, "Hello, World!", string(p))
}

func TestReadMessagePeerCloseEchoesAndFailsFutureReads(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	writeClientFrame(t, mock, wsframe.Frame{
		Fin:     true,
		Opcode:  wsframe.OpClose,
		Payload: FormatCloseMessage(CloseGoingAway, "bye"),
	})

	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	var closeErr *CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseGoingAway, closeErr.Code)
	assert.Equal(t, "bye", closeErr.Text)
	assert.Equal(t, stateClosed, connState(conn.state.Load()))

	dec := wsframe.NewDecoder(mock.writeBuf, false)
	f, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, wsframe.OpClose, f.Opcode)

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
}

func TestReadMessageInvalidUTF8ClosesWithInvalidPayloadCode(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte{0xff, 0xfe, 0xfd}})

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsCloseError(err, CloseInvalidFramePayloadData))
}

func TestSetAggregatorLimitsMessageTooBig(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)
	conn.SetAggregatorLimits(wsagg.Limits{MaxMessageBytes: 4})

	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("too long")})

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsCloseError(err, CloseMessageTooBig))
}

func TestSetReadLimitAppliesToDecoder(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)
	conn.SetReadLimit(4)

	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("too long")})

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestTransportFailureSetsAbnormalClosure(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)
	// An empty read buffer yields io.EOF from the decoder: an abrupt
	// transport failure with no close frame exchanged.
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, CloseAbnormalClosure, conn.CloseCode())
	assert.Equal(t, stateClosed, connState(conn.state.Load()))
}

func TestPingPongHandlersAreNotificationOnly(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	var pinged, ponged bool
	conn.SetPingHandler(func(_ string) error { pinged = true; return nil })
	conn.SetPongHandler(func(_ string) error { ponged = true; return nil })

	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpPing, Payload: nil})
	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpPong, Payload: nil})
	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("done")})

	_, p, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "done", string(p))
	assert.True(t, pinged)
	assert.True(t, ponged)

	// The engine still sent the mandated pong regardless of the handler.
	dec := wsframe.NewDecoder(mock.writeBuf, false)
	f, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, wsframe.OpPong, f.Opcode)
}

func TestWriteMessageFragmentsAtMaxWriteFrameSize(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)
	conn.SetMaxWriteFrameSize(4)

	require.NoError(t, conn.WriteMessage(TextMessage, []byte("abcdefgh")))

	dec := wsframe.NewDecoder(mock.writeBuf, false)
	first, err := dec.Decode()
	require.NoError(t, err)
	assert.False(t, first.Fin)
	assert.Equal(t, wsframe.OpText, first.Opcode)
	assert.Equal(t, "abcd", string(first.Payload))

	second, err := dec.Decode()
	require.NoError(t, err)
	assert.True(t, second.Fin)
	assert.Equal(t, wsframe.OpContinuation, second.Opcode)
	assert.Equal(t, "efgh", string(second.Payload))
}

func TestReadMessageMaskedServerFrameIsProtocolError(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, false, 0, 0)

	// A client-side Conn must never see a masked frame from the server
	// (RFC 6455 section 5.1); masking it anyway is a protocol violation.
	writeClientFrame(t, mock, wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("hi")})

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsCloseError(err, CloseProtocolError))
	assert.Equal(t, CloseProtocolError, conn.CloseCode())

	dec := wsframe.NewDecoder(mock.writeBuf, true)
	f, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, wsframe.OpClose, f.Opcode)
}

func TestSetCompressionLevelValidatesRange(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)

	assert.Error(t, conn.SetCompressionLevel(-10))
	assert.NoError(t, conn.SetCompressionLevel(5))
}
