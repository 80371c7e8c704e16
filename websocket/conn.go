package websocket

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/relaywire/wsock/wsagg"
	"github.com/relaywire/wsock/wscompress"
	"github.com/relaywire/wsock/wsframe"
)

// Message types defined in RFC 6455, section 11.8.
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

// Close codes defined in RFC 6455, section 7.4.1.
const (
	CloseNormalClosure           = 1000
	CloseGoingAway               = 1001
	CloseProtocolError           = 1002
	CloseUnsupportedData         = 1003
	CloseNoStatusReceived        = 1005
	CloseAbnormalClosure         = 1006
	CloseInvalidFramePayloadData = 1007
	ClosePolicyViolation         = 1008
	CloseMessageTooBig           = 1009
	CloseMandatoryExtension      = 1010
	CloseInternalServerErr       = 1011
	CloseServiceRestart          = 1012
	CloseTryAgainLater           = 1013
	CloseTLSHandshake            = 1015
)

// Errors returned by the websocket package.
var (
	ErrCloseSent                 = errors.New("websocket: close sent")
	ErrReadLimit                 = errors.New("websocket: read limit exceeded")
	ErrBadHandshake              = errors.New("websocket: bad handshake")
	ErrInvalidControlFrame       = errors.New("websocket: invalid control frame")
	ErrInvalidMessageType        = errors.New("websocket: invalid message type")
	ErrWriteToClosedConnection   = errors.New("websocket: write to closed connection")
	ErrInvalidCloseCode          = errors.New("websocket: invalid close code")
	ErrReservedBits              = errors.New("websocket: reserved bits set")
	ErrInvalidOpcode             = errors.New("websocket: invalid opcode")
	ErrFragmentedControlFrame    = errors.New("websocket: fragmented control frame")
	ErrControlFramePayloadTooBig = errors.New("websocket: control frame payload too big")
	ErrUnexpectedContinuation    = errors.New("websocket: unexpected continuation frame")
	ErrExpectedContinuation      = errors.New("websocket: expected continuation frame")
	ErrInvalidFramePayloadData   = errors.New("websocket: invalid UTF-8 in text frame")
	ErrMessageTooBig             = errors.New("websocket: message too big")
)

// CloseError represents a WebSocket close error.
type CloseError struct {
	Code int
	Text string
}

func (e *CloseError) Error() string {
	return "websocket: close " + closeCodeString(e.Code) + " " + e.Text
}

func closeCodeString(code int) string {
	switch code {
	case CloseNormalClosure:
		return "1000 (normal)"
	case CloseGoingAway:
		return "1001 (going away)"
	case CloseProtocolError:
		return "1002 (protocol error)"
	case CloseUnsupportedData:
		return "1003 (unsupported data)"
	case CloseNoStatusReceived:
		return "1005 (no status)"
	case CloseAbnormalClosure:
		return "1006 (abnormal closure)"
	case CloseInvalidFramePayloadData:
		return "1007 (invalid payload)"
	case ClosePolicyViolation:
		return "1008 (policy violation)"
	case CloseMessageTooBig:
		return "1009 (message too big)"
	case CloseMandatoryExtension:
		return "1010 (mandatory extension)"
	case CloseInternalServerErr:
		return "1011 (internal server error)"
	case CloseServiceRestart:
		return "1012 (service restart)"
	case CloseTryAgainLater:
		return "1013 (try again later)"
	case CloseTLSHandshake:
		return "1015 (TLS handshake)"
	default:
		return string(rune('0'+code/1000)) + string(rune('0'+(code/100)%10)) + string(rune('0'+(code/10)%10)) + string(rune('0'+code%10))
	}
}

const (
	defaultWriteBufferSize = 4096
	defaultReadBufferSize  = 4096

	// defaultMaxWriteFrameSize is the largest payload a single outgoing wire
	// frame carries before NextWriter's Close splits the message into
	// continuation frames (spec default: 1<<14).
	defaultMaxWriteFrameSize = 1 << 14
)

// connState is the connection's position in the close handshake state
// machine (spec.md section 4.4): open, closing (local close sent, awaiting
// peer echo or a peer-initiated close already being echoed), closed
// (transport down).
type connState int32

const (
	stateOpen connState = iota
	stateClosing
	stateClosed
)

// noCloseCode marks closeCode as not yet observed; the first writer via
// CompareAndSwap wins, matching "the close callback fires exactly once with
// whichever code was observed first" (spec.md section 5).
const noCloseCode = -1

// Conn represents a WebSocket connection. One goroutine at a time may call
// the read methods (NextReader, ReadMessage, ReadJSON); one goroutine at a
// time may call the write methods (NextWriter, WriteMessage, WriteJSON,
// WriteControl, WritePreparedMessage). Close may be called concurrently with
// either.
type Conn struct {
	id          uuid.UUID
	rwc         io.ReadWriteCloser // underlying connection
	netConn     net.Conn           // optional, for net.Conn-specific methods
	br          io.Reader          // buffered reader for reading frames
	isServer    bool
	subprotocol string

	decoder *wsframe.Decoder
	encoder *wsframe.Encoder

	readMu    sync.Mutex
	readLimit int64
	readErr   error
	reader    io.Reader
	aggregator *wsagg.Aggregator

	writeMu         sync.Mutex
	writeBuf        []byte
	writeFrameType  int
	writeCompress   bool
	writeBufferPool BufferPool
	maxWriteFrameSize int

	pingHandler  func(appData string) error
	pongHandler  func(appData string) error
	closeHandler func(code int, text string) error

	compressionEnabled bool
	compressionLevel   int
	compressParams     wscompress.Params
	compressor         *wscompress.Compressor
	decompressor       *wscompress.Decompressor
	decompressLimit    wscompress.DecompressionLimit

	state     atomic.Int32
	closeCode atomic.Int32
	closeOnce sync.Once

	awaitingPong atomic.Bool
	livenessStop func()
}

func newConn(conn net.Conn, isServer bool, readBufferSize, writeBufferSize int) *Conn {
	return newConnWithPool(conn, isServer, readBufferSize, writeBufferSize, nil)
}

func newConnWithPool(conn net.Conn, isServer bool, readBufferSize, writeBufferSize int, writeBufferPool BufferPool) *Conn {
	return newConnFromRWC(conn, conn, isServer, readBufferSize, writeBufferSize, writeBufferPool)
}

func newConnFromRWC(rwc io.ReadWriteCloser, netConn net.Conn, isServer bool, readBufferSize, writeBufferSize int, writeBufferPool BufferPool) *Conn {
	if readBufferSize <= 0 {
		readBufferSize = defaultReadBufferSize
	}
	if writeBufferSize <= 0 {
		writeBufferSize = defaultWriteBufferSize
	}

	var writeBuf []byte
	if writeBufferPool != nil {
		if buf, ok := writeBufferPool.Get().([]byte); ok && len(buf) >= writeBufferSize {
			writeBuf = buf[:0]
		}
	}
	if writeBuf == nil {
		writeBuf = make([]byte, 0, writeBufferSize)
	}

	var br io.Reader = rwc
	if netConn != nil {
		br = netConn
	}

	c := &Conn{
		id:                uuid.New(),
		rwc:               rwc,
		netConn:           netConn,
		br:                br,
		isServer:          isServer,
		writeBuf:          writeBuf,
		writeBufferPool:   writeBufferPool,
		compressionLevel:  wscompress.DefaultCompressionLevel,
		maxWriteFrameSize: defaultMaxWriteFrameSize,
		aggregator:        wsagg.New(wsagg.Limits{}),
	}
	c.decoder = wsframe.NewDecoder(br, isServer)
	c.encoder = wsframe.NewEncoder(rwc, isServer)
	c.closeCode.Store(noCloseCode)

	c.pingHandler = func(_ string) error { return nil }
	c.pongHandler = func(_ string) error { return nil }
	c.closeHandler = func(_ int, _ string) error { return nil }

	return c
}

// ID returns a stable identifier for this connection, minted once at
// upgrade/dial time. Useful for correlating lifecycle events across a
// caller's own logging or metrics when many connections are open at once.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Subprotocol returns the negotiated subprotocol for the connection.
func (c *Conn) Subprotocol() string {
	return c.subprotocol
}

// Close closes the underlying connection immediately. It is idempotent and
// safe to call concurrently with reads and writes.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(stateClosed))
		if c.livenessStop != nil {
			c.livenessStop()
		}
		if c.writeBufferPool != nil && c.writeBuf != nil {
			c.writeBufferPool.Put(c.writeBuf)
			c.writeBuf = nil
		}
		err = c.rwc.Close()
	})
	return err
}

// CloseWithCode starts a graceful close (spec.md section 4.4): sends a
// close frame carrying code and reason and transitions the connection to
// closing. The transport is torn down when NextReader reads the peer's
// close frame, or by Close. Codes CloseNoStatusReceived (1005) and
// CloseAbnormalClosure (1006) are synthetic and never valid on the wire;
// they are rewritten to CloseNormalClosure on transmission, while the
// original code is preserved for CloseCode(). A second call while the
// connection is closing is a no-op returning nil; once the connection is
// closed it returns ErrWriteToClosedConnection.
func (c *Conn) CloseWithCode(code int, reason string) error {
	c.setCloseCode(code)

	wireCode := code
	if wireCode == CloseNoStatusReceived || wireCode == CloseAbnormalClosure {
		wireCode = CloseNormalClosure
	}

	err := c.WriteControl(CloseMessage, FormatCloseMessage(wireCode, reason), time.Now().Add(5*time.Second))
	return err
}

// LocalAddr returns the local network address, or nil if not available.
func (c *Conn) LocalAddr() net.Addr {
	if c.netConn != nil {
		return c.netConn.LocalAddr()
	}
	return nil
}

// RemoteAddr returns the remote network address, or nil if not available.
func (c *Conn) RemoteAddr() net.Addr {
	if c.netConn != nil {
		return c.netConn.RemoteAddr()
	}
	return nil
}

// UnderlyingConn returns the underlying net.Conn, or nil for HTTP/2 connections.
func (c *Conn) UnderlyingConn() net.Conn {
	return c.netConn
}

// SetReadDeadline sets the read deadline on the underlying network connection.
// Returns nil if the underlying connection does not support deadlines.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if c.netConn != nil {
		return c.netConn.SetReadDeadline(t)
	}
	return nil
}

// SetWriteDeadline sets the write deadline on the underlying network connection.
// Returns nil if the underlying connection does not support deadlines.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	if c.netConn != nil {
		return c.netConn.SetWriteDeadline(t)
	}
	return nil
}

// SetReadLimit sets the maximum payload size in bytes of a single frame read
// from the peer; a larger frame fails the connection. The total size of a
// fragmented message is bounded by SetAggregatorLimits, not by this limit.
func (c *Conn) SetReadLimit(limit int64) {
	c.readLimit = limit
	c.decoder.MaxFrameSize = limit
}

// SetAggregatorLimits configures the fragment-reassembly bounds enforced on
// incoming messages (spec.md section 4.2).
func (c *Conn) SetAggregatorLimits(limits wsagg.Limits) {
	c.aggregator = wsagg.New(limits)
}

// SetMaxWriteFrameSize bounds the payload of a single outgoing wire frame;
// NextWriter's Close splits a larger message into continuation frames. Zero
// restores the default (1<<14 bytes).
func (c *Conn) SetMaxWriteFrameSize(n int) {
	if n <= 0 {
		n = defaultMaxWriteFrameSize
	}
	c.maxWriteFrameSize = n
}

// SetPingHandler sets the callback invoked when a ping is received. The
// engine always sends the mandated pong response regardless of this
// callback; the handler is a pure notification hook. A nil handler restores
// the no-op default.
func (c *Conn) SetPingHandler(h func(appData string) error) {
	if h == nil {
		h = func(_ string) error { return nil }
	}
	c.pingHandler = h
}

// SetPongHandler sets the callback invoked when a pong is received. A nil
// handler restores the no-op default.
func (c *Conn) SetPongHandler(h func(appData string) error) {
	if h == nil {
		h = func(_ string) error { return nil }
	}
	c.pongHandler = h
}

// SetCloseHandler sets the callback invoked when a close frame is received.
// The engine always echoes the close frame and tears down the transport
// regardless of this callback; the handler is a pure notification hook. A
// nil handler restores the no-op default.
func (c *Conn) SetCloseHandler(h func(code int, text string) error) {
	if h == nil {
		h = func(_ int, _ string) error { return nil }
	}
	c.closeHandler = h
}

// EnableWriteCompression enables or disables write compression for the
// connection. Has effect only when compression was negotiated at
// handshake time.
func (c *Conn) EnableWriteCompression(enable bool) {
	c.writeCompress = enable
}

// SetCompressionLevel sets the DEFLATE compression level for the connection.
func (c *Conn) SetCompressionLevel(level int) error {
	if level < wscompress.MinCompressionLevel || level > wscompress.MaxCompressionLevel {
		return errors.New("websocket: invalid compression level")
	}
	c.compressionLevel = level
	return nil
}

// SetDecompressionLimit bounds how far an incoming compressed message may
// expand; exceeding it fails the message with close code 1009.
func (c *Conn) SetDecompressionLimit(limit wscompress.DecompressionLimit) {
	c.decompressLimit = limit
	if c.decompressor != nil {
		c.decompressor = wscompress.NewDecompressor(c.compressParams.DecompressorNoContextTakeover(c.isServer), limit)
	}
}

// configureCompression wires the negotiated permessage-deflate parameters
// into this connection's compressor/decompressor pair. Called by the
// Upgrader/Dialer once negotiation completes.
func (c *Conn) configureCompression(enabled bool, params wscompress.Params) {
	c.compressionEnabled = enabled
	c.compressParams = params
	if !enabled {
		return
	}
	c.compressor = wscompress.NewCompressor(c.compressionLevel, params.CompressorNoContextTakeover(c.isServer))
	c.decompressor = wscompress.NewDecompressor(params.DecompressorNoContextTakeover(c.isServer), c.decompressLimit)
	c.decoder.CompressionEnabled = true
}

// CloseCode returns the close code observed for this connection, or
// CloseNoStatusReceived if none has been observed yet.
func (c *Conn) CloseCode() int {
	code := c.closeCode.Load()
	if code == noCloseCode {
		return CloseNoStatusReceived
	}
	return int(code)
}

// setCloseCode records code as the connection's close code if none has been
// recorded yet; only the first observed code sticks (spec.md section 4.4).
func (c *Conn) setCloseCode(code int) {
	c.closeCode.CompareAndSwap(noCloseCode, int32(code))
}

// isReservedCloseCode reports whether code is one RFC 6455 forbids from
// appearing on the wire: below 1000, the synthetic/unassigned codes in the
// defined range, or above the library/private-use space (section 7.4).
func isReservedCloseCode(code int) bool {
	if code < 1000 || code >= 5000 {
		return true
	}
	switch code {
	case 1004, CloseNoStatusReceived, CloseAbnormalClosure, CloseTLSHandshake:
		return true
	}
	if code >= 1016 && code <= 2999 {
		return true
	}
	return false
}

// WriteControl writes a control message with the given deadline.
func (c *Conn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	if messageType != CloseMessage && messageType != PingMessage && messageType != PongMessage {
		return ErrInvalidControlFrame
	}
	if len(data) > wsframe.MaxControlFramePayloadSize {
		return ErrControlFramePayloadTooBig
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeControlLocked(messageType, data, deadline)
}

func (c *Conn) writeControlLocked(messageType int, data []byte, deadline time.Time) error {
	if connState(c.state.Load()) == stateClosed {
		return ErrWriteToClosedConnection
	}
	if messageType == CloseMessage && connState(c.state.Load()) == stateClosing {
		return nil
	}

	if c.netConn != nil {
		_ = c.netConn.SetWriteDeadline(deadline)
	}

	err := c.encoder.Encode(wsframe.Frame{Fin: true, Opcode: wsframe.Opcode(messageType), Payload: data})
	if messageType == CloseMessage {
		c.state.CompareAndSwap(int32(stateOpen), int32(stateClosing))
	}
	return err
}

// WriteMessage writes a message with the given message type and payload.
func (c *Conn) WriteMessage(messageType int, data []byte) error {
	w, err := c.NextWriter(messageType)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// NextWriter returns a writer for the next message to send. The write is
// buffered in memory and framed (with compression, if negotiated and
// enabled) only when Close is called, because permessage-deflate must see
// a whole message before it can correctly apply SYNC_FLUSH.
func (c *Conn) NextWriter(messageType int) (io.WriteCloser, error) {
	if messageType != TextMessage && messageType != BinaryMessage {
		return nil, ErrInvalidMessageType
	}

	c.writeMu.Lock()

	if connState(c.state.Load()) != stateOpen {
		c.writeMu.Unlock()
		return &droppedWriter{}, nil
	}

	return &messageWriter{c: c, messageType: messageType, compress: c.writeCompress && c.compressionEnabled}, nil
}

// ReadMessage reads the next message from the connection.
func (c *Conn) ReadMessage() (messageType int, p []byte, err error) {
	var r io.Reader
	messageType, r, err = c.NextReader()
	if err != nil {
		return 0, nil, err
	}
	p, err = io.ReadAll(r)
	return messageType, p, err
}

// NextReader returns the next message reader from the connection. Ping,
// pong, and close frames are handled internally (notification callbacks are
// invoked, and the mandated protocol action — pong reply or close echo — is
// always taken); NextReader loops past them and returns the next data
// message.
func (c *Conn) NextReader() (messageType int, r io.Reader, err error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.readErr != nil {
		return 0, nil, c.readErr
	}

	for {
		f, err := c.decoder.Decode()
		if err != nil {
			if isFrameProtocolError(err) {
				c.readErr = c.protocolFail(err)
			} else {
				c.readErr = c.transportFailure(err)
			}
			return 0, nil, c.readErr
		}

		msg, err := c.aggregator.Feed(f)
		if err != nil {
			c.readErr = c.protocolFail(err)
			return 0, nil, c.readErr
		}
		if msg == nil {
			continue
		}

		switch msg.Kind {
		case wsframe.OpPing:
			if err := c.pingHandler(string(msg.Payload)); err != nil {
				return 0, nil, err
			}
			_ = c.WriteControl(PongMessage, msg.Payload, time.Now().Add(5*time.Second))
			continue
		case wsframe.OpPong:
			c.awaitingPong.Store(false)
			if err := c.pongHandler(string(msg.Payload)); err != nil {
				return 0, nil, err
			}
			continue
		case wsframe.OpClose:
			c.readErr = c.handlePeerClose(msg.Payload)
			return 0, nil, c.readErr
		case wsframe.OpText, wsframe.OpBinary:
			payload := msg.Payload
			if msg.Compressed {
				var decErr error
				payload, decErr = c.decompressor.Decompress(payload)
				if decErr != nil {
					c.readErr = c.protocolFail(decErr)
					return 0, nil, c.readErr
				}
			}
			if msg.Kind == wsframe.OpText && !utf8.Valid(payload) {
				c.readErr = c.protocolFail(ErrInvalidFramePayloadData)
				return 0, nil, c.readErr
			}
			c.reader = &messageReader{buf: payload}
			return int(msg.Kind), c.reader, nil
		default:
			return 0, nil, ErrInvalidOpcode
		}
	}
}

// handlePeerClose implements spec.md section 4.4's peer-close transitions:
// echo the peer's code (or 1000 if absent/reserved), tear down the
// transport once the echo is written, and fail future reads with a
// *CloseError carrying the peer's original code.
func (c *Conn) handlePeerClose(payload []byte) error {
	code, text := parseClosePayload(payload)

	c.setCloseCode(code)
	if err := c.closeHandler(code, text); err != nil {
		_ = c.Close()
		return err
	}

	echoCode := code
	if echoCode == CloseNoStatusReceived || isReservedCloseCode(echoCode) {
		echoCode = CloseNormalClosure
	}

	c.writeMu.Lock()
	_ = c.writeControlLocked(CloseMessage, FormatCloseMessage(echoCode, ""), time.Now().Add(5*time.Second))
	c.writeMu.Unlock()

	_ = c.Close()
	return &CloseError{Code: code, Text: text}
}

func parseClosePayload(payload []byte) (code int, text string) {
	if len(payload) < 2 {
		return CloseNoStatusReceived, ""
	}
	return int(payload[0])<<8 | int(payload[1]), string(payload[2:])
}

// transportFailure maps a read-side transport error to the close state
// (spec.md section 4.4: "any state + transport failure -> closed; invoke
// close callback ... with close code 1006 if no other code was observed").
func (c *Conn) transportFailure(err error) error {
	c.setCloseCode(CloseAbnormalClosure)
	_ = c.Close()
	return &CloseError{Code: CloseAbnormalClosure, Text: err.Error()}
}

// protocolFail maps a decode/aggregate/compression error to its close code
// (spec.md section 7), sends a close frame carrying that code, and tears
// down the transport. The returned error is a *CloseError, the same as
// handlePeerClose returns for a peer-initiated close, so IsCloseError works
// regardless of which side ended the connection.
func (c *Conn) protocolFail(err error) error {
	code := protocolErrorCloseCode(err)
	c.setCloseCode(code)

	c.writeMu.Lock()
	_ = c.writeControlLocked(CloseMessage, FormatCloseMessage(code, ""), time.Now().Add(5*time.Second))
	c.writeMu.Unlock()

	_ = c.Close()
	return &CloseError{Code: code, Text: err.Error()}
}

func protocolErrorCloseCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidFramePayloadData):
		return CloseInvalidFramePayloadData
	case errors.Is(err, wsagg.ErrMessageTooBig), errors.Is(err, wsagg.ErrTooManyFrames),
		errors.Is(err, wscompress.ErrDecompressionLimitExceeded), errors.Is(err, wsframe.ErrFrameTooLarge):
		return CloseMessageTooBig
	default:
		return CloseProtocolError
	}
}

// isFrameProtocolError reports whether err is one of wsframe's decode
// sentinels describing a malformed frame, as opposed to a raw transport
// failure (io.EOF, a reset connection, ...). The former warrants an active
// close handshake at code 1002 (or 1009 for a too-large frame); the latter
// is an abnormal closure with no peer to hand a close frame to.
func isFrameProtocolError(err error) bool {
	switch {
	case errors.Is(err, wsframe.ErrReservedBits),
		errors.Is(err, wsframe.ErrInvalidControlOpcode),
		errors.Is(err, wsframe.ErrInvalidNonControlOpcode),
		errors.Is(err, wsframe.ErrFragmentedControlFrame),
		errors.Is(err, wsframe.ErrControlFramePayloadTooBig),
		errors.Is(err, wsframe.ErrMaskDirection),
		errors.Is(err, wsframe.ErrLengthHighBitSet),
		errors.Is(err, wsframe.ErrFrameTooLarge):
		return true
	default:
		return false
	}
}

type messageWriter struct {
	c           *Conn
	messageType int
	compress    bool
	closed      bool
	buf         []byte
}

func (w *messageWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrWriteToClosedConnection
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close flushes the buffered message: compresses it (if negotiated and
// enabled) as a single unit per RFC 7692, then frames it, optionally
// splitting across several wire frames bounded by Conn.maxWriteFrameSize.
func (w *messageWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.c.writeMu.Unlock()

	c := w.c
	if connState(c.state.Load()) != stateOpen {
		return nil
	}

	payload := w.buf
	rsv1 := false
	if w.compress {
		compressed, err := c.compressor.Compress(payload)
		if err != nil {
			return err
		}
		payload = compressed
		rsv1 = true
	}

	return c.writeFramedPayload(w.messageType, payload, rsv1)
}

// writeFramedPayload emits payload as one or more wire frames of at most
// maxWriteFrameSize bytes, setting RSV1 only on the leading frame per RFC
// 7692 (continuation frames inherit compression implicitly and must not
// repeat RSV1).
func (c *Conn) writeFramedPayload(messageType int, payload []byte, rsv1 bool) error {
	if len(payload) == 0 {
		return c.encoder.Encode(wsframe.Frame{Fin: true, RSV1: rsv1, Opcode: wsframe.Opcode(messageType), Payload: payload})
	}

	opcode := wsframe.Opcode(messageType)
	for offset := 0; offset < len(payload); offset += c.maxWriteFrameSize {
		end := offset + c.maxWriteFrameSize
		if end > len(payload) {
			end = len(payload)
		}
		fin := end == len(payload)

		if err := c.encoder.Encode(wsframe.Frame{
			Fin:     fin,
			RSV1:    rsv1 && offset == 0,
			Opcode:  opcode,
			Payload: payload[offset:end],
		}); err != nil {
			return err
		}
		opcode = wsframe.OpContinuation
	}
	return nil
}

// droppedWriter silently discards writes after the connection has entered
// stateClosing/stateClosed, matching spec.md section 4.4: "sends after
// closing is entered are dropped with a nil error."
type droppedWriter struct{}

func (droppedWriter) Write(p []byte) (int, error) { return len(p), nil }
func (droppedWriter) Close() error                 { return nil }

type messageReader struct {
	buf []byte
	pos int
}

func (r *messageReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	n := copy(p, r.buf[r.pos:])
	r.pos += n
	return n, nil
}
