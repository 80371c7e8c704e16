package websocket

import (
	"bytes"
	"sync"

	"github.com/relaywire/wsock/wscompress"
	"github.com/relaywire/wsock/wsframe"
)

// PreparedMessage caches on-the-wire representations of a message payload.
// Use PreparedMessage to efficiently send a message payload to multiple connections.
type PreparedMessage struct {
	messageType int
	data        []byte
	mu          sync.Mutex
	frames      map[prepareKey]*preparedFrame
}

type prepareKey struct {
	isServer bool
	compress bool
}

type preparedFrame struct {
	data []byte
}

// NewPreparedMessage returns an initialized PreparedMessage.
func NewPreparedMessage(messageType int, data []byte) (*PreparedMessage, error) {
	if messageType != TextMessage && messageType != BinaryMessage {
		return nil, ErrInvalidMessageType
	}

	pm := &PreparedMessage{
		messageType: messageType,
		data:        data,
		frames:      make(map[prepareKey]*preparedFrame),
	}

	return pm, nil
}

// frame renders pm for the given key, caching the result. Compression, when
// requested, uses a fresh one-shot Compressor: a prepared message is shared
// across many connections and cannot carry any single connection's
// context-takeover dictionary.
func (pm *PreparedMessage) frame(key prepareKey) ([]byte, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pf, ok := pm.frames[key]; ok {
		return pf.data, nil
	}

	data := pm.data
	if key.compress {
		compressor := wscompress.NewCompressor(wscompress.DefaultCompressionLevel, true)
		compressed, err := compressor.Compress(data)
		if err != nil {
			return nil, err
		}
		data = compressed
	}

	var buf bytes.Buffer
	enc := wsframe.NewEncoder(&buf, key.isServer)
	if err := enc.Encode(wsframe.Frame{
		Fin:     true,
		RSV1:    key.compress,
		Opcode:  wsframe.Opcode(pm.messageType),
		Payload: data,
	}); err != nil {
		return nil, err
	}

	frameData := buf.Bytes()
	pm.frames[key] = &preparedFrame{data: frameData}
	return frameData, nil
}

// WritePreparedMessage writes pm to the connection.
func (c *Conn) WritePreparedMessage(pm *PreparedMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if connState(c.state.Load()) != stateOpen {
		return nil
	}

	key := prepareKey{
		isServer: c.isServer,
		compress: c.compressionEnabled && c.writeCompress,
	}

	frameData, err := pm.frame(key)
	if err != nil {
		return err
	}

	_, err = c.rwc.Write(frameData)
	return err
}
