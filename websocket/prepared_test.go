package websocket

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaywire/wsock/wsframe"
)

func TestNewPreparedMessage(t *testing.T) {
	tests := []struct {
		name            string
		messageType     int
		data            []byte
		expectErr       bool
		expectedErrIs   error
		wantMessageType int
		wantData        []byte
	}{
		{
			name:            "Valid text message",
			messageType:     TextMessage,
			data:            []byte("hello"),
			wantMessageType: TextMessage,
			wantData:        []byte("hello"),
		},
		{
			name:            "Valid binary message",
			messageType:     BinaryMessage,
			data:            []byte{0x01, 0x02, 0x03},
			wantMessageType: BinaryMessage,
		},
		{
			name:          "Invalid message type",
			messageType:   PingMessage,
			data:          []byte("ping"),
			expectErr:     true,
			expectedErrIs: ErrInvalidMessageType,
		},
		{
			name:        "Empty data",
			messageType: TextMessage,
			data:        []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, err := NewPreparedMessage(tt.messageType, tt.data)

			if tt.expectErr {
				assert.Nil(t, pm)
				assert.ErrorIs(t, err, tt.expectedErrIs)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, pm)

			if tt.wantMessageType != 0 {
				assert.Equal(t, tt.wantMessageType, pm.messageType)
			}
			if tt.wantData != nil {
				assert.Equal(t, tt.wantData, pm.data)
			}
		})
	}
}

func TestPreparedMessageFrame(t *testing.T) {
	t.Run("Cache frames", func(t *testing.T) {
		pm, err := NewPreparedMessage(TextMessage, []byte("hello"))
		require.NoError(t, err)

		key := prepareKey{isServer: true, compress: false}

		frame1, err := pm.frame(key)
		require.NoError(t, err)

		frame2, err := pm.frame(key)
		require.NoError(t, err)

		assert.Equal(t, frame1, frame2)
		assert.Len(t, pm.frames, 1)
	})

	t.Run("Different keys different frames", func(t *testing.T) {
		pm, err := NewPreparedMessage(TextMessage, []byte("hello"))
		require.NoError(t, err)

		serverKey := prepareKey{isServer: true, compress: false}
		clientKey := prepareKey{isServer: false, compress: false}

		serverFrame, err := pm.frame(serverKey)
		require.NoError(t, err)

		clientFrame, err := pm.frame(clientKey)
		require.NoError(t, err)

		assert.NotEqual(t, serverFrame, clientFrame)
		assert.Len(t, pm.frames, 2)
	})

	t.Run("Compressed frame sets RSV1", func(t *testing.T) {
		pm, err := NewPreparedMessage(TextMessage, []byte("compressible data"))
		require.NoError(t, err)

		frame, err := pm.frame(prepareKey{isServer: true, compress: true})
		require.NoError(t, err)

		dec := wsframe.NewDecoder(bytes.NewReader(frame), false)
		dec.CompressionEnabled = true
		f, err := dec.Decode()
		require.NoError(t, err)
		assert.True(t, f.RSV1)
	})
}

func TestWritePreparedMessage(t *testing.T) {
	tests := []struct {
		name     string
		isServer bool
	}{
		{name: "Server writes prepared message", isServer: true},
		{name: "Client writes prepared message", isServer: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, err := NewPreparedMessage(TextMessage, []byte("prepared hello"))
			require.NoError(t, err)

			mock := newMockConn()
			conn := newConn(mock, tt.isServer, 0, 0)

			err = conn.WritePreparedMessage(pm)
			require.NoError(t, err)

			dec := wsframe.NewDecoder(mock.writeBuf, !tt.isServer)
			f, err := dec.Decode()
			require.NoError(t, err)
			assert.Equal(t, wsframe.OpText, f.Opcode)
			assert.Equal(t, "prepared hello", string(f.Payload))
		})
	}
}

func TestWritePreparedMessageMultiple(t *testing.T) {
	t.Run("Same message to multiple connections", func(t *testing.T) {
		pm, err := NewPreparedMessage(TextMessage, []byte("shared message"))
		require.NoError(t, err)

		mock1 := newMockConn()
		conn1 := newConn(mock1, true, 0, 0)

		mock2 := newMockConn()
		conn2 := newConn(mock2, true, 0, 0)

		require.NoError(t, conn1.WritePreparedMessage(pm))
		require.NoError(t, conn2.WritePreparedMessage(pm))

		assert.Equal(t, mock1.writeBuf.Bytes(), mock2.writeBuf.Bytes())
	})
}

func TestWritePreparedMessageAfterClose(t *testing.T) {
	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)
	require.NoError(t, conn.Close())

	pm, err := NewPreparedMessage(TextMessage, []byte("test"))
	require.NoError(t, err)

	err = conn.WritePreparedMessage(pm)
	require.NoError(t, err)
	assert.Zero(t, mock.writeBuf.Len())
}

func TestWritePreparedMessageCompressed(t *testing.T) {
	pm, err := NewPreparedMessage(TextMessage, []byte("compress me"))
	require.NoError(t, err)

	mock := newMockConn()
	conn := newConn(mock, true, 0, 0)
	conn.compressionEnabled = true
	conn.writeCompress = true

	require.NoError(t, conn.WritePreparedMessage(pm))

	dec := wsframe.NewDecoder(mock.writeBuf, false)
	dec.CompressionEnabled = true
	f, err := dec.Decode()
	require.NoError(t, err)
	assert.True(t, f.RSV1)
}

func BenchmarkPreparedMessage(b *testing.B) {
	data := []byte("prepared message data prepared message data prepared message data ")
	pm, _ := NewPreparedMessage(TextMessage, data)

	b.Run("Create", func(b *testing.B) {
		for b.Loop() {
			_, _ = NewPreparedMessage(TextMessage, data)
		}
	})

	b.Run("Write", func(b *testing.B) {
		mock := newMockConn()
		conn := newConn(mock, true, 0, 0)

		b.ResetTimer()

		for b.Loop() {
			mock.writeBuf.Reset()
			_ = conn.WritePreparedMessage(pm)
		}
	})

	b.Run("WriteMultiple", func(b *testing.B) {
		mocks := make([]*mockConn, 10)
		conns := make([]*Conn, 10)
		for i := range mocks {
			mocks[i] = newMockConn()
			conns[i] = newConn(mocks[i], true, 0, 0)
		}

		b.ResetTimer()

		for b.Loop() {
			for i := range conns {
				mocks[i].writeBuf.Reset()
				_ = conns[i].WritePreparedMessage(pm)
			}
		}
	})
}
