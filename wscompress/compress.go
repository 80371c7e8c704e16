// Package wscompress implements the permessage-deflate extension (RFC 7692)
// for a single connection direction: per-message DEFLATE compression with
// the SYNC_FLUSH tail-stripping convention and the context-takeover option
// RFC 7692 section 7.1.1 negotiates.
//
// compress/flate's Writer.Reset and the Resetter interface discard the
// LZ77 sliding window on reset, keeping only an explicit preset dictionary
// (flate.NewWriterDict/NewReaderDict). There is no stdlib way to keep one
// flate.Writer/Reader pair open indefinitely across independently-framed
// WebSocket messages without risking the caller blocking on a pipe, so
// context takeover here is emulated with a preset dictionary: the last
// 32KB of the uncompressed stream on each side is carried into the next
// message's Compress/Decompress call. This reproduces the same effective
// compression ratio a continuous stream would give, since DEFLATE's LZ77
// back-references cannot reach further than a 32KB window anyway.
package wscompress

import (
	"bytes"
	"compress/flate"
	"io"
)

// Compressor performs per-message permessage-deflate compression for one
// direction of a connection. Not safe for concurrent use.
type Compressor struct {
	level      int
	noTakeover bool
	dict       []byte
}

// NewCompressor returns a Compressor at the given DEFLATE level. When
// noContextTakeover is true, the sliding-window dictionary is discarded
// after every message, matching a client_no_context_takeover /
// server_no_context_takeover negotiation.
func NewCompressor(level int, noContextTakeover bool) *Compressor {
	return &Compressor{level: level, noTakeover: noContextTakeover}
}

// Compress deflates payload, strips the trailing SYNC_FLUSH empty-block
// marker (0x00 0x00 0xff 0xff) per RFC 7692 section 7.2.1, and returns the
// result. If this Compressor does not use no-context-takeover mode, the
// trailing window of payload is retained as the preset dictionary for the
// next call.
func (c *Compressor) Compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer

	var fw *flate.Writer
	var err error
	if len(c.dict) > 0 {
		fw, err = flate.NewWriterDict(&buf, c.level, c.dict)
	} else {
		fw, err = flate.NewWriter(&buf, c.level)
	}
	if err != nil {
		return nil, err
	}

	if _, err := fw.Write(payload); err != nil {
		return nil, err
	}
	if err := fw.Flush(); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if len(out) >= 4 {
		out = out[:len(out)-4]
	}
	result := make([]byte, len(out))
	copy(result, out)

	if c.noTakeover {
		c.dict = nil
	} else {
		c.dict = appendDictionary(c.dict, payload)
	}

	return result, nil
}

// Decompressor performs per-message permessage-deflate decompression for
// one direction of a connection. Not safe for concurrent use.
type Decompressor struct {
	noTakeover bool
	dict       []byte
	limit      DecompressionLimit
}

// NewDecompressor returns a Decompressor. When noContextTakeover is true,
// the sliding-window dictionary is discarded after every message. limit
// bounds how far Decompress will expand a single message.
func NewDecompressor(noContextTakeover bool, limit DecompressionLimit) *Decompressor {
	return &Decompressor{noTakeover: noContextTakeover, limit: limit}
}

// deflateTail is appended to every compressed message before inflating: the
// SYNC_FLUSH empty-block suffix RFC 7692 section 7.2.2 requires the receiver
// to restore (0x00 0x00 0xff 0xff), followed by a final empty stored block
// (0x01 0x00 0x00 0xff 0xff) so the inflater reaches a clean end of stream.
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff, 0x01, 0x00, 0x00, 0xff, 0xff}

// Decompress inflates compressed (with the SYNC_FLUSH tail restored) and
// enforces the configured DecompressionLimit. If this Decompressor does not
// use no-context-takeover mode, the trailing window of the output is
// retained as the preset dictionary for the next call.
func (d *Decompressor) Decompress(compressed []byte) ([]byte, error) {
	src := io.MultiReader(bytes.NewReader(compressed), bytes.NewReader(deflateTail))

	var fr io.ReadCloser
	if len(d.dict) > 0 {
		fr = flate.NewReaderDict(src, d.dict)
	} else {
		fr = flate.NewReader(src)
	}
	defer fr.Close()

	limitBytes := d.limit.max(len(compressed))

	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := fr.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			if limitBytes >= 0 && int64(out.Len()) > limitBytes {
				return nil, ErrDecompressionLimitExceeded
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	result := out.Bytes()

	if d.noTakeover {
		d.dict = nil
	} else {
		d.dict = appendDictionary(d.dict, result)
	}

	return result, nil
}

// appendDictionary returns the trailing maxDictionarySize bytes of dict+add,
// the preset dictionary compress/flate will use on the next message.
func appendDictionary(dict, add []byte) []byte {
	combined := append(append([]byte(nil), dict...), add...)
	if len(combined) > maxDictionarySize {
		combined = combined[len(combined)-maxDictionarySize:]
	}
	return combined
}
