package wscompress

// Compression level constants for DEFLATE (RFC 1951), matching the range
// compress/flate accepts.
const (
	MinCompressionLevel     = -2
	MaxCompressionLevel     = 9
	DefaultCompressionLevel = 1

	// MaxWindowBits is the default and maximum client/server max window
	// bits permessage-deflate negotiates (RFC 7692, section 7.1.2.1).
	MaxWindowBits     = 15
	MinWindowBits     = 9
	DefaultWindowBits = 15

	// maxDictionarySize bounds the preset dictionary carried forward
	// between messages to emulate context takeover (see Compressor/
	// Decompressor doc comments): RFC 1951's sliding window is 32KB, so
	// carrying more would never improve the compression ratio.
	maxDictionarySize = 32 * 1024
)

// Params holds the negotiated permessage-deflate parameters for one
// connection (RFC 7692, section 7.1).
type Params struct {
	// ClientNoContextTakeover / ServerNoContextTakeover report whether the
	// compressor (resp. decompressor) on that side of the connection must
	// discard its sliding-window state after every message rather than
	// carrying it into the next one.
	ClientNoContextTakeover bool
	ServerNoContextTakeover bool

	// ClientMaxWindowBits / ServerMaxWindowBits negotiate the base-2
	// logarithm of the LZ77 window size each side's compressor may use,
	// in [MinWindowBits, MaxWindowBits].
	ClientMaxWindowBits int
	ServerMaxWindowBits int

	// CompressionLevel is the DEFLATE compression level used for this
	// connection's compressor.
	CompressionLevel int

	// Strategy is the compress/flate strategy hint. compress/flate does not
	// expose zlib-style strategy constants directly; this field is reserved
	// for forward compatibility and currently unused by Compressor.
	Strategy int

	// MemLevel is accepted for wire-compatibility with callers migrating
	// configuration from zlib-based permessage-deflate stacks, which expose
	// a memory-level knob alongside compression level. compress/flate has no
	// equivalent parameter, so this is a documented no-op: Compressor never
	// reads it.
	MemLevel int
}

// DefaultParams returns the permessage-deflate defaults: context takeover
// enabled on both sides, full 15-bit window, default compression level.
func DefaultParams() Params {
	return Params{
		ClientMaxWindowBits: DefaultWindowBits,
		ServerMaxWindowBits: DefaultWindowBits,
		CompressionLevel:    DefaultCompressionLevel,
	}
}

// CompressorNoContextTakeover reports whether the compressor run by the
// named role (isServer selects which) must reset its state after every
// message.
func (p Params) CompressorNoContextTakeover(isServer bool) bool {
	if isServer {
		return p.ServerNoContextTakeover
	}
	return p.ClientNoContextTakeover
}

// DecompressorNoContextTakeover reports whether the decompressor run by the
// named role must reset its state after every message: it inflates the
// peer's compressor output, so it follows the peer's no-context-takeover
// flag.
func (p Params) DecompressorNoContextTakeover(isServer bool) bool {
	if isServer {
		return p.ClientNoContextTakeover
	}
	return p.ServerNoContextTakeover
}

// LimitKind selects how a Decompressor bounds expansion of compressed input.
type LimitKind int

const (
	// LimitNone applies no decompression bound.
	LimitNone LimitKind = iota
	// LimitAbsolute caps the expanded output at MaxBytes regardless of
	// the compressed input size.
	LimitAbsolute
	// LimitRatio caps the expanded output at Ratio times the compressed
	// input size.
	LimitRatio
)

// DecompressionLimit bounds the output of Decompressor.Decompress, guarding
// against decompression-bomb payloads.
type DecompressionLimit struct {
	Kind    LimitKind
	MaxBytes int64
	Ratio   float64
}

// max returns the byte limit for a compressed input of size n, or -1 if
// unbounded.
func (l DecompressionLimit) max(compressedSize int) int64 {
	switch l.Kind {
	case LimitAbsolute:
		return l.MaxBytes
	case LimitRatio:
		return int64(float64(compressedSize) * l.Ratio)
	default:
		return -1
	}
}
