package wscompress

import "errors"

// ErrDecompressionLimitExceeded is returned by Decompressor.Decompress when
// the expanded output would exceed the configured DecompressionLimit. The
// connection state machine maps this to close code 1009.
var ErrDecompressionLimitExceeded = errors.New("wscompress: decompression limit exceeded")
