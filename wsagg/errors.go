package wsagg

import "errors"

// Errors returned by Aggregator.Feed. Names match the sentinels the teacher
// already declared in conn.go but never wired to fragment reassembly.
var (
	ErrUnexpectedContinuation  = errors.New("wsagg: continuation frame with no pending message")
	ErrExpectedContinuation    = errors.New("wsagg: data frame received while a fragmented message is pending")
	ErrReservedBits            = errors.New("wsagg: RSV1 set on a continuation frame")
	ErrMessageTooBig           = errors.New("wsagg: accumulated message exceeds configured size limit")
	ErrTooManyFrames           = errors.New("wsagg: fragmented message exceeds configured frame count limit")
	ErrNonFinalFragmentTooSmall = errors.New("wsagg: non-final fragment smaller than the configured minimum")
)
