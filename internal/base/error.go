package base

import "errors"

var (
	ErrInvalidMagic    = errors.New("invalid magic number")
	ErrInvalidChecksum = errors.New("invalid checksum")
	ErrInvalidNode     = errors.New("invalid node block")
	ErrInvalidRoot     = errors.New("root offset does not address a node block")
	ErrNodeOverflow    = errors.New("node overflow")
	ErrShortBuffer     = errors.New("buffer too small")

	ErrKeyEmpty    = errors.New("key cannot be empty")
	ErrKeyTooLarge = errors.New("key too large")
	ErrKeyInvalid  = errors.New("key contains an embedded NUL byte")
)
