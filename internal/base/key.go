package base

import "bytes"

// Key is a stored key: the key bytes followed by NUL padding. Comparing two
// padded keys byte-wise gives the same order as comparing them as
// NUL-terminated strings.
type Key [KeyMaxLength]byte

// MakeKey validates k and returns its padded form. Trailing NUL bytes are
// treated as padding, so a fixed-width "%dkey" buffer maps to "%dkey".
func MakeKey(k []byte) (Key, error) {
	var key Key

	k = bytes.TrimRight(k, "\x00")
	if len(k) == 0 {
		return key, ErrKeyEmpty
	}
	if len(k) > KeyMaxLength {
		return key, ErrKeyTooLarge
	}
	if bytes.IndexByte(k, 0) >= 0 {
		return key, ErrKeyInvalid
	}

	copy(key[:], k)
	return key, nil
}

// Compare returns -1, 0 or 1 as k sorts before, equal to or after other.
func (k *Key) Compare(other *Key) int {
	return bytes.Compare(k[:], other[:])
}

// Bytes returns a copy of the key without padding.
func (k *Key) Bytes() []byte {
	n := bytes.IndexByte(k[:], 0)
	if n < 0 {
		n = KeyMaxLength
	}
	out := make([]byte, n)
	copy(out, k[:n])
	return out
}

// String returns the key without padding.
func (k Key) String() string {
	return string(k.Bytes())
}
