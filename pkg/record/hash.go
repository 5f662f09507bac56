package record

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the width of every record identity digest.
const HashSize = 32

// Hash is a 32-byte identity digest: a lock identity, a type identity or a
// content hash.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash. b must be exactly HashSize bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: hash must be %d bytes, got %d", ErrEncoding, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash decodes a hex string, with or without a 0x prefix.
func ParseHash(s string) (Hash, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(raw)
}

// DecodeHex decodes arbitrary-length hex, with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return raw, nil
}

// MustParseHash is ParseHash for constants and tests.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Repeat returns a hash with every byte set to b.
func Repeat(b byte) Hash {
	var h Hash
	for i := range h {
		h[i] = b
	}
	return h
}

// HashContent digests raw record content with blake2b-256.
func HashContent(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// IsZero reports whether every byte of h is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Short is an abbreviated form for log lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:4])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
