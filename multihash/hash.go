package multihash

import (
	"bytes"
	"encoding/hex"
	"fmt"

	mh "github.com/multiformats/go-multihash"
	_ "github.com/multiformats/go-multihash/register/blake3"
)

// ContentHash wraps a BLAKE3 multihash used as a content key for image data
// Format: <0x1e><0x20><32 bytes> = 34 bytes total
type ContentHash []byte

// NewContentHash creates a BLAKE3 multihash from data
func NewContentHash(data []byte) (ContentHash, error) {
	h, err := mh.Sum(data, mh.BLAKE3, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to hash data: %w", err)
	}
	return ContentHash(h), nil
}

// ParseContentHash decodes a hex string produced by Hex
func ParseContentHash(s string) (ContentHash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	decoded, err := mh.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid multihash: %w", err)
	}
	if decoded.Code != mh.BLAKE3 {
		return nil, fmt.Errorf("expected BLAKE3 hash, got 0x%x", decoded.Code)
	}
	return ContentHash(raw), nil
}

// Verify checks that the hash matches the provided data
func (h ContentHash) Verify(data []byte) error {
	decoded, err := mh.Decode(mh.Multihash(h))
	if err != nil {
		return fmt.Errorf("invalid multihash: %w", err)
	}

	if decoded.Code != mh.BLAKE3 {
		return fmt.Errorf("expected BLAKE3 hash, got 0x%x", decoded.Code)
	}

	computed, err := mh.Sum(data, decoded.Code, decoded.Length)
	if err != nil {
		return fmt.Errorf("hash computation failed: %w", err)
	}

	if !bytes.Equal(computed, h) {
		return fmt.Errorf("hash verification failed")
	}

	return nil
}

// Bytes returns the raw multihash bytes
func (h ContentHash) Bytes() []byte {
	return []byte(h)
}

// Hex returns the hex-encoded multihash
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h)
}
