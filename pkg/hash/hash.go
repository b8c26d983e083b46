// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

// Package hash provides the fixed-size content digest used to key
// downloads, git checkouts, unpacked archives, and baked recipe outputs.
package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Hash is a SHA-256 digest. It is comparable, ordered byte-lexicographically,
// and displays as 64 lowercase hex characters.
type Hash [Size]byte

// FromBytes wraps a raw digest.
func FromBytes(b [Size]byte) Hash {
	return Hash(b)
}

// FromDigest finalizes a SHA-256 hash.Hash into a Hash.
func FromDigest(d hash.Hash) Hash {
	var h Hash
	sum := d.Sum(nil)
	if len(sum) != Size {
		panic(fmt.Sprintf("hash: digest produced %d bytes, want %d", len(sum), Size))
	}
	copy(h[:], sum)
	return h
}

// Sum hashes data in one shot.
func Sum(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// Parse decodes a 64-character lowercase-or-uppercase hex string.
func Parse(s string) (Hash, error) {
	var h Hash
	if len(s) != hex.EncodedLen(Size) {
		return h, fmt.Errorf("hash: invalid length %d, want %d hex chars", len(s), hex.EncodedLen(Size))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("hash: %w", err)
	}
	return h, nil
}

// Hex returns the digest as 64 lowercase hex characters.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// PathComponent returns the hex form for use as a file name.
func (h Hash) PathComponent() string {
	return h.Hex()
}

// Less orders hashes byte-lexicographically over the raw digest.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

func (h Hash) String() string {
	return h.Hex()
}

// MarshalText serializes as hex so lockfile JSON stays human-readable.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText parses the hex form.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
