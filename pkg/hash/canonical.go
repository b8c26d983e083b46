// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package hash

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializes v as canonical JSON: object keys sorted, no
// insignificant whitespace, UTF-8 output. Two semantically equal values
// produce byte-identical output regardless of struct field order or map
// iteration order.
//
// The value is first round-tripped through encoding/json into generic maps
// (which encoding/json emits with sorted keys), preserving numeric literals
// via json.Number so large integers survive intact.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	// Encoder appends a trailing newline; canonical output has none.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SumCanonicalJSON hashes the canonical JSON form of v.
func SumCanonicalJSON(v any) (Hash, error) {
	cjson, err := CanonicalJSON(v)
	if err != nil {
		return Hash{}, err
	}
	return Hash(sha256.Sum256(cjson)), nil
}
