// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package hash

import (
	"crypto/sha256"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexRoundTrip(t *testing.T) {
	h := Sum([]byte("hello"))

	hexStr := h.Hex()
	require.Len(t, hexStr, 64)
	assert.Equal(t, strings.ToLower(hexStr), hexStr)

	parsed, err := Parse(hexStr)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short", "abcd"},
		{"long", strings.Repeat("a", 65)},
		{"non-hex", strings.Repeat("z", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestFromDigestMatchesSum(t *testing.T) {
	d := sha256.New()
	d.Write([]byte("some content"))

	assert.Equal(t, Sum([]byte("some content")), FromDigest(d))
}

func TestSumMatchesKnownVector(t *testing.T) {
	// SHA-256("") is a well-known constant.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sum(nil).Hex())
}

func TestLessOrdersByRawDigest(t *testing.T) {
	var a, b Hash
	a[0] = 0x01
	b[0] = 0x02

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestJSONUsesHexEncoding(t *testing.T) {
	h := Sum([]byte("x"))

	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, `"`+h.Hex()+`"`, string(data))

	var back Hash
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, h, back)
}

func TestJSONMapKeys(t *testing.T) {
	h := Sum([]byte("key"))
	m := map[Hash]int{h: 3}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+h.Hex()+`": 3}`, string(data))
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	type out struct {
		Zebra string `json:"zebra"`
		Alpha string `json:"alpha"`
	}

	cjson, err := CanonicalJSON(out{Zebra: "z", Alpha: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","zebra":"z"}`, string(cjson))
}

func TestCanonicalJSONMapOrderIndependent(t *testing.T) {
	// Maps built with different insertion orders hash identically.
	m1 := map[string]string{}
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		m1[k] = k
	}
	m2 := map[string]string{}
	for _, k := range []string{"e", "d", "c", "b", "a"} {
		m2[k] = k
	}

	h1, err := SumCanonicalJSON(m1)
	require.NoError(t, err)
	h2, err := SumCanonicalJSON(m2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestCanonicalJSONPreservesLargeIntegers(t *testing.T) {
	v := map[string]uint64{"n": 18446744073709551615}

	cjson, err := CanonicalJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"n":18446744073709551615}`, string(cjson))
}

func TestCanonicalJSONNoHTMLEscaping(t *testing.T) {
	cjson, err := CanonicalJSON(map[string]string{"url": "https://example.com/?a=1&b=2"})
	require.NoError(t, err)
	assert.Contains(t, string(cjson), "a=1&b=2")
}
