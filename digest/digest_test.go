// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package digest

import (
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionInclusiveRange(t *testing.T) {
	data := []byte("preamble\nrouter Foo 1.2.3.4\nrouter-signature\ngarbage")
	start, end, err := Region(data, []byte("router "), []byte("\nrouter-signature\n"))
	require.NoError(t, err)
	require.Equal(t, "router Foo 1.2.3.4\nrouter-signature\n", string(data[start:end]))
}

func TestRegionMissingToken(t *testing.T) {
	data := []byte("no markers here")
	_, _, err := Region(data, []byte("router "), []byte("\nrouter-signature\n"))
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSHA1HexMatchesDoubleHash(t *testing.T) {
	data := []byte("router Foo\nrouter-signature\n")
	got, err := SHA1Hex(data, []byte("router "), []byte("\nrouter-signature\n"))
	require.NoError(t, err)

	first := sha1.Sum(data) //nolint:gosec
	second := sha1.Sum(first[:])
	want := strings.ToUpper(hex.EncodeToString(second[:]))
	require.Equal(t, want, got)
}

func TestSHA256Base64NoPadStripsPadding(t *testing.T) {
	data := []byte("extra-info Foo\nrouter-signature\n-----END SIGNATURE-----\n")
	got, err := SHA256Base64NoPad(data, []byte("extra-info "), []byte("\n-----END SIGNATURE-----\n"))
	require.NoError(t, err)
	require.False(t, strings.HasSuffix(got, "="))

	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	want := strings.TrimRight(base64.StdEncoding.EncodeToString(second[:]), "=")
	require.Equal(t, want, got)
}
