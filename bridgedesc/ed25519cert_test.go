// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildCert constructs a minimal well-formed ed25519 identity certificate
// carrying exactly one master-key-ed25519 extension, per original spec
// §4.7's byte layout.
func buildCert(masterKey [32]byte) string {
	var raw []byte
	raw = append(raw, 0x01)             // version
	raw = append(raw, 0x04)             // cert type
	raw = append(raw, 0, 0, 0, 0)       // expiration (unused by the extractor)
	raw = append(raw, 0x01)             // certified key type
	raw = append(raw, make([]byte, 32)...) // certified key (unused by the extractor)
	raw = append(raw, 0x01)             // extension count

	raw = append(raw, 0x00, 0x20) // extension length = 32, big-endian
	raw = append(raw, 0x04)       // extension type = master key
	raw = append(raw, 0x00)       // flags
	raw = append(raw, masterKey[:]...)

	return base64.StdEncoding.EncodeToString(raw)
}

func TestExtractMasterKeyHappyPath(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = 0xAB
	}
	cert := buildCert(key)

	got, err := ExtractMasterKey(cert)
	require.NoError(t, err)
	require.False(t, strings.HasSuffix(got, "="))
	require.Equal(t, strings.TrimRight(base64.StdEncoding.EncodeToString(key[:]), "="), got)
}

func TestExtractMasterKeyWrongVersion(t *testing.T) {
	var key [32]byte
	cert := buildCert(key)
	raw, _ := base64.StdEncoding.DecodeString(cert)
	raw[0] = 0x02
	_, err := ExtractMasterKey(base64.StdEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, ErrNoMasterKey)
}

func TestExtractMasterKeyNoExtensions(t *testing.T) {
	var raw []byte
	raw = append(raw, 0x01, 0x04)
	raw = append(raw, 0, 0, 0, 0)
	raw = append(raw, 0x01)
	raw = append(raw, make([]byte, 32)...)
	raw = append(raw, 0x00) // extension count zero

	_, err := ExtractMasterKey(base64.StdEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, ErrNoMasterKey)
}

func TestExtractMasterKeyTruncated(t *testing.T) {
	_, err := ExtractMasterKey(base64.StdEncoding.EncodeToString([]byte{0x01, 0x04}))
	require.Error(t, err)
}
