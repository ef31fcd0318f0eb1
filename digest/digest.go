// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package digest computes Tor's descriptor-digest convention: a double hash
// (SHA-1 of SHA-1, or SHA-256 of SHA-256) over a byte range of the original
// document, delimited by literal start/end tokens.
//
// opencontainers/go-digest is not used here: its Algorithm type has no SHA-1
// (deliberately omitted upstream as deprecated), and its canonical output is
// a single hash in "algo:hex" form, not the double hash this format requires.
package digest

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // Tor's descriptor-digest convention is defined in terms of SHA-1.
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// ErrTokenNotFound is returned when the start or end token cannot be located
// in the input, leaving the digest region undefined.
var ErrTokenNotFound = errors.New("digest: start or end token not found")

// Region locates the inclusive byte range from the first occurrence of
// startToken through the end of the first occurrence of endToken that
// appears at or after startToken. It returns ErrTokenNotFound if either
// token is missing.
func Region(data, startToken, endToken []byte) (start, end int, err error) {
	start = bytes.Index(data, startToken)
	if start < 0 {
		return 0, 0, ErrTokenNotFound
	}

	relEnd := bytes.Index(data[start:], endToken)
	if relEnd < 0 {
		return 0, 0, ErrTokenNotFound
	}
	end = start + relEnd + len(endToken)

	return start, end, nil
}

// SHA1Hex returns the uppercase hex encoding of SHA1(SHA1(region)), matching
// Tor's router-digest / extra-info-digest convention.
func SHA1Hex(data, startToken, endToken []byte) (string, error) {
	start, end, err := Region(data, startToken, endToken)
	if err != nil {
		return "", errors.Wrap(err, "sha1 region")
	}

	first := sha1.Sum(data[start:end]) //nolint:gosec
	second := sha1.Sum(first[:])       //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(second[:])), nil
}

// SHA256Base64NoPad returns base64(SHA256(SHA256(region))) with trailing '='
// padding stripped, matching Tor's router-digest-sha256 convention.
func SHA256Base64NoPad(data, startToken, endToken []byte) (string, error) {
	start, end, err := Region(data, startToken, endToken)
	if err != nil {
		return "", errors.Wrap(err, "sha256 region")
	}

	first := sha256.Sum256(data[start:end])
	second := sha256.Sum256(first[:])
	return strings.TrimRight(base64.StdEncoding.EncodeToString(second[:]), "="), nil
}

// SHA1HexOfBytes returns the single-pass uppercase hex SHA-1 of raw, used
// for fingerprint-style digests (e.g. a 20-byte fingerprint, not a region of
// a larger document).
func SHA1HexOfBytes(raw []byte) string {
	sum := sha1.Sum(raw) //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SHA256Base64NoPadOfBytes returns base64(SHA256(raw)) with padding
// stripped, used for the ed25519 master-key-ed25519 annotation.
func SHA256Base64NoPadOfBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return strings.TrimRight(base64.StdEncoding.EncodeToString(sum[:]), "=")
}

// SHA1HexOfDecoded decodes hexSrc, double-SHA1-hashes it, and returns
// uppercase hex. Used for extra-info-digest and similar fields whose input
// is itself already a hex-encoded SHA-1.
func SHA1HexOfDecoded(decoded []byte) string {
	first := sha1.Sum(decoded) //nolint:gosec
	second := sha1.Sum(first[:])
	return strings.ToUpper(hex.EncodeToString(second[:]))
}

// SHA256Base64NoPadOfDecoded double-SHA256-hashes decoded bytes and returns
// base64 with padding stripped.
func SHA256Base64NoPadOfDecoded(decoded []byte) string {
	first := sha256.Sum256(decoded)
	second := sha256.Sum256(first[:])
	return strings.TrimRight(base64.StdEncoding.EncodeToString(second[:]), "=")
}

// DecodeHex is a small wrapper kept here so callers in bridgedesc don't need
// a direct encoding/hex import for the common "decode or reject" path.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex")
	}
	return b, nil
}
