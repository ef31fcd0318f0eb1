// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"encoding/base64"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// ErrNoMasterKey is returned when the certificate has an unsupported
// version, cert type or certified-key type, or doesn't carry a
// master-key-ed25519 extension. Undecodable or truncated input yields a
// different error.
var ErrNoMasterKey = errors.New("ed25519cert: no master key extension")

// cursor is a bounds-checked read head over a byte slice, used to walk the
// certificate's fixed binary layout without raw indexing.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) readU8() (byte, error) {
	if c.remaining() < 1 {
		return 0, errors.New("ed25519cert: truncated reading u8")
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) readU16BE() (uint16, error) {
	if c.remaining() < 2 {
		return 0, errors.New("ed25519cert: truncated reading u16")
	}
	v := uint16(c.data[c.pos])<<8 | uint16(c.data[c.pos+1])
	c.pos += 2
	return v, nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if c.remaining() < n {
		return nil, errors.New("ed25519cert: truncated reading bytes")
	}
	v := c.data[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

func (c *cursor) skip(n int) error {
	if c.remaining() < n {
		return errors.New("ed25519cert: truncated skip")
	}
	c.pos += n
	return nil
}

// ExtractMasterKey decodes a base64 ed25519 identity certificate body (the
// text between "-----BEGIN ED25519 CERT-----" and "-----END ED25519
// CERT-----", with the markers and newlines already stripped) and returns
// the base64-no-padding master public key carried in its extensions, per
// original spec §4.7.
func ExtractMasterKey(base64Cert string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Cert)
	if err != nil {
		return "", errors.Wrap(err, "ed25519cert: decode base64")
	}

	c := &cursor{data: raw}

	version, err := c.readU8()
	if err != nil {
		return "", err
	}
	if version != 0x01 {
		log.Warnf("ed25519cert: unsupported version %d", version)
		return "", ErrNoMasterKey
	}

	certType, err := c.readU8()
	if err != nil {
		return "", err
	}
	if certType != 0x04 {
		log.Warnf("ed25519cert: unsupported cert type %d", certType)
		return "", ErrNoMasterKey
	}

	// Bytes 2..5: 4-byte expiration date, bytes 6: certified key type.
	if err := c.skip(4); err != nil {
		return "", err
	}
	keyType, err := c.readU8()
	if err != nil {
		return "", err
	}
	if keyType != 0x01 {
		log.Warnf("ed25519cert: unsupported certified key type %d", keyType)
		return "", ErrNoMasterKey
	}

	// Bytes 7..38: the 32-byte certified key itself.
	if err := c.skip(32); err != nil {
		return "", err
	}

	extCount, err := c.readU8()
	if err != nil {
		return "", err
	}
	if extCount == 0 {
		return "", ErrNoMasterKey
	}

	for i := byte(0); i < extCount; i++ {
		extLen, err := c.readU16BE()
		if err != nil {
			return "", err
		}
		extType, err := c.readU8()
		if err != nil {
			return "", err
		}
		if _, err := c.readU8(); err != nil { // flags, unused
			return "", err
		}
		body, err := c.readBytes(int(extLen))
		if err != nil {
			return "", err
		}
		if extLen == 32 && extType == 0x04 {
			return strings.TrimRight(base64.StdEncoding.EncodeToString(body), "="), nil
		}
	}

	return "", ErrNoMasterKey
}
