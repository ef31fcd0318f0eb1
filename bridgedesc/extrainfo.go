// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/torproject/bridgesan/builder"
	"github.com/torproject/bridgesan/digest"
)

// extraInfoWhitelist is the set of statistics keywords copied verbatim.
var extraInfoWhitelist = map[string]bool{
	"write-history":        true,
	"read-history":         true,
	"ipv6-write-history":   true,
	"ipv6-read-history":    true,
	"conn-bi-direct":       true,
	"ipv6-conn-bi-direct":  true,
	"padding-counts":       true,
}

// extraInfoWhitelistPrefixes are keyword prefixes copied verbatim, matching
// whole families of statistics lines without enumerating each one.
var extraInfoWhitelistPrefixes = []string{
	"geoip-",
	"bridge-",
	"dirreq-",
	"cell-",
	"entry-",
	"exit-",
	"hidserv-",
}

func isExtraInfoWhitelisted(keyword string) bool {
	if extraInfoWhitelist[keyword] {
		return true
	}
	for _, p := range extraInfoWhitelistPrefixes {
		if strings.HasPrefix(keyword, p) {
			return true
		}
	}
	return false
}

// SanitizeExtraInfo rewrites one bridge extra-info descriptor document. It
// carries no addresses or ports of its own, so (unlike the server and
// network-status sanitizers) no secrets.Sanitizer is needed.
func SanitizeExtraInfo(data []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	out := builder.New()
	out.Append(Annotate(KindExtraInfoDescriptor))

	var (
		haveExtraInfo, havePublished bool
		haveEd25519                  bool
		recoveredMasterKey           []byte

		skipCrypto         bool
		pendingCryptoBlock bool
		collectingCert     bool
		certBody           strings.Builder
	)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if collectingCert {
			if strings.HasPrefix(line, "-----END ED25519 CERT-----") {
				collectingCert = false
				masterKeyB64, err := ExtractMasterKey(certBody.String())
				if err != nil {
					log.Warnf("extra-info: %v", err)
					continue
				}
				masterKey, err := base64.RawStdEncoding.DecodeString(masterKeyB64)
				if err != nil {
					log.Warnf("extra-info: decode recovered master key: %v", err)
					continue
				}
				if recoveredMasterKey != nil && !bytes.Equal(recoveredMasterKey, masterKey) {
					return nil, errors.Wrap(ErrMalformed, "extra-info: master key mismatch")
				}
				recoveredMasterKey = masterKey
				haveEd25519 = true
				out.Append(fmt.Sprintf("master-key-ed25519 %s\n", digest.SHA256Base64NoPadOfBytes(masterKey)))
				continue
			}
			if strings.HasPrefix(line, "-----BEGIN") {
				continue
			}
			certBody.WriteString(line)
			continue
		}

		if skipCrypto {
			if strings.HasPrefix(line, "-----END") {
				skipCrypto = false
			}
			continue
		}

		fields := strings.Fields(line)
		keyword := fields[0]

		if pendingCryptoBlock {
			pendingCryptoBlock = false
			if strings.HasPrefix(line, "-----BEGIN") {
				skipCrypto = true
				continue
			}
		}

		switch {
		case keyword == "extra-info":
			if len(fields) != 3 {
				return nil, errors.Wrap(ErrMalformed, "extra-info: malformed extra-info line")
			}
			decoded, err := digest.DecodeHex(fields[2])
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "extra-info: bad fingerprint hex")
			}
			haveExtraInfo = true
			out.Append(fmt.Sprintf("extra-info %s %s\n", fields[1], digest.SHA1HexOfBytes(decoded)))

		case keyword == "published":
			ts := strings.TrimSpace(strings.TrimPrefix(line, "published"))
			if _, err := time.Parse("2006-01-02 15:04:05", ts); err != nil {
				return nil, errors.Wrapf(ErrMalformed, "extra-info: bad published timestamp %q", ts)
			}
			havePublished = true
			out.Append(line)
			out.NewLine()

		case keyword == "transport":
			if len(fields) <= 2 {
				return nil, errors.Wrap(ErrMalformed, "extra-info: malformed transport line")
			}
			out.Append(fmt.Sprintf("transport %s\n", fields[1]))

		case keyword == "transport-info":
			// dropped

		case keyword == "identity-ed25519":
			collectingCert = true
			certBody.Reset()

		case keyword == "master-key-ed25519":
			if len(fields) != 2 {
				return nil, errors.Wrap(ErrMalformed, "extra-info: malformed master-key-ed25519 line")
			}
			decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(fields[1], "="))
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "extra-info: bad master-key-ed25519 base64")
			}
			if recoveredMasterKey != nil {
				if !bytes.Equal(recoveredMasterKey, decoded) {
					return nil, errors.Wrap(ErrMalformed, "extra-info: master key mismatch")
				}
			} else {
				recoveredMasterKey = decoded
			}

		case keyword == "router-signature":
			goto finished

		case keyword == "router-sig-ed25519":
			// dropped

		case isExtraInfoWhitelisted(keyword):
			out.Append(line)
			out.NewLine()

		default:
			return nil, errors.Wrapf(ErrMalformed, "extra-info: unrecognized line %q", keyword)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "extra-info: scan")
	}

finished:
	if !haveExtraInfo || !havePublished {
		log.Warnf("extra-info: missing extra-info/published; skipping")
		return nil, ErrMalformed
	}

	sha1Digest, err := digest.SHA1Hex(data, []byte("extra-info "), []byte("\nrouter-signature\n"))
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, "extra-info: router-digest undefined")
	}
	if haveEd25519 {
		sha256Digest, err := digest.SHA256Base64NoPad(data, []byte("extra-info "), []byte("\n-----END SIGNATURE-----\n"))
		if err == nil {
			out.Append(fmt.Sprintf("router-digest-sha256 %s\n", sha256Digest))
		}
	}
	out.Append(fmt.Sprintf("router-digest %s\n", sha1Digest))

	return out.ToBytes(), nil
}
