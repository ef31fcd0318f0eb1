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
	"github.com/torproject/bridgesan/secrets"
)

// serverDescriptorWhitelist is copied verbatim, with or without a leading
// "opt " prefix, per original spec §4.5.
var serverDescriptorWhitelist = map[string]bool{
	"accept":                      true,
	"platform":                    true,
	"proto":                       true,
	"uptime":                      true,
	"bandwidth":                   true,
	"ntor-onion-key":              true,
	"hidden-service-dir":          true,
	"caches-extra-info":           true,
	"allow-single-hop-exits":      true,
	"ipv6-policy":                 true,
	"tunnelled-dir-server":        true,
	"bridge-distribution-request": true,
	"hibernating":                 true,
	"protocols":                   true,
}

// cryptoBlockKeywords introduce a PEM-armored key or certificate that is
// dropped entirely (keyword line, BEGIN/END markers, and body) rather than
// copied into sanitized output.
var cryptoBlockKeywords = map[string]bool{
	"onion-key":                true,
	"signing-key":              true,
	"onion-key-crosscert":      true,
	"ntor-onion-key-crosscert": true,
}

// pendingScrub records a deferred address/port field awaiting the
// descriptor's fingerprint, filled once the whole document has been parsed.
type pendingScrub struct {
	isPort bool
	raw    string
	ph     *builder.Placeholder
}

// pendingORAddress is a deferred `or-address` line.
type pendingORAddress struct {
	raw string
	ph  *builder.Placeholder
}

// SanitizeServerDescriptor rewrites one bridge server-descriptor document.
func SanitizeServerDescriptor(data []byte, sec *secrets.Sanitizer) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	out := builder.New()
	out.Append(Annotate(KindServerDescriptor))

	var (
		haveRouter, haveFingerprint, havePublished bool
		haveEd25519                                bool
		published                                  time.Time
		fpBytes                                     []byte
		recoveredMasterKey                           []byte

		routerRawAddr string
		routerPending []pendingScrub
		orAddrPending []pendingORAddress
		rejectPending []pendingScrub // isPort unused; raw holds router addr for matching

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
					log.Warnf("server-descriptor: %v", err)
					continue
				}
				masterKey, err := base64.RawStdEncoding.DecodeString(masterKeyB64)
				if err != nil {
					log.Warnf("server-descriptor: decode recovered master key: %v", err)
					continue
				}
				if recoveredMasterKey != nil && !bytes.Equal(recoveredMasterKey, masterKey) {
					return nil, errors.Wrap(ErrMalformed, "server-descriptor: master key mismatch")
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
		optPrefix := false
		if keyword == "opt" && len(fields) > 1 {
			optPrefix = true
			keyword = fields[1]
		}

		if pendingCryptoBlock {
			pendingCryptoBlock = false
			if strings.HasPrefix(line, "-----BEGIN") {
				skipCrypto = true
				continue
			}
		}

		switch {
		case keyword == "router":
			effFields := fields
			if optPrefix {
				effFields = fields[1:]
			}
			if len(effFields) != 6 {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: malformed router line")
			}
			haveRouter = true
			nickname, addr, orport, dirport, socksport := effFields[1], effFields[2], effFields[3], effFields[4], effFields[5]
			routerRawAddr = addr

			out.Append("router ")
			out.Append(nickname)
			out.Space()
			addrPH := out.AppendPlaceholder()
			out.Space()
			orPH := out.AppendPlaceholder()
			out.Space()
			dirPH := out.AppendPlaceholder()
			out.Space()
			sockPH := out.AppendPlaceholder()
			out.NewLine()

			routerPending = append(routerPending,
				pendingScrub{isPort: false, raw: addr, ph: addrPH},
				pendingScrub{isPort: true, raw: orport, ph: orPH},
				pendingScrub{isPort: true, raw: dirport, ph: dirPH},
				pendingScrub{isPort: true, raw: socksport, ph: sockPH},
			)

		case keyword == "or-address":
			if len(fields) < 2 {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: malformed or-address line")
			}
			raw := fields[len(fields)-1]
			out.Append("or-address ")
			ph := out.AppendPlaceholder()
			out.NewLine()
			orAddrPending = append(orAddrPending, pendingORAddress{raw: raw, ph: ph})

		case keyword == "published":
			ts := strings.TrimSpace(strings.TrimPrefix(line, "published"))
			p, err := time.Parse("2006-01-02 15:04:05", ts)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "server-descriptor: bad published timestamp %q", ts)
			}
			published = p
			havePublished = true
			out.Append(line)
			out.NewLine()

		case keyword == "fingerprint":
			effFields := fields
			if optPrefix {
				effFields = fields[1:]
			}
			hexDigits := strings.Join(effFields[1:], "")
			decoded, err := digest.DecodeHex(hexDigits)
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: bad fingerprint hex")
			}
			fpBytes = decoded
			haveFingerprint = true

			sha1hex := digest.SHA1HexOfBytes(decoded)
			if optPrefix {
				out.Append("opt ")
			}
			out.Append("fingerprint ")
			out.Append(groupInFours(sha1hex))
			out.NewLine()

		case keyword == "contact":
			out.Append("contact somebody\n")

		case keyword == "router-signature":
			goto finished

		case keyword == "extra-info-digest":
			effFields := fields
			if optPrefix {
				effFields = fields[1:]
			}
			if len(effFields) < 2 || len(effFields) > 3 {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: malformed extra-info-digest line")
			}
			sha1Decoded, err := digest.DecodeHex(effFields[1])
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: bad extra-info-digest sha1 hex")
			}
			newSha1 := digest.SHA1HexOfDecoded(sha1Decoded)

			var sha256Suffix string
			if len(effFields) == 3 {
				sha256Decoded, err := base64.StdEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(effFields[2], "="))
				if err != nil {
					return nil, errors.Wrap(ErrMalformed, "server-descriptor: bad extra-info-digest sha256 base64")
				}
				sha256Suffix = " " + digest.SHA256Base64NoPadOfDecoded(sha256Decoded)
			}

			if optPrefix {
				out.Append("opt ")
			}
			out.Append(fmt.Sprintf("extra-info-digest %s%s\n", newSha1, sha256Suffix))

		case keyword == "reject":
			if len(fields) < 2 {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: malformed reject line")
			}
			rejectAddr := fields[1]
			host := rejectAddr
			if idx := strings.Index(rejectAddr, ":"); idx >= 0 {
				host = rejectAddr[:idx]
			}
			if host == routerRawAddr {
				out.Append("reject ")
				ph := out.AppendPlaceholder()
				rest := strings.TrimPrefix(rejectAddr, host)
				out.Append(rest)
				for _, tail := range fields[2:] {
					out.Space()
					out.Append(tail)
				}
				out.NewLine()
				rejectPending = append(rejectPending, pendingScrub{raw: routerRawAddr, ph: ph})
			} else {
				out.Append(line)
				out.NewLine()
			}

		case keyword == "identity-ed25519":
			collectingCert = true
			certBody.Reset()

		case keyword == "master-key-ed25519":
			if len(fields) != 2 {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: malformed master-key-ed25519 line")
			}
			decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(fields[1], "="))
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "server-descriptor: bad master-key-ed25519 base64")
			}
			if recoveredMasterKey != nil {
				if !bytes.Equal(recoveredMasterKey, decoded) {
					return nil, errors.Wrap(ErrMalformed, "server-descriptor: master key mismatch")
				}
			} else {
				recoveredMasterKey = decoded
			}

		case keyword == "family":
			out.Append("family")
			for _, entry := range fields[1:] {
				out.Space()
				out.Append(rewriteFamilyEntry(entry))
			}
			out.NewLine()

		case keyword == "@purpose" || keyword == "router-sig-ed25519":
			// dropped

		case cryptoBlockKeywords[keyword]:
			pendingCryptoBlock = true

		case serverDescriptorWhitelist[keyword]:
			out.Append(line)
			out.NewLine()

		default:
			return nil, errors.Wrapf(ErrMalformed, "server-descriptor: unrecognized line %q", keyword)
		}
	}

finished:
	if !haveRouter || !haveFingerprint || !havePublished {
		log.Warnf("server-descriptor: missing router/fingerprint/published; skipping")
		return nil, ErrMalformed
	}

	routerScrubbed := map[string]string{}
	for _, p := range routerPending {
		var res secrets.ScrubResult
		if p.isPort {
			res = sec.ScrubTCPPort(p.raw, fpBytes, published)
		} else {
			res = sec.ScrubIPv4(p.raw, fpBytes, published)
		}
		if res.IsDisabled() {
			return nil, ErrDisabled
		}
		if !res.IsOK() {
			return nil, errors.Wrap(ErrMalformed, "server-descriptor: router line failed to scrub")
		}
		p.ph.Fill(res.Value)
		if !p.isPort {
			routerScrubbed[p.raw] = res.Value
		}
	}
	for _, p := range rejectPending {
		v, ok := routerScrubbed[p.raw]
		if !ok {
			return nil, errors.Wrap(ErrMalformed, "server-descriptor: reject line referenced unscrubbed router address")
		}
		p.ph.Fill(v)
	}
	for _, o := range orAddrPending {
		res := sec.ScrubORAddress(o.raw, fpBytes, published)
		if res.IsDisabled() {
			return nil, ErrDisabled
		}
		if !res.IsOK() {
			return nil, errors.Wrap(ErrMalformed, "server-descriptor: or-address failed to scrub")
		}
		o.ph.Fill(res.Value)
	}

	sha1Digest, err := digest.SHA1Hex(data, []byte("router "), []byte("\nrouter-signature\n"))
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, "server-descriptor: router-digest undefined")
	}
	if haveEd25519 {
		sha256Digest, err := digest.SHA256Base64NoPad(data, []byte("router "), []byte("\n-----END SIGNATURE-----\n"))
		if err == nil {
			out.Append(fmt.Sprintf("router-digest-sha256 %s\n", sha256Digest))
		}
	}
	out.Append(fmt.Sprintf("router-digest %s\n", sha1Digest))

	return out.ToBytes(), nil
}

// groupInFours inserts a space after every 4 characters of s.
func groupInFours(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i += 4 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		end := i + 4
		if end > len(s) {
			end = len(s)
		}
		sb.WriteString(s[i:end])
	}
	return sb.String()
}

// rewriteFamilyEntry rewrites a "$FP..." family entry's fingerprint to its
// SHA-1 hex form, leaving a bare nickname entry unchanged.
func rewriteFamilyEntry(entry string) string {
	if !strings.HasPrefix(entry, "$") {
		return entry
	}
	body := entry[1:]
	end := len(body)
	for i, r := range body {
		if r == '~' || r == '=' {
			end = i
			break
		}
	}
	fpHex, rest := body[:end], body[end:]
	decoded, err := digest.DecodeHex(fpHex)
	if err != nil {
		return entry
	}
	return "$" + digest.SHA1HexOfBytes(decoded) + rest
}
