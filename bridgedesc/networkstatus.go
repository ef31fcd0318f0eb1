// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/torproject/bridgesan/builder"
	"github.com/torproject/bridgesan/secrets"
)

// SanitizeNetworkStatus rewrites one bridge network-status document.
// authorityFingerprint and fileDateTime come from the archive's tarball
// name, not from the document body, per original spec §4.8. Returns
// ErrMalformed for any document-level parse failure and ErrDisabled if the
// secrets sanitizer was poisoned mid-document.
func SanitizeNetworkStatus(data []byte, authorityFingerprint string, fileDateTime time.Time, sec *secrets.Sanitizer) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var headerLines []string
	haveFingerprint := false
	var statusPublished time.Time
	var mostRecentDescPublished time.Time

	entries := map[string]*builder.Builder{}
	var order []string

	var curKey string
	var curFP []byte
	var curPublished time.Time
	var curBuf *builder.Builder

	flush := func() {
		if curBuf == nil {
			return
		}
		if _, exists := entries[curKey]; !exists {
			order = append(order, curKey)
		}
		entries[curKey] = curBuf
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		keyword := fields[0]

		switch keyword {
		case "published":
			ts := strings.TrimSpace(strings.TrimPrefix(line, "published"))
			parsed, err := time.Parse("2006-01-02 15:04:05", ts)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "network-status: bad published timestamp %q", ts)
			}
			statusPublished = parsed

		case "flag-thresholds":
			headerLines = append(headerLines, line)

		case "fingerprint":
			if len(fields) != 2 {
				return nil, errors.Wrap(ErrMalformed, "network-status: malformed fingerprint line")
			}
			if !strings.EqualFold(fields[1], authorityFingerprint) {
				return nil, errors.Wrapf(ErrMalformed, "network-status: fingerprint %q does not match authority %q", fields[1], authorityFingerprint)
			}
			headerLines = append(headerLines, line)
			haveFingerprint = true

		case "r":
			if len(fields) != 9 {
				return nil, errors.Wrap(ErrMalformed, "network-status: malformed r line")
			}
			flush()

			nickname := fields[1]
			fpB64, descIDB64 := fields[2], fields[3]
			date, clock := fields[4], fields[5]
			addr, orport, dirport := fields[6], fields[7], fields[8]

			fpBytes, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(fpB64, "="))
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "network-status: bad r fingerprint base64")
			}
			descIDBytes, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(descIDB64, "="))
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "network-status: bad r descriptor-id base64")
			}

			published, err := time.Parse("2006-01-02 15:04:05", date+" "+clock)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "network-status: bad r line timestamp %q %q", date, clock)
			}
			if published.After(mostRecentDescPublished) {
				mostRecentDescPublished = published
			}

			fpSum := sha1.Sum(fpBytes)
			descSum := sha1.Sum(descIDBytes)

			addrRes := sec.ScrubIPv4(addr, fpBytes, published)
			orportRes := sec.ScrubTCPPort(orport, fpBytes, published)
			dirportRes := sec.ScrubTCPPort(dirport, fpBytes, published)
			if addrRes.IsDisabled() || orportRes.IsDisabled() || dirportRes.IsDisabled() {
				return nil, ErrDisabled
			}
			if !addrRes.IsOK() || !orportRes.IsOK() || !dirportRes.IsOK() {
				return nil, errors.Wrap(ErrMalformed, "network-status: r line address/port failed to scrub")
			}

			curKey = hex.EncodeToString(fpBytes)
			curFP = fpBytes
			curPublished = published
			curBuf = builder.New()
			curBuf.Append(fmt.Sprintf("r %s %s %s %s %s %s %s %s\n",
				nickname,
				base64.RawStdEncoding.EncodeToString(fpSum[:]),
				base64.RawStdEncoding.EncodeToString(descSum[:]),
				date, clock,
				addrRes.Value, orportRes.Value, dirportRes.Value))

		case "a":
			if curBuf == nil {
				return nil, errors.Wrap(ErrMalformed, "network-status: \"a\" line before any r line")
			}
			if len(fields) != 2 {
				return nil, errors.Wrap(ErrMalformed, "network-status: malformed a line")
			}
			res := sec.ScrubORAddress(fields[1], curFP, curPublished)
			if res.IsDisabled() {
				return nil, ErrDisabled
			}
			if !res.IsOK() {
				log.Warnf("network-status: dropping unparseable a-line address %q", fields[1])
				continue
			}
			curBuf.Append(fmt.Sprintf("a %s\n", res.Value))

		case "s", "w", "p":
			if curBuf == nil {
				return nil, errors.Wrapf(ErrMalformed, "network-status: %q line before any r line", keyword)
			}
			curBuf.Append(line)
			curBuf.NewLine()

		default:
			return nil, errors.Wrapf(ErrMalformed, "network-status: unrecognized line %q", keyword)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "network-status: scan")
	}
	flush()

	if !haveFingerprint {
		headerLines = append([]string{fmt.Sprintf("fingerprint %s", authorityFingerprint)}, headerLines...)
	}
	if len(entries) == 0 {
		log.Warnf("network-status: no bridge entries")
	}
	if statusPublished.IsZero() {
		statusPublished = fileDateTime
	}
	if !mostRecentDescPublished.IsZero() && statusPublished.Sub(mostRecentDescPublished) > time.Hour {
		log.Warnf("network-status: status possibly stale (published %s, most recent descriptor %s)",
			statusPublished.Format("2006-01-02 15:04:05"), mostRecentDescPublished.Format("2006-01-02 15:04:05"))
	}

	sort.Strings(order)

	out := builder.New()
	out.Append(Annotate(KindNetworkStatus))
	out.Append(fmt.Sprintf("published %s\n", fileDateTime.UTC().Format("2006-01-02 15:04:05")))
	for _, h := range headerLines {
		out.Append(h)
		out.NewLine()
	}
	for _, key := range order {
		out.Append(string(entries[key].ToBytes()))
	}

	return out.ToBytes(), nil
}
