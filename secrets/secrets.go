// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package secrets implements the Sensitive-Parts Sanitizer: deterministic,
// salted hashing of IPv4, IPv6, and TCP-port values, and the monthly-secrets
// store that backs it. It is the only component that owns the in-memory
// monthly secret map and the on-disk secrets store file.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// Mode selects whether the sanitizer hashes sensitive values or replaces
// them with fixed sentinels.
type Mode int

const (
	// Hashing deterministically hashes IPv4/IPv6/port values with the
	// bridge's fingerprint and the secret for the document's publication
	// month.
	Hashing Mode = iota
	// Passthrough replaces every value with a fixed, non-identifying
	// sentinel, regardless of fingerprint or secret.
	Passthrough
)

// Passthrough sentinels, per original spec §4.2.
const (
	PassthroughIPv4 = "127.0.0.1"
	PassthroughIPv6 = "[fd9f:2e19:3bcf::]"
	PassthroughPort = "1"
)

// ipv6HashPrefix is the bridge-reserved ULA prefix used for both the
// passthrough sentinel and every hashed IPv6 output.
const ipv6HashPrefix = "fd9f:2e19:3bcf::"

// ResultKind tags a ScrubResult.
type ResultKind int

const (
	// ResultOK carries a usable scrubbed value.
	ResultOK ResultKind = iota
	// ResultInvalid means the input didn't parse; the caller should log and
	// drop just this one line, not the whole document.
	ResultInvalid
	// ResultDisabled means the sanitizer has been poisoned by a secrets
	// store write failure; the caller must abandon the whole document.
	ResultDisabled
)

// ScrubResult is the outcome of a single scrub_* call.
type ScrubResult struct {
	Kind  ResultKind
	Value string
}

func ok(v string) ScrubResult          { return ScrubResult{Kind: ResultOK, Value: v} }
func invalid() ScrubResult             { return ScrubResult{Kind: ResultInvalid} }
func disabled() ScrubResult            { return ScrubResult{Kind: ResultDisabled} }
func (r ScrubResult) IsOK() bool       { return r.Kind == ResultOK }
func (r ScrubResult) IsInvalid() bool  { return r.Kind == ResultInvalid }
func (r ScrubResult) IsDisabled() bool { return r.Kind == ResultDisabled }

// ErrHashingDisabled is the Go error form of the poisoned state, for callers
// that need to report it as an error rather than a ScrubResult. No function
// in this package returns it: scrub calls report the state as a
// ResultDisabled ScrubResult, and FinishWriting returns only store errors.
var ErrHashingDisabled = errors.New("secrets: sanitizer disabled after a secrets-store write failure")

// Sanitizer is the Sensitive-Parts Sanitizer. It is not safe for concurrent
// use; the pipeline is single-threaded per original spec §5, so one
// Sanitizer instance lives for the duration of one job run.
type Sanitizer struct {
	mode          Mode
	store         *Store
	retentionDays int // BridgeDescriptorMappingsLimit; negative disables expiry
	now           time.Time
	disabled      bool
}

// New constructs a Sanitizer backed by store, in the given mode, using now
// as the run's reference time for retention decisions and
// retentionDays as BridgeDescriptorMappingsLimit.
func New(mode Mode, store *Store, retentionDays int, now time.Time) *Sanitizer {
	return &Sanitizer{mode: mode, store: store, retentionDays: retentionDays, now: now}
}

// Disabled reports whether the sanitizer has been poisoned for the rest of
// the run.
func (s *Sanitizer) Disabled() bool {
	return s.disabled
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// atOrAfterCutoff reports whether month is at or after the oldest month that
// should still be persisted / retained, based on retentionDays and the run's
// reference time. A negative retentionDays disables expiry: every month is
// treated as at-or-after the cutoff.
func (s *Sanitizer) atOrAfterCutoff(month string) bool {
	if s.retentionDays < 0 {
		return true
	}
	cutoff := monthKey(s.now.AddDate(0, 0, -s.retentionDays))
	return month >= cutoff
}

// getSecretForMonth implements original spec §4.2's get_secret_for_month.
func (s *Sanitizer) getSecretForMonth(month string) ([SecretLen]byte, error) {
	stored, storedLen, present := s.store.Get(month)
	if present && storedLen == SecretLen {
		return stored, nil
	}

	var fresh [SecretLen]byte
	if _, err := rand.Read(fresh[:]); err != nil {
		return fresh, errors.Wrap(err, "generate monthly secret")
	}
	if present && storedLen > 0 {
		copy(fresh[:storedLen], stored[:storedLen])
	}

	if !s.atOrAfterCutoff(month) {
		log.Warnf("secrets: month %s is older than the retention cutoff; using an in-memory-only secret", month)
		return fresh, nil
	}

	if err := s.store.Append(month, fresh); err != nil {
		s.disabled = true
		return fresh, errors.Wrap(err, "persist monthly secret")
	}
	return fresh, nil
}

// FinishWriting trims secrets older than the retention horizon from the
// store. It does not reset the disabled flag: once poisoned, a Sanitizer
// stays poisoned for the rest of the run.
func (s *Sanitizer) FinishWriting() error {
	if s.retentionDays < 0 {
		return nil
	}
	cutoff := monthKey(s.now.AddDate(0, 0, -s.retentionDays))
	return s.store.Trim(func(month string) bool { return month >= cutoff })
}

// ScrubIPv4 hashes or replaces a dotted-quad IPv4 address.
func (s *Sanitizer) ScrubIPv4(addr string, fingerprint []byte, published time.Time) ScrubResult {
	if s.disabled {
		return disabled()
	}
	if s.mode == Passthrough {
		return ok(PassthroughIPv4)
	}

	ipBytes, perr := parseIPv4(addr)
	if perr != nil {
		return invalid()
	}

	secret, err := s.getSecretForMonth(monthKey(published))
	if err != nil {
		return disabled()
	}

	msg := make([]byte, 0, 4+20+31)
	msg = append(msg, ipBytes[:]...)
	msg = append(msg, fingerprint...)
	msg = append(msg, secret[0:31]...)
	sum := sha256.Sum256(msg)

	return ok(fmt.Sprintf("10.%d.%d.%d", sum[0], sum[1], sum[2]))
}

// ScrubIPv6 hashes or replaces a bracket-free IPv6 address (e.g.
// "2001:db8::1" or "::ffff:192.0.2.7").
func (s *Sanitizer) ScrubIPv6(addr string, fingerprint []byte, published time.Time) ScrubResult {
	if s.disabled {
		return disabled()
	}
	if s.mode == Passthrough {
		return ok(PassthroughIPv6)
	}

	ipBytes, perr := normalizeIPv6(addr)
	if perr != nil {
		return invalid()
	}

	secret, err := s.getSecretForMonth(monthKey(published))
	if err != nil {
		return disabled()
	}

	msg := make([]byte, 0, 16+20+19)
	msg = append(msg, ipBytes[:]...)
	msg = append(msg, fingerprint...)
	msg = append(msg, secret[31:50]...)
	sum := sha256.Sum256(msg)

	// Last six lowercase hex chars of the digest, split 2+4.
	return ok(fmt.Sprintf("[%s%02x:%02x%02x]", ipv6HashPrefix, sum[29], sum[30], sum[31]))
}

// ScrubTCPPort hashes or replaces a decimal TCP port. Port "0" always maps
// to "0" in both modes.
func (s *Sanitizer) ScrubTCPPort(portStr string, fingerprint []byte, published time.Time) ScrubResult {
	if s.disabled {
		return disabled()
	}
	if portStr == "0" {
		return ok("0")
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return invalid()
	}

	if s.mode == Passthrough {
		return ok(PassthroughPort)
	}

	secret, serr := s.getSecretForMonth(monthKey(published))
	if serr != nil {
		return disabled()
	}

	msg := make([]byte, 0, 2+20+33)
	msg = append(msg, byte(port>>8), byte(port))
	msg = append(msg, fingerprint...)
	msg = append(msg, secret[50:83]...)
	sum := sha256.Sum256(msg)

	v := uint16(sum[0])<<8 | uint16(sum[1])
	v = (v & 0x3FFF) | 0xC000
	return ok(strconv.FormatUint(uint64(v), 10))
}

// ScrubORAddress splits addr at the last ':' (accounting for a bracketed
// IPv6 host) and dispatches to ScrubIPv4/ScrubIPv6 and ScrubTCPPort.
func (s *Sanitizer) ScrubORAddress(addr string, fingerprint []byte, published time.Time) ScrubResult {
	if s.disabled {
		return disabled()
	}

	if strings.HasPrefix(addr, "[") {
		idx := strings.LastIndex(addr, "]:")
		if idx < 0 {
			return invalid()
		}
		host, port := addr[1:idx], addr[idx+2:]
		ipRes := s.ScrubIPv6(host, fingerprint, published)
		if !ipRes.IsOK() {
			return ipRes
		}
		portRes := s.ScrubTCPPort(port, fingerprint, published)
		if !portRes.IsOK() {
			return portRes
		}
		return ok(ipRes.Value + ":" + portRes.Value)
	}

	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return invalid()
	}
	host, port := addr[:idx], addr[idx+1:]
	ipRes := s.ScrubIPv4(host, fingerprint, published)
	if !ipRes.IsOK() {
		return ipRes
	}
	portRes := s.ScrubTCPPort(port, fingerprint, published)
	if !portRes.IsOK() {
		return portRes
	}
	return ok(ipRes.Value + ":" + portRes.Value)
}
