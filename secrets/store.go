// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package secrets

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// SecretLen is the current (and maximum historical) length of a monthly
// secret. The length grew over CollecTor's history from 31 to 50 to 83
// bytes; see Store.Get for the zero-extension behavior applied to shorter
// legacy entries.
const SecretLen = 83

// Store is the append-only "bridge-ip-secrets" text file: one
// "YYYY-MM,<hex bytes>" line per month. Duplicate keys keep the latest line
// on load; Trim rewrites the whole file, dropping expired months.
type Store struct {
	path    string
	entries map[string][]byte // month -> raw stored bytes (may be shorter than SecretLen)
}

// Open loads the store from path, creating an empty in-memory store if the
// file does not yet exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string][]byte)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open secrets store")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		month, raw, ok := strings.Cut(line, ",")
		if !ok {
			log.Warnf("secrets: ignoring malformed line in %s", path)
			continue
		}
		b, err := hex.DecodeString(raw)
		if err != nil {
			log.Warnf("secrets: ignoring line with invalid hex for month %s", month)
			continue
		}
		s.entries[month] = b // last line for a duplicate key wins
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read secrets store")
	}

	return s, nil
}

// Get returns the stored bytes for month, zero-extended to SecretLen, along
// with the length actually persisted on disk (0 if the month is absent).
// The zero-extension is not itself persisted; Sanitizer.getSecretForMonth is
// responsible for generating and durably appending any missing suffix
// before the secret is used to hash new output.
func (s *Store) Get(month string) (secret [SecretLen]byte, storedLen int, present bool) {
	raw, ok := s.entries[month]
	if !ok {
		return secret, 0, false
	}
	n := copy(secret[:], raw)
	return secret, n, true
}

// Append durably writes a new "month,hex" line to the store file and
// records it in memory. The write is followed by an fsync so that the
// secret is guaranteed durable before any caller emits hashed output keyed
// on it, per the ownership invariant in the data model.
func (s *Store) Append(month string, secret [SecretLen]byte) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "open secrets store for append")
	}
	defer f.Close()

	line := fmt.Sprintf("%s,%s\n", month, hex.EncodeToString(secret[:]))
	if _, err := f.WriteString(line); err != nil {
		return errors.Wrap(err, "append secrets store")
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "sync secrets store")
	}

	s.entries[month] = append([]byte(nil), secret[:]...)
	return nil
}

// Trim rewrites the store file, keeping only months for which keep returns
// true, sorted ascending by month. The in-memory map is updated to match.
func (s *Store) Trim(keep func(month string) bool) error {
	months := make([]string, 0, len(s.entries))
	for m := range s.entries {
		if keep(m) {
			months = append(months, m)
		}
	}
	sort.Strings(months)

	var sb strings.Builder
	for _, m := range months {
		fmt.Fprintf(&sb, "%s,%s\n", m, hex.EncodeToString(s.entries[m]))
	}

	if err := os.WriteFile(s.path, []byte(sb.String()), 0o600); err != nil {
		return errors.Wrap(err, "rewrite secrets store")
	}

	trimmed := make(map[string][]byte, len(months))
	for _, m := range months {
		trimmed[m] = s.entries[m]
	}
	s.entries = trimmed
	return nil
}
