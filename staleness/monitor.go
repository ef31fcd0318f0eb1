// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package staleness tracks the most recent publication timestamp observed
// for each bridge document type and flags when a type is lagging, per
// original spec §4.10.
package staleness

import (
	"fmt"
	"time"
)

// maxAge is the staleness horizon: a document type is flagged if its most
// recent publication timestamp is older than now minus this duration.
const maxAge = 5*time.Hour + 30*time.Minute

// Kind identifies one of the three bridge document types.
type Kind string

const (
	KindNetworkStatus    Kind = "network-status"
	KindServerDescriptor Kind = "server-descriptor"
	KindExtraInfo        Kind = "extra-info"
)

// Monitor records the largest publication timestamp seen per document kind.
// It is not safe for concurrent use, matching the single-threaded pipeline
// per original spec §5.
type Monitor struct {
	latest map[Kind]time.Time
}

// New constructs an empty Monitor.
func New() *Monitor {
	return &Monitor{latest: make(map[Kind]time.Time)}
}

// Observe records published as the latest timestamp for kind if it is newer
// than any previously observed value.
func (m *Monitor) Observe(kind Kind, published time.Time) {
	if published.After(m.latest[kind]) {
		m.latest[kind] = published
	}
}

// CheckAll compares each kind's latest observed timestamp against
// now-maxAge and returns one warning string per kind that is stale or was
// never observed at all.
func (m *Monitor) CheckAll(now time.Time) []string {
	cutoff := now.Add(-maxAge)
	var warnings []string

	for _, kind := range []Kind{KindNetworkStatus, KindServerDescriptor, KindExtraInfo} {
		latest, seen := m.latest[kind]
		if !seen {
			warnings = append(warnings, fmt.Sprintf("staleness: no %s documents observed this run", kind))
			continue
		}
		if latest.Before(cutoff) {
			warnings = append(warnings, fmt.Sprintf(
				"staleness: %s is stale (most recent publication %s, cutoff %s)",
				kind, latest.UTC().Format("2006-01-02 15:04:05"), cutoff.UTC().Format("2006-01-02 15:04:05")))
		}
	}

	return warnings
}
