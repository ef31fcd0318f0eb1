// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package archive walks a directory of bridge snapshot tarballs, dispatching
// each member to the appropriate document sanitizer.
package archive

import "strings"

// authorityFingerprints maps the three known bridge authority names to their
// fixed identity fingerprints, used to validate and synthesize the
// `fingerprint` line of network-status documents. Names not in this map
// cause their tarball to be skipped entirely.
//
// These are the long-standing BridgeDB authority fingerprints; an
// implementation wired to a live deployment should source these from
// configuration rather than a compiled-in table, but original spec §4.8
// describes them as fixed.
var authorityFingerprints = map[string]string{
	"tonga":    "B34380B3544DE75EE2D07B13D36EA3868D7A5C60",
	"bifroest": "1D8F3A91C37C5D1C4C19B1AD1D0CFBE8BF72D8E0",
	"serge":    "BA44A889E64B93FAA2B114E02C2A279A8555C533",
}

// AuthorityFingerprint returns the fixed fingerprint for a bridge authority
// name (case-insensitive), and whether the name is recognized.
func AuthorityFingerprint(name string) (string, bool) {
	fp, ok := authorityFingerprints[strings.ToLower(name)]
	return fp, ok
}
