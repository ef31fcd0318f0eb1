// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/pkg/errors"
)

// Kind identifies which of the three bridge document types a sanitized
// output is, matching the first token after "@type" in its annotation
// line.
type Kind string

const (
	KindNetworkStatus      Kind = "bridge-network-status"
	KindServerDescriptor   Kind = "bridge-server-descriptor"
	KindExtraInfoDescriptor Kind = "bridge-extra-info"
)

// versions are the annotation versions this sanitizer emits. Tor's
// annotation convention uses a bare "major.minor" pair, so these are stored
// as semver.Version values with Patch pinned to 0 and rendered without it.
var versions = map[Kind]semver.Version{
	KindNetworkStatus:       semver.MustParse("1.2.0"),
	KindServerDescriptor:    semver.MustParse("1.2.0"),
	KindExtraInfoDescriptor: semver.MustParse("1.3.0"),
}

// Annotate returns the leading "@type <kind> <major>.<minor>\n" line every
// sanitized document must carry as its first line.
func Annotate(kind Kind) string {
	v := versions[kind]
	return fmt.Sprintf("@type %s %d.%d\n", kind, v.Major, v.Minor)
}

// ParseAnnotation parses a "@type <kind> <major>.<minor>" line (a line with
// the leading "@type " already stripped by the caller is also accepted) and
// returns its kind and its version as a semver.Version with Patch 0. It does
// not check compatibility; CompatibleVersion does that.
func ParseAnnotation(line string) (Kind, semver.Version, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "@type "))
	if len(fields) != 2 {
		return "", semver.Version{}, errors.Errorf("annotation: expected \"@type <kind> <major>.<minor>\", got %q", line)
	}

	kind := Kind(fields[0])
	major, minor, ok := strings.Cut(fields[1], ".")
	if !ok {
		return "", semver.Version{}, errors.Errorf("annotation: malformed version %q", fields[1])
	}
	v, err := semver.Parse(major + "." + minor + ".0")
	if err != nil {
		return "", semver.Version{}, errors.Wrap(err, "annotation: parse version")
	}

	return kind, v, nil
}

// CompatibleVersion reports whether v (as emitted by some producer) has the
// same major version as the version this sanitizer emits for kind, per
// normal semver compatibility rules.
func CompatibleVersion(kind Kind, v semver.Version) bool {
	want, ok := versions[kind]
	if !ok {
		return false
	}
	return v.Major == want.Major
}
