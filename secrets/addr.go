// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package secrets

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseIPv4 parses a dotted-quad address into its 4 raw bytes. It rejects
// anything net.ParseIP would silently accept as IPv6-mapped or otherwise
// ambiguous; bridge "r"/"router" lines are always plain dotted-quad.
func parseIPv4(addr string) ([4]byte, error) {
	var out [4]byte

	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return out, errors.Errorf("ipv4: expected 4 dotted parts, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return out, errors.Wrapf(err, "ipv4: invalid octet %q", p)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// normalizeIPv6 expands addr (optionally containing "::" and an embedded
// IPv4 tail) into 16 raw bytes. It rejects more than 8 groups, hextets
// longer than 4 hex characters, and embedded IPv4 tails that do not have
// exactly 4 dotted parts, per original spec §4.2.
func normalizeIPv6(addr string) ([16]byte, error) {
	var out [16]byte

	if strings.Count(addr, "::") > 1 {
		return out, errors.New("ipv6: at most one '::' is allowed")
	}

	var groups []uint16
	if strings.Contains(addr, "::") {
		parts := strings.SplitN(addr, "::", 2)
		left, err := parseIPv6Groups(parts[0])
		if err != nil {
			return out, err
		}
		right, err := parseIPv6Groups(parts[1])
		if err != nil {
			return out, err
		}
		if len(left)+len(right) > 8 {
			return out, errors.New("ipv6: too many groups")
		}
		groups = make([]uint16, 0, 8)
		groups = append(groups, left...)
		for i := 0; i < 8-len(left)-len(right); i++ {
			groups = append(groups, 0)
		}
		groups = append(groups, right...)
	} else {
		var err error
		groups, err = parseIPv6Groups(addr)
		if err != nil {
			return out, err
		}
		if len(groups) != 8 {
			return out, errors.Errorf("ipv6: expected 8 groups, got %d", len(groups))
		}
	}

	for i, g := range groups {
		out[2*i] = byte(g >> 8)
		out[2*i+1] = byte(g)
	}
	return out, nil
}

// parseIPv6Groups splits s on ':' into 16-bit groups. A trailing group that
// contains a '.' is treated as an embedded IPv4 tail and expands into two
// groups. An empty s yields no groups (used for the two halves around a
// leading/trailing "::").
func parseIPv6Groups(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}

	fields := strings.Split(s, ":")
	groups := make([]uint16, 0, len(fields)+1)
	for i, f := range fields {
		if strings.Contains(f, ".") {
			if i != len(fields)-1 {
				return nil, errors.New("ipv6: embedded ipv4 must be the last group")
			}
			ipv4, err := parseIPv4(f)
			if err != nil {
				return nil, errors.Wrap(err, "ipv6: embedded ipv4")
			}
			groups = append(groups,
				uint16(ipv4[0])<<8|uint16(ipv4[1]),
				uint16(ipv4[2])<<8|uint16(ipv4[3]),
			)
			continue
		}

		if len(f) > 4 {
			return nil, errors.Errorf("ipv6: hextet %q longer than 4 hex chars", f)
		}
		v, err := strconv.ParseUint(f, 16, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "ipv6: invalid hextet %q", f)
		}
		groups = append(groups, uint16(v))
	}
	return groups, nil
}
