// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package config holds the run configuration enumerated in original spec
// §6. Loading it from a file, environment, or flag set is out of scope per
// original §1; this package supplies the struct and a minimal
// environment-variable loader. The command-line driver does not use the
// loader; it builds its Config from command-line flags.
package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Config is the run configuration, mirroring the table in original spec §6.
type Config struct {
	// BridgeLocalOrigins is the input tarball directory.
	BridgeLocalOrigins string
	// OutputPath is the long-term archive root.
	OutputPath string
	// RecentPath is the short-term mirror root.
	RecentPath string
	// StatsPath holds the secrets store and parsed-archives list.
	StatsPath string
	// ReplaceIpAddressesWithHashes enables hashing mode; false means
	// passthrough sentinels, per original spec §4.2.
	ReplaceIpAddressesWithHashes bool
	// BridgeDescriptorMappingsLimit is the number of days after which a
	// monthly secret is no longer persisted and is trimmed; negative
	// disables expiry.
	BridgeDescriptorMappingsLimit int
}

// FromEnv loads a Config from the BRIDGESAN_* environment variables. It is
// ambient test/CLI-driver tooling, not a general configuration framework:
// the sanitizer's correctness does not depend on how a Config is obtained.
func FromEnv() (Config, error) {
	cfg := Config{
		BridgeLocalOrigins:            os.Getenv("BRIDGESAN_LOCAL_ORIGINS"),
		OutputPath:                    os.Getenv("BRIDGESAN_OUTPUT_PATH"),
		RecentPath:                    os.Getenv("BRIDGESAN_RECENT_PATH"),
		StatsPath:                     os.Getenv("BRIDGESAN_STATS_PATH"),
		BridgeDescriptorMappingsLimit: -1,
	}

	if v := os.Getenv("BRIDGESAN_REPLACE_IP_WITH_HASHES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "config: parse BRIDGESAN_REPLACE_IP_WITH_HASHES")
		}
		cfg.ReplaceIpAddressesWithHashes = b
	}

	if v := os.Getenv("BRIDGESAN_MAPPINGS_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "config: parse BRIDGESAN_MAPPINGS_LIMIT")
		}
		cfg.BridgeDescriptorMappingsLimit = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required path is set.
func (c Config) Validate() error {
	for name, v := range map[string]string{
		"BridgeLocalOrigins": c.BridgeLocalOrigins,
		"OutputPath":         c.OutputPath,
		"RecentPath":         c.RecentPath,
		"StatsPath":          c.StatsPath,
	} {
		if v == "" {
			return errors.Errorf("config: %s must be set", name)
		}
	}
	return nil
}
