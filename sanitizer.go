// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package bridgesan ties together archive reading, document sanitization,
// output writing, and secret/output retention into the single synchronous
// job entry point described in original spec §2 and §6.
package bridgesan

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/torproject/bridgesan/archive"
	"github.com/torproject/bridgesan/config"
	"github.com/torproject/bridgesan/layout"
	"github.com/torproject/bridgesan/secrets"
	"github.com/torproject/bridgesan/staleness"
)

// Run executes one job run: scan for not-yet-processed archives, sanitize
// and write every document they contain, then trim old secrets, check
// staleness, and clean the output directories. Run returns an error only
// when the configuration is invalid or when the secrets store or the
// parsed-archives list cannot be opened; in those cases nothing is
// processed. Every later failure is logged, skips only the affected archive
// or document, and Run returns nil.
func Run(cfg config.Config, now time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := secrets.Open(filepath.Join(cfg.StatsPath, "bridge-ip-secrets"))
	if err != nil {
		return errors.Wrap(err, "bridgesan: open secrets store")
	}

	mode := secrets.Passthrough
	if cfg.ReplaceIpAddressesWithHashes {
		mode = secrets.Hashing
	}
	sec := secrets.New(mode, store, cfg.BridgeDescriptorMappingsLimit, now)

	parsed, err := archive.OpenParsedSet(filepath.Join(cfg.StatsPath, "parsed-bridge-directories"))
	if err != nil {
		return errors.Wrap(err, "bridgesan: open parsed-archives set")
	}

	mon := staleness.New()
	writer := layout.NewWriter(cfg.OutputPath, cfg.RecentPath, now)
	sink := &observingSink{Writer: writer, mon: mon}

	reader := archive.NewReader(cfg.BridgeLocalOrigins, parsed, sec, sink)
	counters, err := reader.Run()
	if err != nil {
		log.Warnf("bridgesan: archive run failed: %v", err)
	}
	log.Infof("bridgesan: processed %d archive(s), skipped %d", counters.FilesParsed, counters.FilesSkipped)

	if err := writer.FinishRun(); err != nil {
		log.Warnf("bridgesan: failed to promote recent-mirror tmp files: %v", err)
	}

	if err := sec.FinishWriting(); err != nil {
		log.Warnf("bridgesan: failed to trim secrets store: %v", err)
	}

	for _, w := range mon.CheckAll(now) {
		log.Warnf("%s", w)
	}

	if err := layout.CleanDirectory(cfg.OutputPath, now.AddDate(0, 0, -layout.ArchiveRetentionDays)); err != nil {
		log.Warnf("bridgesan: failed to clean archive directory: %v", err)
	}
	if err := layout.CleanDirectory(cfg.RecentPath, now.AddDate(0, 0, -layout.RecentRetentionDays)); err != nil {
		log.Warnf("bridgesan: failed to clean recent directory: %v", err)
	}

	return nil
}

// observingSink wraps a layout.Writer, additionally feeding the publication
// timestamp of every document it sees to a staleness.Monitor.
type observingSink struct {
	*layout.Writer
	mon *staleness.Monitor
}

func (s *observingSink) WriteNetworkStatus(fileTime time.Time, authorityFP string, data []byte) error {
	if ts, ok := extractPublished(data); ok {
		s.mon.Observe(staleness.KindNetworkStatus, ts)
	}
	return s.Writer.WriteNetworkStatus(fileTime, authorityFP, data)
}

func (s *observingSink) WriteServerDescriptor(digestHex string, data []byte) error {
	if ts, ok := extractPublished(data); ok {
		s.mon.Observe(staleness.KindServerDescriptor, ts)
	}
	return s.Writer.WriteServerDescriptor(digestHex, data)
}

func (s *observingSink) WriteExtraInfo(digestHex string, data []byte) error {
	if ts, ok := extractPublished(data); ok {
		s.mon.Observe(staleness.KindExtraInfo, ts)
	}
	return s.Writer.WriteExtraInfo(digestHex, data)
}

// extractPublished finds the first "published <ts>" line in a sanitized
// document and parses its timestamp.
func extractPublished(data []byte) (time.Time, bool) {
	for _, line := range strings.Split(string(data), "\n") {
		ts, ok := strings.CutPrefix(line, "published ")
		if !ok {
			continue
		}
		parsed, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(ts))
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
