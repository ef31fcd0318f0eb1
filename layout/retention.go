// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package layout

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// CleanDirectory walks root, deleting regular files whose modification
// time is before cutoff, and renaming any remaining "*.tmp" file to its
// de-tmp name (recovering a previous run's unpromoted recent-mirror
// files), per original spec §4.9.
func CleanDirectory(root string, cutoff time.Time) error {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "layout: read directory %s", root)
	}

	for _, e := range entries {
		path := filepath.Join(root, e.Name())

		if e.IsDir() {
			if err := CleanDirectory(path, cutoff); err != nil {
				return err
			}
			continue
		}

		if strings.HasSuffix(e.Name(), ".tmp") {
			promoted := trimTmpSuffix(path)
			if err := os.Rename(path, promoted); err != nil {
				return errors.Wrapf(err, "layout: promote leftover tmp file %s", path)
			}
			log.Warnf("layout: promoted leftover tmp file %s from a previous run", path)
			continue
		}

		info, err := e.Info()
		if err != nil {
			return errors.Wrapf(err, "layout: stat %s", path)
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return errors.Wrapf(err, "layout: remove expired file %s", path)
			}
		}
	}

	return nil
}
