// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package layout writes sanitized documents to the long-term archive tree
// and the short-term recent-mirror tree, per original spec §4.9.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
)

// ArchiveRetentionDays is the archive tree's retention horizon. Original
// spec §4.9 states it two ways ("49 days for bridge descriptors, 7 weeks
// for paths that keep long-term artifacts") which are the same duration.
const ArchiveRetentionDays = 49

// RecentRetentionDays is the recent-mirror tree's retention horizon.
const RecentRetentionDays = 3

// Writer implements archive.Sink, fanning each sanitized document out to
// its archive path and its recent-mirror path.
type Writer struct {
	archiveRoot string
	recentRoot  string
	runTime     time.Time
	runStamp    string

	recentTmp map[string]*os.File // kind -> open append-mode .tmp handle for this run
}

// NewWriter constructs a Writer rooted at archiveRoot/recentRoot. runTime is
// the time the current job run started: it names the recent-mirror
// "rsync-cat" concatenation files and shards server/extra-info archive
// paths by year and month, since those documents carry no date of their
// own in the output path.
func NewWriter(archiveRoot, recentRoot string, runTime time.Time) *Writer {
	return &Writer{
		archiveRoot: archiveRoot,
		recentRoot:  recentRoot,
		runTime:     runTime,
		runStamp:    runTime.UTC().Format("20060102-150405"),
		recentTmp:   make(map[string]*os.File),
	}
}

// WriteNetworkStatus writes a sanitized network-status document to both
// trees. Archive writes are write-once: an existing file is left untouched.
func (w *Writer) WriteNetworkStatus(fileTime time.Time, authorityFP string, data []byte) error {
	name := fmt.Sprintf("%s-%s", fileTime.UTC().Format("20060102-150405"), authorityFP)

	archivePath, err := securejoin.SecureJoin(w.archiveRoot, filepath.Join(
		fileTime.UTC().Format("2006"), fileTime.UTC().Format("01"),
		"statuses", fileTime.UTC().Format("02"), name))
	if err != nil {
		return errors.Wrap(err, "layout: join archive status path")
	}
	if err := writeOnce(archivePath, data); err != nil {
		return errors.Wrap(err, "layout: write archive status")
	}

	recentPath, err := securejoin.SecureJoin(w.recentRoot, filepath.Join("statuses", name))
	if err != nil {
		return errors.Wrap(err, "layout: join recent status path")
	}
	if err := writeOnce(recentPath, data); err != nil {
		return errors.Wrap(err, "layout: write recent status")
	}

	return nil
}

// WriteServerDescriptor writes a sanitized server descriptor, keyed by its
// router-digest hex, to both trees.
func (w *Writer) WriteServerDescriptor(digestHex string, data []byte) error {
	return w.writeDescriptor("server-descriptors", digestHex, data)
}

// WriteExtraInfo writes a sanitized extra-info descriptor, keyed by its
// router-digest hex, to both trees.
func (w *Writer) WriteExtraInfo(digestHex string, data []byte) error {
	return w.writeDescriptor("extra-infos", digestHex, data)
}

func (w *Writer) writeDescriptor(kind, digestHex string, data []byte) error {
	if len(digestHex) < 2 {
		return errors.Errorf("layout: digest %q too short to shard", digestHex)
	}

	archivePath, err := securejoin.SecureJoin(w.archiveRoot, filepath.Join(
		w.runTime.UTC().Format("2006"), w.runTime.UTC().Format("01"),
		kind, digestHex[0:1], digestHex[1:2], digestHex))
	if err != nil {
		return errors.Wrapf(err, "layout: join archive %s path", kind)
	}
	if err := writeOnce(archivePath, data); err != nil {
		return errors.Wrapf(err, "layout: write archive %s", kind)
	}

	f, err := w.recentTmpFile(kind)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return errors.Wrapf(err, "layout: append recent %s", kind)
	}

	return nil
}

func (w *Writer) recentTmpFile(kind string) (*os.File, error) {
	if f, ok := w.recentTmp[kind]; ok {
		return f, nil
	}

	path, err := securejoin.SecureJoin(w.recentRoot, filepath.Join(
		"bridge-descriptors", kind, fmt.Sprintf("%s-%s.tmp", w.runStamp, kind)))
	if err != nil {
		return nil, errors.Wrapf(err, "layout: join recent %s tmp path", kind)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "layout: create recent %s directory", kind)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "layout: open recent %s tmp file", kind)
	}
	w.recentTmp[kind] = f
	return f, nil
}

// FinishRun closes every open recent-mirror .tmp file opened during this
// run and promotes it to its de-tmp name, per original spec §4.9.
func (w *Writer) FinishRun() error {
	for kind, f := range w.recentTmp {
		path := f.Name()
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "layout: close recent %s tmp file", kind)
		}
		if err := os.Rename(path, trimTmpSuffix(path)); err != nil {
			return errors.Wrapf(err, "layout: promote recent %s tmp file", kind)
		}
	}
	w.recentTmp = make(map[string]*os.File)
	return nil
}

// writeOnce creates path and its parent directories if path does not
// already exist; an existing file is left untouched, per original spec
// §4.9's deterministic-output write policy.
func writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "stat existing output")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write output file")
	}
	return nil
}

func trimTmpSuffix(path string) string {
	const suffix = ".tmp"
	if len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return path
}
