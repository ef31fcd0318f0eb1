// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package archive

import (
	"bufio"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// ParsedSet is the persistent "parsed-bridge-directories" file: one tarball
// file name per line, recording archives already fully processed by a prior
// run so they are never reprocessed.
type ParsedSet struct {
	path string
	seen map[string]struct{}
}

// OpenParsedSet loads the parsed set from path, treating a missing file as
// an empty set.
func OpenParsedSet(path string) (*ParsedSet, error) {
	p := &ParsedSet{path: path, seen: make(map[string]struct{})}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open parsed-archives set")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			p.seen[name] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read parsed-archives set")
	}
	return p, nil
}

// Has reports whether name has already been fully processed.
func (p *ParsedSet) Has(name string) bool {
	_, ok := p.seen[name]
	return ok
}

// Add durably records name as processed. Safe to call only after the whole
// file has been fully dispatched, per original spec §4.8 step 6.
func (p *ParsedSet) Add(name string) error {
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "open parsed-archives set for append")
	}
	defer f.Close()

	if _, err := f.WriteString(name + "\n"); err != nil {
		return errors.Wrap(err, "append parsed-archives set")
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "sync parsed-archives set")
	}

	p.seen[name] = struct{}{}
	log.Debugf("archive: recorded %s as parsed", name)
	return nil
}
