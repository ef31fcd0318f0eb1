// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package archive

import (
	"archive/tar"
	"bytes"
	"crypto/sha1" //nolint:gosec // digest is for per-run dedup, not authentication.
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/apex/log"
	units "github.com/docker/go-units"
	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/torproject/bridgesan/bridgedesc"
	"github.com/torproject/bridgesan/secrets"
)

var filenamePattern = regexp.MustCompile(
	`^from-([a-z]+)-(\d{4})-(\d{2})-(\d{2})-(\d{2})-(\d{2})-(\d{2})\.tar(\.gz)?$`)

// parseFilename extracts the authority name and embedded datetime from a
// bridge snapshot tarball name, per original spec §4.8 and §6.
func parseFilename(name string) (authority string, gzipped bool, t time.Time, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false, time.Time{}, false
	}
	year, _ := strconv.Atoi(m[2])
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	hour, _ := strconv.Atoi(m[5])
	minute, _ := strconv.Atoi(m[6])
	second, _ := strconv.Atoi(m[7])
	t = time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	return m[1], m[8] == ".gz", t, true
}

// Sink receives sanitized documents and is responsible for writing them to
// the archive and recent output trees, per original spec §4.9. Implemented
// by layout.Writer; kept as an interface here so archive does not import
// layout.
type Sink interface {
	WriteNetworkStatus(fileTime time.Time, authorityFP string, data []byte) error
	WriteServerDescriptor(digestHex string, data []byte) error
	WriteExtraInfo(digestHex string, data []byte) error
}

// Counters tallies per-type parsed/skipped documents for an end-of-run log
// line, per original spec §4.8.
type Counters struct {
	FilesParsed, FilesSkipped                   int
	NetworkStatusOK, NetworkStatusSkipped       int
	ServerDescriptorOK, ServerDescriptorSkipped int
	ExtraInfoOK, ExtraInfoSkipped               int
	BytesRead                                   int64
}

// Reader walks a directory of bridge snapshot tarballs and dispatches their
// contents to the document sanitizers.
type Reader struct {
	dir    string
	parsed *ParsedSet
	sec    *secrets.Sanitizer
	sink   Sink
}

// NewReader constructs a Reader over dir, using parsed to skip
// already-processed tarballs and sec to scrub sensitive fields.
func NewReader(dir string, parsed *ParsedSet, sec *secrets.Sanitizer, sink Sink) *Reader {
	return &Reader{dir: dir, parsed: parsed, sec: sec, sink: sink}
}

// Run processes every not-yet-parsed tarball in the directory, in
// lexicographic file-name order, and returns the run's counters.
func (r *Reader) Run() (Counters, error) {
	var c Counters

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return c, errors.Wrap(err, "archive: read directory")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	// seenMembers and seenDigests are original spec §3's "Per-Run Duplicate
	// Set": SHA-1 digests of whole tar members and of individual
	// router/extra-info descriptors already processed this run, so a
	// repeated member or descriptor across archives is skipped rather than
	// re-sanitized and re-written.
	seenMembers := make(map[string]struct{})
	seenDigests := make(map[string]struct{})

	for _, name := range names {
		if r.parsed.Has(name) {
			continue
		}

		authority, gzipped, fileTime, ok := parseFilename(name)
		if !ok {
			log.Warnf("archive: skipping unrecognized file name %q", name)
			c.FilesSkipped++
			continue
		}
		authorityFP, ok := AuthorityFingerprint(authority)
		if !ok {
			log.Warnf("archive: skipping file from unknown authority %q", authority)
			c.FilesSkipped++
			continue
		}

		if err := r.processFile(filepath.Join(r.dir, name), gzipped, fileTime, authorityFP, &c, seenMembers, seenDigests); err != nil {
			log.Warnf("archive: failed to process %q: %v", name, err)
			c.FilesSkipped++
			continue
		}

		if err := r.parsed.Add(name); err != nil {
			return c, errors.Wrapf(err, "archive: record %q as parsed", name)
		}
		c.FilesParsed++
	}

	log.WithFields(log.Fields{
		"files_parsed":              c.FilesParsed,
		"files_skipped":             c.FilesSkipped,
		"network_status_ok":         c.NetworkStatusOK,
		"network_status_skipped":    c.NetworkStatusSkipped,
		"server_descriptor_ok":      c.ServerDescriptorOK,
		"server_descriptor_skipped": c.ServerDescriptorSkipped,
		"extra_info_ok":             c.ExtraInfoOK,
		"extra_info_skipped":        c.ExtraInfoSkipped,
		"bytes_read":                units.HumanSize(float64(c.BytesRead)),
	}).Infof("archive: run complete")

	return c, nil
}

func (r *Reader) processFile(path string, gzipped bool, fileTime time.Time, authorityFP string, c *Counters, seenMembers, seenDigests map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open tarball")
	}
	defer f.Close()

	var tr *tar.Reader
	if gzipped {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrap(err, "open gzip stream")
		}
		defer gr.Close()
		tr = tar.NewReader(gr)
	} else {
		tr = tar.NewReader(f)
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read tar entry header")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		member, err := io.ReadAll(tr)
		if err != nil {
			return errors.Wrapf(err, "read tar entry %q", hdr.Name)
		}
		sum := sha1.Sum(member) //nolint:gosec
		memberDigest := hex.EncodeToString(sum[:])
		log.WithFields(log.Fields{"entry": hdr.Name, "sha1": memberDigest}).Debugf("archive: read tar entry")

		if _, dup := seenMembers[memberDigest]; dup {
			log.Debugf("archive: skipping already-seen tar member %q", hdr.Name)
			continue
		}
		seenMembers[memberDigest] = struct{}{}

		c.BytesRead += int64(len(member))
		r.dispatchMember(member, fileTime, authorityFP, seenDigests, c)
	}

	return nil
}

func firstNonAnnotationLine(member []byte) []byte {
	for _, line := range bytes.Split(member, []byte("\n")) {
		if len(line) == 0 || line[0] == '@' {
			continue
		}
		return line
	}
	return nil
}

func (r *Reader) dispatchMember(member []byte, fileTime time.Time, authorityFP string, seenDigests map[string]struct{}, c *Counters) {
	hint := firstNonAnnotationLine(member)
	if bytes.HasPrefix(hint, []byte("published ")) ||
		bytes.HasPrefix(hint, []byte("flag-thresholds ")) ||
		bytes.HasPrefix(hint, []byte("r ")) {
		out, err := bridgedesc.SanitizeNetworkStatus(member, authorityFP, fileTime, r.sec)
		if err != nil {
			log.Warnf("archive: network-status sanitize failed: %v", err)
			c.NetworkStatusSkipped++
			return
		}
		if err := r.sink.WriteNetworkStatus(fileTime, authorityFP, out); err != nil {
			log.Warnf("archive: write network-status failed: %v", err)
			c.NetworkStatusSkipped++
			return
		}
		c.NetworkStatusOK++
		return
	}

	r.dispatchDescriptors(member, seenDigests, c)
}

// dispatchDescriptors scans a tar member for one or more concatenated server
// or extra-info descriptors, per original spec §4.8 step 5. Each descriptor
// spans from its "router "/"extra-info " line through the end of its
// "-----END SIGNATURE-----" PEM block: the sanitizers need that full region,
// since their SHA-256 digest (the router-digest-sha256 line) is computed over
// router…-----END SIGNATURE-----, not just router…router-signature. The
// canonical per-descriptor digest used for dedup and the output path is still
// taken over the narrower router…router-signature\n range: the double SHA-1
// (lowercase hex) that the sanitizers emit as router-digest, matching
// original spec §4.3's digest convention.
func (r *Reader) dispatchDescriptors(member []byte, seenDigests map[string]struct{}, c *Counters) {
	const digestEndToken = "\nrouter-signature\n"
	const pemEndToken = "-----END SIGNATURE-----\n"

	remaining := member
	for {
		routerIdx := indexOrMax(remaining, "router ")
		extraIdx := indexOrMax(remaining, "extra-info ")
		if routerIdx == len(remaining) && extraIdx == len(remaining) {
			return
		}

		isServer := routerIdx <= extraIdx
		start := routerIdx
		if !isServer {
			start = extraIdx
		}

		relDigestEnd := bytes.Index(remaining[start:], []byte(digestEndToken))
		if relDigestEnd < 0 {
			return
		}
		digestEnd := start + relDigestEnd + len(digestEndToken)

		relPemEnd := bytes.Index(remaining[digestEnd:], []byte(pemEndToken))
		if relPemEnd < 0 {
			return
		}
		end := digestEnd + relPemEnd + len(pemEndToken)

		region := remaining[start:end]
		sum := sha1.Sum(remaining[start:digestEnd]) //nolint:gosec
		routerDigest := sha1.Sum(sum[:])            //nolint:gosec
		digestHex := hex.EncodeToString(routerDigest[:])

		if _, dup := seenDigests[digestHex]; dup {
			remaining = remaining[end:]
			continue
		}
		seenDigests[digestHex] = struct{}{}

		if isServer {
			out, err := bridgedesc.SanitizeServerDescriptor(region, r.sec)
			if err != nil {
				log.Warnf("archive: server-descriptor sanitize failed: %v", err)
				c.ServerDescriptorSkipped++
			} else if err := r.sink.WriteServerDescriptor(digestHex, out); err != nil {
				log.Warnf("archive: write server-descriptor failed: %v", err)
				c.ServerDescriptorSkipped++
			} else {
				c.ServerDescriptorOK++
			}
		} else {
			out, err := bridgedesc.SanitizeExtraInfo(region)
			if err != nil {
				log.Warnf("archive: extra-info sanitize failed: %v", err)
				c.ExtraInfoSkipped++
			} else if err := r.sink.WriteExtraInfo(digestHex, out); err != nil {
				log.Warnf("archive: write extra-info failed: %v", err)
				c.ExtraInfoSkipped++
			} else {
				c.ExtraInfoOK++
			}
		}

		remaining = remaining[end:]
	}
}

func indexOrMax(data []byte, token string) int {
	idx := bytes.Index(data, []byte(token))
	if idx < 0 {
		return len(data)
	}
	return idx
}
