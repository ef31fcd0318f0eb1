// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/torproject/bridgesan/secrets"
)

type fakeSink struct {
	networkStatus     [][]byte
	serverDescriptors [][]byte
	extraInfos        [][]byte
}

func (f *fakeSink) WriteNetworkStatus(_ time.Time, _ string, data []byte) error {
	f.networkStatus = append(f.networkStatus, data)
	return nil
}

func (f *fakeSink) WriteServerDescriptor(_ string, data []byte) error {
	f.serverDescriptors = append(f.serverDescriptors, data)
	return nil
}

func (f *fakeSink) WriteExtraInfo(_ string, data []byte) error {
	f.extraInfos = append(f.extraInfos, data)
	return nil
}

func writeTar(t *testing.T, path string, members map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	defer tw.Close()

	for name, body := range members {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
}

func sampleStatusMember() string {
	var sb strings.Builder
	sb.WriteString("published 2020-01-15 09:00:00\n")
	sb.WriteString("flag-thresholds stable-uptime=1\n")
	sb.WriteString("r Unnamed qqqqqqqqqqqqqqqqqqqqqqqqqqo= qqqqqqqqqqqqqqqqqqqqqqqqqqo= 2020-01-15 08:55:00 192.0.2.7 9001 9030\n")
	sb.WriteString("s Running Valid\n")
	return sb.String()
}

func sampleServerMember(nickname string) string {
	var sb strings.Builder
	sb.WriteString("router " + nickname + " 192.0.2.7 9001 9030 0\n")
	sb.WriteString("published 2020-01-15 09:00:00\n")
	sb.WriteString("fingerprint AAAA AAAA AAAA AAAA AAAA AAAA AAAA AAAA AAAA AAAA\n")
	sb.WriteString("bandwidth 1000 2000 1500\n")
	sb.WriteString("router-signature\n-----BEGIN SIGNATURE-----\nMIGJAoGB\n-----END SIGNATURE-----\n")
	return sb.String()
}

func sampleExtraInfoMember(nickname string) string {
	var sb strings.Builder
	sb.WriteString("extra-info " + nickname + " " + strings.Repeat("AA", 20) + "\n")
	sb.WriteString("published 2020-01-15 09:00:00\n")
	sb.WriteString("router-signature\n-----BEGIN SIGNATURE-----\nMIGJAoGB\n-----END SIGNATURE-----\n")
	return sb.String()
}

// identityEd25519CertBase64 is a minimal well-formed ed25519 identity
// certificate (version 1, cert type 4, certified-key type 1, one
// master-key-ed25519 extension) carrying an all-0xCD master key, built the
// same way bridgedesc's own ed25519cert_test.go buildCert does.
const identityEd25519CertBase64 = "AQQAAAAAAQAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAQAgBADNzc3Nzc3Nzc3Nzc3Nzc3Nzc3Nzc3Nzc3Nzc3Nzc3NzQ=="

// sampleServerMemberWithEd25519 is a server descriptor carrying an
// identity-ed25519 certificate ahead of its router-signature, matching what
// a real ed25519-bearing bridge descriptor looks like. It exercises the
// router-digest-sha256 line, which the sanitizer only emits when the
// sanitizer input spans through the descriptor's "-----END SIGNATURE-----"
// block.
func sampleServerMemberWithEd25519(nickname string) string {
	var sb strings.Builder
	sb.WriteString("router " + nickname + " 192.0.2.7 9001 9030 0\n")
	sb.WriteString("identity-ed25519\n-----BEGIN ED25519 CERT-----\n")
	sb.WriteString(identityEd25519CertBase64)
	sb.WriteString("\n-----END ED25519 CERT-----\n")
	sb.WriteString("published 2020-01-15 09:00:00\n")
	sb.WriteString("fingerprint AAAA AAAA AAAA AAAA AAAA AAAA AAAA AAAA AAAA AAAA\n")
	sb.WriteString("bandwidth 1000 2000 1500\n")
	sb.WriteString("router-signature\n-----BEGIN SIGNATURE-----\nMIGJAoGB\n-----END SIGNATURE-----\n")
	return sb.String()
}

func newTestReader(t *testing.T, archiveDir string, sink Sink) *Reader {
	t.Helper()
	stateDir := t.TempDir()
	parsed, err := OpenParsedSet(filepath.Join(stateDir, "parsed-bridge-directories"))
	require.NoError(t, err)
	store, err := secrets.Open(filepath.Join(stateDir, "bridge-ip-secrets"))
	require.NoError(t, err)
	sec := secrets.New(secrets.Passthrough, store, 0, time.Now())
	return NewReader(archiveDir, parsed, sec, sink)
}

func TestReaderDispatchesNetworkStatus(t *testing.T) {
	dir := t.TempDir()
	writeTar(t, filepath.Join(dir, "from-serge-2020-01-15-09-00-00.tar"), map[string]string{
		"status": sampleStatusMember(),
	})

	sink := &fakeSink{}
	r := newTestReader(t, dir, sink)

	c, err := r.Run()
	require.NoError(t, err)
	require.Equal(t, 1, c.FilesParsed)
	require.Equal(t, 1, c.NetworkStatusOK)
	require.Len(t, sink.networkStatus, 1)
	require.Contains(t, string(sink.networkStatus[0]), "@type bridge-network-status")
}

func TestReaderDispatchesConcatenatedDescriptors(t *testing.T) {
	dir := t.TempDir()
	member := sampleServerMember("Alice") + sampleExtraInfoMember("Alice") + sampleServerMember("Bob")
	writeTar(t, filepath.Join(dir, "from-serge-2020-01-15-09-00-00.tar"), map[string]string{
		"descriptors": member,
	})

	sink := &fakeSink{}
	r := newTestReader(t, dir, sink)

	c, err := r.Run()
	require.NoError(t, err)
	require.Equal(t, 1, c.FilesParsed)
	require.Equal(t, 2, c.ServerDescriptorOK)
	require.Equal(t, 1, c.ExtraInfoOK)
	require.Len(t, sink.serverDescriptors, 2)
	require.Len(t, sink.extraInfos, 1)
}

func TestReaderDedupesRepeatedDescriptor(t *testing.T) {
	dir := t.TempDir()
	one := sampleServerMember("Alice")
	writeTar(t, filepath.Join(dir, "from-serge-2020-01-15-09-00-00.tar"), map[string]string{
		"descriptors": one + one,
	})

	sink := &fakeSink{}
	r := newTestReader(t, dir, sink)

	c, err := r.Run()
	require.NoError(t, err)
	require.Equal(t, 1, c.ServerDescriptorOK)
	require.Len(t, sink.serverDescriptors, 1)
}

func TestReaderPreservesRouterDigestSha256ForEd25519Descriptor(t *testing.T) {
	dir := t.TempDir()
	writeTar(t, filepath.Join(dir, "from-serge-2020-01-15-09-00-00.tar"), map[string]string{
		"descriptors": sampleServerMemberWithEd25519("Alice"),
	})

	sink := &fakeSink{}
	r := newTestReader(t, dir, sink)

	c, err := r.Run()
	require.NoError(t, err)
	require.Equal(t, 1, c.ServerDescriptorOK)
	require.Len(t, sink.serverDescriptors, 1)
	require.Contains(t, string(sink.serverDescriptors[0]), "router-digest-sha256 ")
}

func TestReaderSkipsUnrecognizedFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-a-bridge-archive.tar"), []byte("x"), 0o600))

	sink := &fakeSink{}
	r := newTestReader(t, dir, sink)

	c, err := r.Run()
	require.NoError(t, err)
	require.Equal(t, 1, c.FilesSkipped)
	require.Equal(t, 0, c.FilesParsed)
}

func TestReaderSkipsAlreadyParsedFile(t *testing.T) {
	dir := t.TempDir()
	stateDir := t.TempDir()
	name := "from-serge-2020-01-15-09-00-00.tar"
	writeTar(t, filepath.Join(dir, name), map[string]string{"status": sampleStatusMember()})

	parsed, err := OpenParsedSet(filepath.Join(stateDir, "parsed-bridge-directories"))
	require.NoError(t, err)
	require.NoError(t, parsed.Add(name))

	store, err := secrets.Open(filepath.Join(stateDir, "bridge-ip-secrets"))
	require.NoError(t, err)
	sec := secrets.New(secrets.Passthrough, store, 0, time.Now())
	sink := &fakeSink{}
	r := NewReader(dir, parsed, sec, sink)

	c, err := r.Run()
	require.NoError(t, err)
	require.Equal(t, 0, c.FilesParsed)
	require.Equal(t, 0, c.FilesSkipped)
}

func TestParseFilenameRejectsGarbage(t *testing.T) {
	_, _, _, ok := parseFilename("whatever.tar.gz")
	require.False(t, ok)
}

func TestParseFilenameAcceptsGzipped(t *testing.T) {
	authority, gzipped, ts, ok := parseFilename("from-tonga-2021-06-01-00-00-00.tar.gz")
	require.True(t, ok)
	require.Equal(t, "tonga", authority)
	require.True(t, gzipped)
	require.Equal(t, 2021, ts.Year())
}
