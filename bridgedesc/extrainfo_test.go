// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleExtraInfo() string {
	var sb strings.Builder
	sb.WriteString("extra-info Unnamed " + strings.Repeat("AA", 20) + "\n")
	sb.WriteString("published 2020-01-15 09:00:00\n")
	sb.WriteString("transport obfs4 192.0.2.7:9001 cert=abc\n")
	sb.WriteString("transport-info junk\n")
	sb.WriteString("write-history 2020-01-15 09:00:00 (900 s) 123,456\n")
	sb.WriteString("geoip-db-digest ABCDEF\n")
	sb.WriteString("bridge-stats-end 2020-01-15 09:00:00 (86400 s)\n")
	sb.WriteString("dirreq-stats-end 2020-01-15 09:00:00 (86400 s)\n")
	sb.WriteString("router-signature\n-----BEGIN SIGNATURE-----\nMIGJAoGB\n-----END SIGNATURE-----\n")
	return sb.String()
}

func TestSanitizeExtraInfoHappyPath(t *testing.T) {
	out, err := SanitizeExtraInfo([]byte(sampleExtraInfo()))
	require.NoError(t, err)
	s := string(out)

	require.Contains(t, s, "@type bridge-extra-info")
	require.Contains(t, s, "extra-info Unnamed E5FEFEC5E0B8312C80C24E958CC9DB10940175BE\n")
	require.Contains(t, s, "published 2020-01-15 09:00:00")
	require.Contains(t, s, "transport obfs4\n")
	require.NotContains(t, s, "192.0.2.7")
	require.NotContains(t, s, "transport-info")
	require.Contains(t, s, "write-history 2020-01-15 09:00:00 (900 s) 123,456")
	require.Contains(t, s, "geoip-db-digest ABCDEF")
	require.Contains(t, s, "bridge-stats-end")
	require.Contains(t, s, "dirreq-stats-end")
	require.NotContains(t, s, "router-signature")
	require.Contains(t, s, "router-digest ")
	require.NotContains(t, s, "router-digest-sha256")
}

func TestSanitizeExtraInfoTransportTooShortRejects(t *testing.T) {
	doc := "extra-info Unnamed " + strings.Repeat("AA", 20) + "\n" +
		"published 2020-01-15 09:00:00\n" +
		"transport obfs4\n" +
		"router-signature\n"
	_, err := SanitizeExtraInfo([]byte(doc))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSanitizeExtraInfoUnknownLineRejects(t *testing.T) {
	doc := "extra-info Unnamed " + strings.Repeat("AA", 20) + "\n" +
		"published 2020-01-15 09:00:00\n" +
		"bogus-keyword foo\n" +
		"router-signature\n"
	_, err := SanitizeExtraInfo([]byte(doc))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSanitizeExtraInfoMissingRequiredFieldsWarns(t *testing.T) {
	_, err := SanitizeExtraInfo([]byte("router-signature\n"))
	require.ErrorIs(t, err, ErrMalformed)
}
