// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnnotateRoundTrips(t *testing.T) {
	for _, kind := range []Kind{KindNetworkStatus, KindServerDescriptor, KindExtraInfoDescriptor} {
		line := Annotate(kind)
		v := versions[kind]
		require.Equal(t, fmt.Sprintf("@type %s %d.%d\n", kind, v.Major, v.Minor), line)

		gotKind, gotVersion, err := ParseAnnotation(line[:len(line)-1])
		require.NoError(t, err)
		require.Equal(t, kind, gotKind)
		require.True(t, CompatibleVersion(kind, gotVersion))
	}
}

func TestParseAnnotationRejectsMalformed(t *testing.T) {
	_, _, err := ParseAnnotation("@type bridge-network-status not-a-version")
	require.Error(t, err)

	_, _, err = ParseAnnotation("@type bridge-network-status")
	require.Error(t, err)
}

func TestCompatibleVersionRejectsMajorMismatch(t *testing.T) {
	v := versions[KindNetworkStatus]
	v.Major++
	require.False(t, CompatibleVersion(KindNetworkStatus, v))
}

func TestCompatibleVersionUnknownKind(t *testing.T) {
	require.False(t, CompatibleVersion(Kind("bogus"), versions[KindNetworkStatus]))
}
