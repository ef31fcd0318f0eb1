// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import (
	"testing"
	"time"

	fuzz "github.com/AdaLogics/go-fuzz-headers"

	"github.com/torproject/bridgesan/secrets"
)

func FuzzSanitizeNetworkStatus(f *testing.F) {
	f.Add([]byte("published 2020-01-15 09:00:00\nr Unnamed AAAAAAAAAAAAAAAAAAAAAAAAAAA= AAAAAAAAAAAAAAAAAAAAAAAAAAA= 2020-01-15 08:55:00 192.0.2.7 9001 9030\ns Running Valid\n"))
	f.Add([]byte(""))
	f.Add([]byte("\x00\x00garbage"))

	store := newFuzzStore(f)

	f.Fuzz(func(t *testing.T, data []byte) {
		sec := secrets.New(secrets.Hashing, store, -1, time.Now())
		// SanitizeNetworkStatus must never panic on arbitrary input; a
		// malformed document is reported as ErrMalformed and dropped.
		_, _ = SanitizeNetworkStatus(data, "B34380B3544DE75EE2D07B13D36EA3868D7A5C6", time.Now(), sec)
	})
}

func FuzzSanitizeServerDescriptor(f *testing.F) {
	f.Add([]byte("router Alice 192.0.2.7 9001 9030 0\npublished 2020-01-15 09:00:00\nrouter-signature\n-----BEGIN SIGNATURE-----\nMIGJ\n-----END SIGNATURE-----\n"))
	f.Add([]byte(""))

	store := newFuzzStore(f)

	f.Fuzz(func(t *testing.T, data []byte) {
		sec := secrets.New(secrets.Hashing, store, -1, time.Now())
		_, _ = SanitizeServerDescriptor(data, sec)
	})
}

func FuzzSanitizeExtraInfo(f *testing.F) {
	c := fuzz.NewConsumer([]byte("extra-info Alice AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA\npublished 2020-01-15 09:00:00\nrouter-signature\n-----BEGIN SIGNATURE-----\nMIGJ\n-----END SIGNATURE-----\n"))
	seed, err := c.GetBytes()
	if err == nil {
		f.Add(seed)
	}
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = SanitizeExtraInfo(data)
	})
}

func newFuzzStore(f *testing.F) *secrets.Store {
	f.Helper()
	store, err := secrets.Open(f.TempDir() + "/bridge-ip-secrets")
	if err != nil {
		f.Fatalf("open secrets store: %v", err)
	}
	return store
}
