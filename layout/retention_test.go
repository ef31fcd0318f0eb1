// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package layout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanDirectoryRemovesExpiredFiles(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "old-file")
	fresh := filepath.Join(root, "fresh-file")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	oldTime := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	require.NoError(t, CleanDirectory(root, time.Now().Add(-48*time.Hour)))

	_, err := os.Stat(old)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestCleanDirectoryPromotesLeftoverTmpFiles(t *testing.T) {
	root := t.TempDir()
	tmp := filepath.Join(root, "partial.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o644))

	require.NoError(t, CleanDirectory(root, time.Now().Add(-48*time.Hour)))

	_, err := os.Stat(tmp)
	require.True(t, os.IsNotExist(err))
	got, err := os.ReadFile(filepath.Join(root, "partial"))
	require.NoError(t, err)
	require.Equal(t, "partial", string(got))
}

func TestCleanDirectoryRecursesIntoSubdirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "2020", "01")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	old := filepath.Join(sub, "old-file")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	oldTime := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	require.NoError(t, CleanDirectory(root, time.Now().Add(-48*time.Hour)))

	_, err := os.Stat(old)
	require.True(t, os.IsNotExist(err))
}

func TestCleanDirectoryMissingRootIsNotError(t *testing.T) {
	require.NoError(t, CleanDirectory(filepath.Join(t.TempDir(), "missing"), time.Now()))
}
