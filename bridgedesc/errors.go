// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

package bridgedesc

import "github.com/pkg/errors"

// ErrMalformed signals that a document failed to parse for a document-level
// reason (missing required field, wrong token count, unrecognized line,
// mismatched identity material). The caller should skip just this one
// document and continue the run, per original spec §7.
var ErrMalformed = errors.New("bridgedesc: malformed document")

// ErrDisabled signals that scrubbing could not complete because the
// secrets sanitizer has been poisoned by a store write failure. The caller
// must not emit any output for the document in progress.
var ErrDisabled = errors.New("bridgedesc: secrets sanitizer disabled")
