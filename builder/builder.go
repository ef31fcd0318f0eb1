// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Tor Project

// Package builder provides an append-only text assembler for sanitized
// descriptor documents. It supports inline placeholders that are filled in
// once dependent information (a fingerprint, a publication time) becomes
// known further down the document.
package builder

import "strings"

// fragment is either a literal piece of text or a placeholder slot.
type fragment interface {
	value() string
}

type literal string

func (l literal) value() string { return string(l) }

// Placeholder is a mutable slot reserved at a known position in the output
// and filled later. An unfilled placeholder serializes as the empty string.
type Placeholder struct {
	filled bool
	text   string
}

func (p *Placeholder) value() string {
	if !p.filled {
		return ""
	}
	return p.text
}

// Fill sets the placeholder's text. A later call overwrites the earlier
// value; the sanitizers fill each placeholder exactly once (the deferred
// IP/port fields, after the fingerprint line has been seen).
func (p *Placeholder) Fill(text string) {
	p.filled = true
	p.text = text
}

// Filled reports whether Fill has been called.
func (p *Placeholder) Filled() bool {
	return p.filled
}

// Builder is a sequence of text fragments that concatenate, in insertion
// order, into the final document.
type Builder struct {
	frags []fragment
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Append adds a literal piece of text.
func (b *Builder) Append(text string) {
	b.frags = append(b.frags, literal(text))
}

// Space appends a single space character.
func (b *Builder) Space() {
	b.Append(" ")
}

// NewLine appends a line feed.
func (b *Builder) NewLine() {
	b.Append("\n")
}

// AppendPlaceholder inserts a new, unfilled placeholder at the current
// position and returns it so the caller can fill it once the dependent
// value is known.
func (b *Builder) AppendPlaceholder() *Placeholder {
	p := &Placeholder{}
	b.frags = append(b.frags, p)
	return p
}

// HasContent reports whether anything has been appended yet.
func (b *Builder) HasContent() bool {
	return len(b.frags) > 0
}

// ToBytes concatenates every fragment and filled placeholder, in insertion
// order, into the final document bytes.
func (b *Builder) ToBytes() []byte {
	var sb strings.Builder
	for _, f := range b.frags {
		sb.WriteString(f.value())
	}
	return []byte(sb.String())
}
