// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package writeconcern defines the write-acknowledgment policy attached to
// write commands.
package writeconcern

import (
	"errors"
	"time"

	"github.com/stranddb/strand-go-driver/x/docx"
)

// ErrEmptyWriteConcern indicates that a write concern has no fields set.
var ErrEmptyWriteConcern = errors.New("a write concern must have at least one field set")

// WriteConcern describes the level of acknowledgment requested from the server
// for write operations.
type WriteConcern struct {
	w        interface{}
	j        bool
	wTimeout time.Duration
}

// Option is an option to provide when creating a WriteConcern.
type Option func(concern *WriteConcern)

// New constructs a new WriteConcern.
func New(options ...Option) *WriteConcern {
	concern := &WriteConcern{}
	for _, option := range options {
		option(concern)
	}
	return concern
}

// W requests acknowledgment that write operations propagate to the specified
// number of servers.
func W(w int) Option {
	return func(concern *WriteConcern) {
		concern.w = w
	}
}

// WMajority requests acknowledgment that write operations propagate to the
// majority of servers.
func WMajority() Option {
	return func(concern *WriteConcern) {
		concern.w = "majority"
	}
}

// J requests acknowledgment that write operations have been written to the
// journal.
func J(j bool) Option {
	return func(concern *WriteConcern) {
		concern.j = j
	}
}

// WTimeout specifies how long write operations should wait for the correct
// number of servers to acknowledge.
func WTimeout(d time.Duration) Option {
	return func(concern *WriteConcern) {
		concern.wTimeout = d
	}
}

// Acknowledged indicates whether or not a write with the given write concern
// will be acknowledged.
func (wc *WriteConcern) Acknowledged() bool {
	if wc == nil || wc.j {
		return true
	}
	if w, ok := wc.w.(int); ok && w == 0 {
		return false
	}
	return true
}

// MarshalDocument marshals the write concern into a document, returning
// ErrEmptyWriteConcern if no fields are set.
func (wc *WriteConcern) MarshalDocument() (docx.Doc, error) {
	var doc docx.Doc
	switch w := wc.w.(type) {
	case int:
		if w < 0 {
			return nil, errors.New("write concern `w` field cannot be a negative number")
		}
		doc = doc.Append("w", docx.Int64(int64(w)))
	case string:
		doc = doc.Append("w", docx.String(w))
	}
	if wc.j {
		doc = doc.Append("j", docx.Boolean(wc.j))
	}
	if wc.wTimeout != 0 {
		doc = doc.Append("wtimeout", docx.Int64(int64(wc.wTimeout/time.Millisecond)))
	}
	if len(doc) == 0 {
		return nil, ErrEmptyWriteConcern
	}
	return doc, nil
}

// AckWrite returns true if a write concern represents an acknowledged write.
// A nil write concern is considered acknowledged.
func AckWrite(wc *WriteConcern) bool {
	return wc == nil || wc.Acknowledged()
}
