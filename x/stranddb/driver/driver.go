// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package driver is the execution core of the StrandDB Go driver. It contains
// the common code required to select a server, transform an operation into a
// command, write the command to a connection, read and decode a response, and
// potentially retry.
package driver // import "github.com/stranddb/strand-go-driver/x/stranddb/driver"

import (
	"context"
	"errors"

	"github.com/stranddb/strand-go-driver/x/docx"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/address"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/description"
)

// Deployment is implemented by types that can select a server from a
// deployment.
type Deployment interface {
	SelectServer(context.Context, description.ServerSelector) (Server, error)
	Kind() description.TopologyKind
}

// Server represents a StrandDB server. Implementations should pool connections
// and handle the retrieving and returning of connections.
type Server interface {
	Connection(context.Context) (Connection, error)
}

// Connection represents an established connection to one specific StrandDB
// server process.
type Connection interface {
	WriteWireMessage(context.Context, []byte) error
	ReadWireMessage(ctx context.Context, dst []byte) ([]byte, error)
	Description() description.Server
	Close() error
	ID() string
	Address() address.Address
}

// Codec marshals documents to and from the byte representation used as wire
// message bodies. Implementations must be deterministic: marshaling the same
// document twice must produce identical bytes, since a retried write resends
// the command it built for the first attempt.
type Codec interface {
	MarshalDocument(dst []byte, doc docx.Doc) ([]byte, error)
	UnmarshalDocument(data []byte) (docx.Doc, error)
}

// Namespace encapsulates a database and collection name, which together
// uniquely identifies a collection within a deployment.
type Namespace struct {
	DB         string
	Collection string
}

// Validate validates the namespace.
func (ns Namespace) Validate() error {
	if ns.DB == "" {
		return errors.New("database name cannot be empty")
	}
	if ns.Collection == "" {
		return errors.New("collection name cannot be empty")
	}
	return nil
}

// Type specifies whether an operation is a read or a write. Only writes are
// eligible for transaction numbers and write retry.
type Type uint

// These are the available types of operations.
const (
	_ Type = iota
	Write
	Read
)

// RetryMode specifies the way that retries are handled for retryable
// operations.
type RetryMode uint

// These are the modes available for retrying. At most one additional attempt
// is ever made; there is no mode that retries more than once.
const (
	// RetryNone disables retrying.
	RetryNone RetryMode = iota
	// RetryOnce will enable retrying the entire operation once.
	RetryOnce
)

// Enabled returns if this RetryMode enables retrying.
func (rm RetryMode) Enabled() bool { return rm == RetryOnce }

// SingleServerDeployment is an implementation of Deployment that always
// returns a single server.
type SingleServerDeployment struct{ Server }

// SelectServer implements the Deployment interface. This method does not use
// the description.ServerSelector provided to it.
func (ssd SingleServerDeployment) SelectServer(context.Context, description.ServerSelector) (Server, error) {
	return ssd.Server, nil
}

// Kind implements the Deployment interface. It always returns
// description.Single.
func (SingleServerDeployment) Kind() description.TopologyKind { return description.Single }
