// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package description contains types that describe servers and deployments as
// observed by the discovery layer. The execution engine only reads these; it
// never updates them.
package description

import (
	"errors"

	"github.com/stranddb/strand-go-driver/x/stranddb/driver/address"
)

// ServerKind represents the type of a single server in a deployment.
type ServerKind uint32

// These constants are the possible types of servers.
const (
	Standalone  ServerKind = 1
	RSPrimary   ServerKind = 2
	RSSecondary ServerKind = 4
	Router      ServerKind = 8
	Unknown     ServerKind = 0
)

// String implements the fmt.Stringer interface.
func (kind ServerKind) String() string {
	switch kind {
	case Standalone:
		return "Standalone"
	case RSPrimary:
		return "RSPrimary"
	case RSSecondary:
		return "RSSecondary"
	case Router:
		return "Router"
	}
	return "Unknown"
}

// TopologyKind represents the type of the whole deployment.
type TopologyKind uint32

// These constants are the possible types of deployments.
const (
	Single     TopologyKind = 1
	ReplicaSet TopologyKind = 2
	Routed     TopologyKind = 4
)

// String implements the fmt.Stringer interface.
func (kind TopologyKind) String() string {
	switch kind {
	case Single:
		return "Single"
	case ReplicaSet:
		return "ReplicaSet"
	case Routed:
		return "Routed"
	}
	return "Unknown"
}

// VersionRange represents a range of versions.
type VersionRange struct {
	Min int32
	Max int32
}

// Includes returns a bool indicating whether the supplied integer is included
// in the range.
func (vr VersionRange) Includes(v int32) bool {
	return v >= vr.Min && v <= vr.Max
}

// Server contains the negotiated metadata of one server connection.
type Server struct {
	Addr address.Address

	Kind                  ServerKind
	WireVersion           *VersionRange
	SessionTimeoutMinutes uint32
	Compression           []string
	MaxDocumentSize       uint32
}

// SelectedServer augments the Server type by also including the topology kind
// of the deployment it was selected from.
type SelectedServer struct {
	Server
	Kind TopologyKind
}

// Topology contains the discovery layer's view of the whole deployment.
type Topology struct {
	Servers               []Server
	Kind                  TopologyKind
	SessionTimeoutMinutes uint32
}

// SessionsSupported returns true of the server version supports sessions.
func SessionsSupported(wireVersion *VersionRange) bool {
	return wireVersion != nil && wireVersion.Max >= 6
}

// RetryWritesSupported returns true if this server supports retryable writes.
func RetryWritesSupported(s Server) bool {
	return SessionsSupported(s.WireVersion) && s.SessionTimeoutMinutes != 0 &&
		s.Kind != Standalone
}

// ErrNoWritableServer is returned when a deployment contains no server a write
// can be sent to.
var ErrNoWritableServer = errors.New("no writable server available")

// ServerSelector is an interface implemented by types that can perform server
// selection.
type ServerSelector interface {
	SelectServer(Topology, []Server) ([]Server, error)
}

// WriteSelector selects all the writable servers from a deployment.
func WriteSelector() ServerSelector { return writeSelector{} }

type writeSelector struct{}

func (writeSelector) SelectServer(_ Topology, candidates []Server) ([]Server, error) {
	result := []Server{}
	for _, candidate := range candidates {
		switch candidate.Kind {
		case Standalone, RSPrimary, Router:
			result = append(result, candidate)
		}
	}
	if len(result) == 0 {
		return nil, ErrNoWritableServer
	}
	return result, nil
}
