// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"

	"github.com/stranddb/strand-go-driver/x/stranddb/driver/description"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/session"
)

// channelBinding couples one attempt of an operation to one specific server
// connection and one fork of the operation's session. Forking before use is
// mandatory: it keeps one attempt's in-flight server-side state from leaking
// into a later attempt if the first is abandoned mid-flight. Release must be
// called on every exit path; it is idempotent.
type channelBinding struct {
	conn     Connection
	session  *session.Client
	released bool
}

// bindChannel selects a server, checks out a connection, and forks the
// operation's session. On failure nothing is leaked.
func (op Operation) bindChannel(ctx context.Context) (*channelBinding, error) {
	selector := op.Selector
	if selector == nil {
		selector = description.WriteSelector()
	}

	srvr, err := op.Deployment.SelectServer(ctx, selector)
	if err != nil {
		return nil, err
	}

	conn, err := srvr.Connection(ctx)
	if err != nil {
		return nil, err
	}

	cb := &channelBinding{conn: conn}
	if op.Client != nil {
		fork, err := op.Client.Fork()
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		cb.session = fork
	}
	return cb, nil
}

// Release ends the session fork and returns the connection to its source.
func (cb *channelBinding) Release() {
	if cb == nil || cb.released {
		return
	}
	cb.released = true
	if cb.session != nil {
		cb.session.EndSession()
	}
	if cb.conn != nil {
		_ = cb.conn.Close()
	}
}
