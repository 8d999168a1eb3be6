// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package session implements the client and server sessions the execution
// engine binds commands to. A client session can be forked; the fork shares
// the underlying server session (and therefore the session ID and transaction
// number) but has an independent lifetime, so one attempt of an operation can
// be bound to a fork and discarded without affecting the parent.
package session

import (
	"errors"
	"sync/atomic"

	"github.com/stranddb/strand-go-driver/x/docx"
)

// ErrSessionEnded is returned when a command is bound to a session that has
// already been ended.
var ErrSessionEnded = errors.New("ended session was used")

// Type describes the type of the session.
type Type uint8

// These constants are the valid types for a client session.
const (
	Explicit Type = iota
	Implicit
)

// Client is a session for clients to run commands.
type Client struct {
	ClusterTime docx.Doc
	SessionType Type
	RetryWrite  bool
	Terminated  bool

	pool          *Pool
	serverSession *Server
	root          *Client
	forks         int32
}

// NewClientSession creates a Client by checking a server session out of the
// provided pool.
func NewClientSession(pool *Pool, sessionType Type) (*Client, error) {
	servSess, err := pool.GetSession()
	if err != nil {
		return nil, err
	}

	return &Client{
		SessionType:   sessionType,
		pool:          pool,
		serverSession: servSess,
	}, nil
}

// SessionID returns the id document of the underlying server session.
func (c *Client) SessionID() docx.Doc { return c.serverSession.SessionID }

// TxnNumber returns the transaction number currently allocated on the
// underlying server session.
func (c *Client) TxnNumber() int64 { return c.serverSession.TxnNumber }

// IncrementTxnNumber increments the transaction number. Must be called before
// the first attempt of each retryable write so the server can deduplicate a
// retried attempt of the same logical write.
func (c *Client) IncrementTxnNumber() { c.serverSession.TxnNumber++ }

// Fork returns a session that shares this session's server session but has an
// independent lifetime. Ending the fork never returns the server session to
// the pool.
func (c *Client) Fork() (*Client, error) {
	if c.Terminated {
		return nil, ErrSessionEnded
	}
	root := c.root
	if root == nil {
		root = c
	}
	atomic.AddInt32(&root.forks, 1)
	return &Client{
		ClusterTime:   c.ClusterTime,
		SessionType:   c.SessionType,
		RetryWrite:    c.RetryWrite,
		pool:          c.pool,
		serverSession: c.serverSession,
		root:          root,
	}, nil
}

// ActiveForks returns the number of outstanding forks of this session. It is
// only meaningful on a root session.
func (c *Client) ActiveForks() int { return int(atomic.LoadInt32(&c.forks)) }

// UpdateUseTime marks the underlying server session as used. Must be called
// whenever this session is used to send a command to the server.
func (c *Client) UpdateUseTime() error {
	if c.Terminated {
		return ErrSessionEnded
	}
	c.serverSession.updateUseTime()
	return nil
}

// AdvanceClusterTime updates the session's cluster time. The update is applied
// to the root session so forks taken later observe it.
func (c *Client) AdvanceClusterTime(clusterTime docx.Doc) {
	target := c
	if c.root != nil {
		target = c.root
	}
	target.ClusterTime = MaxClusterTime(target.ClusterTime, clusterTime)
}

// EndSession ends the session. Ending a root session returns the server
// session to the pool; ending a fork only releases the fork.
func (c *Client) EndSession() {
	if c.Terminated {
		return
	}
	c.Terminated = true

	if c.root != nil {
		atomic.AddInt32(&c.root.forks, -1)
		return
	}
	c.pool.ReturnSession(c.serverSession)
}

func clusterTimeComponents(clusterTime docx.Doc) (uint32, uint32) {
	val, err := clusterTime.LookupErr("$clusterTime", "clusterTime")
	if err != nil {
		return 0, 0
	}
	t, i, ok := val.TimestampOK()
	if !ok {
		return 0, 0
	}
	return t, i
}

// MaxClusterTime compares 2 clusterTime documents and returns the document
// representing the highest cluster time.
func MaxClusterTime(ct1, ct2 docx.Doc) docx.Doc {
	epoch1, ord1 := clusterTimeComponents(ct1)
	epoch2, ord2 := clusterTimeComponents(ct2)

	switch {
	case epoch1 > epoch2:
		return ct1
	case epoch1 < epoch2:
		return ct2
	case ord1 > ord2:
		return ct1
	case ord1 < ord2:
		return ct2
	}
	return ct1
}
