// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package drivertest provides test implementations of the driver's connection
// and deployment interfaces.
package drivertest

import (
	"context"
	"sync/atomic"

	"github.com/stranddb/strand-go-driver/x/docx"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/address"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/description"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/wiremessage"
)

// ChannelConn is a connection implementation that uses channels to buffer
// wire messages written to it and to provide the wire messages it reads.
type ChannelConn struct {
	WriteErr error
	Written  chan []byte
	ReadResp chan []byte
	ReadErr  chan error
	Desc     description.Server
	Closes   int64
}

// WriteWireMessage implements the driver.Connection interface.
func (c *ChannelConn) WriteWireMessage(ctx context.Context, wm []byte) error {
	// The written message is copied because the caller recycles its buffer
	// after the attempt completes.
	select {
	case c.Written <- append([]byte(nil), wm...):
	default:
		c.WriteErr = errWriteBufferFull
	}
	return c.WriteErr
}

// ReadWireMessage implements the driver.Connection interface.
func (c *ChannelConn) ReadWireMessage(ctx context.Context, dst []byte) ([]byte, error) {
	var wm []byte
	var err error
	select {
	case wm = <-c.ReadResp:
	case err = <-c.ReadErr:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return append(dst, wm...), err
}

// Description implements the driver.Connection interface.
func (c *ChannelConn) Description() description.Server { return c.Desc }

// Close implements the driver.Connection interface. It records the number of
// times it was called.
func (c *ChannelConn) Close() error {
	atomic.AddInt64(&c.Closes, 1)
	return nil
}

// ID implements the driver.Connection interface.
func (c *ChannelConn) ID() string { return "<mock_connection>" }

// Address implements the driver.Connection interface.
func (c *ChannelConn) Address() address.Address { return address.Address("0.0.0.0") }

type channelConnError string

func (e channelConnError) Error() string { return string(e) }

const errWriteBufferFull channelConnError = "could not write wiremessage to written channel"

// MakeReply frames body as a complete reply wire message using the given
// marshaler. It is a test helper for loading ChannelConn.ReadResp.
func MakeReply(marshal func(dst []byte, doc docx.Doc) ([]byte, error), doc docx.Doc) ([]byte, error) {
	idx, wm := wiremessage.AppendHeaderStart(nil, wiremessage.NextRequestID(), 0, wiremessage.OpReply)
	wm, err := marshal(wm, doc)
	if err != nil {
		return nil, err
	}
	return wiremessage.UpdateLength(wm, idx, int32(len(wm[idx:]))), nil
}
