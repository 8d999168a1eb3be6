// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wiremessage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	body := []byte("body bytes")
	idx, wm := AppendHeaderStart(nil, 42, 7, OpCommand)
	wm = append(wm, body...)
	wm = UpdateLength(wm, idx, int32(len(wm)))

	length, requestID, responseTo, opcode, rem, ok := ReadHeader(wm)
	require.True(t, ok)
	assert.Equal(t, int32(len(wm)), length)
	assert.Equal(t, int32(42), requestID)
	assert.Equal(t, int32(7), responseTo)
	assert.Equal(t, OpCommand, opcode)
	assert.Equal(t, body, rem)
}

func TestReadHeaderShortBuffer(t *testing.T) {
	_, _, _, _, _, ok := ReadHeader(make([]byte, 15))
	assert.False(t, ok)
}

func TestCompressedFields(t *testing.T) {
	var wm []byte
	wm = AppendCompressedOriginalOpCode(wm, OpReply)
	wm = AppendCompressedUncompressedSize(wm, 512)
	wm = AppendCompressedCompressorID(wm, CompressorZstd)
	wm = AppendCompressedCompressedMessage(wm, []byte{1, 2, 3})

	opcode, rem, ok := ReadCompressedOriginalOpCode(wm)
	require.True(t, ok)
	assert.Equal(t, OpReply, opcode)

	size, rem, ok := ReadCompressedUncompressedSize(rem)
	require.True(t, ok)
	assert.Equal(t, int32(512), size)

	id, rem, ok := ReadCompressedCompressorID(rem)
	require.True(t, ok)
	assert.Equal(t, CompressorZstd, id)
	assert.Equal(t, []byte{1, 2, 3}, rem)
}

func TestNextRequestID(t *testing.T) {
	first := NextRequestID()
	second := NextRequestID()
	assert.NotEqual(t, first, second)
}
