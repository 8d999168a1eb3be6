// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stranddb/strand-go-driver/x/docx"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/wiremessage"
)

func TestCompression(t *testing.T) {
	compressors := []wiremessage.CompressorID{
		wiremessage.CompressorNoOp,
		wiremessage.CompressorSnappy,
		wiremessage.CompressorZLib,
		wiremessage.CompressorZstd,
	}

	payload := bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz"), 100)
	for _, compressor := range compressors {
		t.Run(compressor.String(), func(t *testing.T) {
			opts := CompressionOpts{
				Compressor:       compressor,
				ZlibLevel:        6,
				ZstdLevel:        6,
				UncompressedSize: int32(len(payload)),
			}
			compressed, err := CompressPayload(payload, opts)
			noerr(t, err)
			decompressed, err := DecompressPayload(compressed, opts)
			noerr(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}

	t.Run("invalid uncompressed size", func(t *testing.T) {
		for _, compressor := range []wiremessage.CompressorID{
			wiremessage.CompressorSnappy,
			wiremessage.CompressorZLib,
			wiremessage.CompressorZstd,
		} {
			for _, size := range []int32{-1, MaxMessageSize + 1} {
				_, err := DecompressPayload([]byte{1, 2, 3}, CompressionOpts{
					Compressor:       compressor,
					UncompressedSize: size,
				})
				var respErr ResponseError
				assert.ErrorAs(t, err, &respErr, "%s size %d", compressor, size)
			}
		}
	})

	t.Run("unknown compressor", func(t *testing.T) {
		opts := CompressionOpts{Compressor: wiremessage.CompressorID(42)}
		_, err := CompressPayload(payload, opts)
		assert.Error(t, err)
		_, err = DecompressPayload(payload, opts)
		assert.Error(t, err)
	})
}

func TestCompressWireMessageRoundTrip(t *testing.T) {
	op := Operation{
		Codec:       testCodec,
		Compression: &CompressionOpts{Compressor: wiremessage.CompressorSnappy},
	}
	cmd := docx.Doc{}.Append("insert", docx.String("coll"))

	idx, wm := wiremessage.AppendHeaderStart(nil, wiremessage.NextRequestID(), 0, wiremessage.OpCommand)
	wm, err := testCodec.MarshalDocument(wm, cmd)
	noerr(t, err)
	wm = wiremessage.UpdateLength(wm, idx, int32(len(wm)))

	compressed, err := op.compressWireMessage(wm)
	noerr(t, err)

	_, _, _, opcode, rem, ok := wiremessage.ReadHeader(compressed)
	assert.True(t, ok)
	assert.Equal(t, wiremessage.OpCompressed, opcode)

	origcode, body, err := op.decompressWireMessage(rem)
	noerr(t, err)
	assert.Equal(t, wiremessage.OpCommand, origcode)
	assert.Equal(t, wm[16:], body)
}
