// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/stranddb/strand-go-driver/x/stranddb/driver/wiremessage"
)

// CompressionOpts holds settings for how to compress a payload.
type CompressionOpts struct {
	Compressor       wiremessage.CompressorID
	ZlibLevel        int
	ZstdLevel        int
	UncompressedSize int32
}

// MaxMessageSize is the maximum wire message size supported by StrandDB.
const MaxMessageSize = 16 * 1024 * 1024

// CompressPayload takes a byte slice and compresses it according to the options passed.
func CompressPayload(in []byte, opts CompressionOpts) ([]byte, error) {
	switch opts.Compressor {
	case wiremessage.CompressorNoOp:
		return in, nil
	case wiremessage.CompressorSnappy:
		return snappy.Encode(nil, in), nil
	case wiremessage.CompressorZLib:
		var b bytes.Buffer
		w, err := zlib.NewWriterLevel(&b, opts.ZlibLevel)
		if err != nil {
			return nil, err
		}
		_, err = w.Write(in)
		if err != nil {
			return nil, err
		}
		err = w.Close()
		if err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case wiremessage.CompressorZstd:
		var b bytes.Buffer
		w, err := zstd.NewWriter(&b, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.ZstdLevel)))
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(w, bytes.NewBuffer(in))
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		err = w.Close()
		if err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compressor ID %v", opts.Compressor)
	}
}

// DecompressPayload takes a byte slice that has been compressed and undoes it
// according to the options passed.
func DecompressPayload(in []byte, opts CompressionOpts) ([]byte, error) {
	if opts.Compressor == wiremessage.CompressorNoOp {
		return in, nil
	}
	// The uncompressed size comes off the wire unauthenticated; it bounds an
	// allocation, so it must be sane before any decompressor runs.
	if opts.UncompressedSize < 0 || opts.UncompressedSize > MaxMessageSize {
		return nil, NewCommandResponseError(
			fmt.Sprintf("invalid uncompressed size %d", opts.UncompressedSize), nil)
	}
	switch opts.Compressor {
	case wiremessage.CompressorSnappy:
		l, err := snappy.DecodedLen(in)
		if err != nil {
			return nil, NewCommandResponseError("decoding snappy length", err)
		}
		if l > int(opts.UncompressedSize) {
			return nil, fmt.Errorf("decompressed size %v exceeds message size %v", l, opts.UncompressedSize)
		}
		out := make([]byte, opts.UncompressedSize)
		return snappy.Decode(out, in)
	case wiremessage.CompressorZLib:
		r, err := zlib.NewReader(bytes.NewReader(in))
		if err != nil {
			return nil, err
		}
		out := make([]byte, opts.UncompressedSize)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, err
		}
		if err := r.Close(); err != nil {
			return nil, err
		}
		return out, nil
	case wiremessage.CompressorZstd:
		r, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		out := make([]byte, 0, opts.UncompressedSize)
		return r.DecodeAll(in, out)
	default:
		return nil, fmt.Errorf("unknown compressor ID %v", opts.Compressor)
	}
}
