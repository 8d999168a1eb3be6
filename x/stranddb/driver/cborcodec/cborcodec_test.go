// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package cborcodec

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stranddb/strand-go-driver/x/docx"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := Codec{}
	in := docx.Doc{}.
		Append("findAndModify", docx.String("coll")).
		Append("query", docx.Document(docx.Doc{}.Append("_id", docx.Int64(1)))).
		Append("new", docx.Boolean(false)).
		Append("weights", docx.Array(docx.Arr{docx.Double(0.5), docx.Null()})).
		Append("payload", docx.Binary(0, []byte{0xde, 0xad})).
		Append("ts", docx.Timestamp(100, 7))

	b, err := codec.MarshalDocument(nil, in)
	require.NoError(t, err)
	out, err := codec.UnmarshalDocument(b)
	require.NoError(t, err)
	assert.True(t, in.Equal(out), "expected %v, got %v", in, out)
}

func TestCodecOrderPreserved(t *testing.T) {
	codec := Codec{}
	in := docx.Doc{}.
		Append("zebra", docx.Int64(1)).
		Append("apple", docx.Int64(2)).
		Append("mango", docx.Int64(3))

	b, err := codec.MarshalDocument(nil, in)
	require.NoError(t, err)
	out, err := codec.UnmarshalDocument(b)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, "zebra", out[0].Key)
	assert.Equal(t, "apple", out[1].Key)
	assert.Equal(t, "mango", out[2].Key)
}

func TestCodecDeterministic(t *testing.T) {
	codec := Codec{}
	doc := docx.Doc{}.
		Append("insert", docx.String("coll")).
		Append("documents", docx.Array(docx.Arr{docx.Document(
			docx.Doc{}.Append("x", docx.Double(2.5)).Append("y", docx.Int64(-7)),
		)}))

	b1, err := codec.MarshalDocument(nil, doc)
	require.NoError(t, err)
	b2, err := codec.MarshalDocument(nil, doc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(b1, b2), "marshaling the same document twice must produce identical bytes")
}

func TestCodecAppendsToDst(t *testing.T) {
	codec := Codec{}
	prefix := []byte{1, 2, 3, 4}
	b, err := codec.MarshalDocument(prefix, docx.Doc{}.Append("a", docx.Int64(1)))
	require.NoError(t, err)
	assert.Equal(t, prefix, b[:4])
}

func TestCodecUUID(t *testing.T) {
	codec := Codec{}
	id := uuid.New()
	b, err := codec.MarshalDocument(nil, docx.Doc{}.Append("id", docx.UUID(id)))
	require.NoError(t, err)
	out, err := codec.UnmarshalDocument(b)
	require.NoError(t, err)

	// UUIDs travel as subtype 4 binary; interpretation happens at the decode
	// settings layer, not in the codec.
	subtype, data, ok := out.Lookup("id").BinaryOK()
	require.True(t, ok)
	assert.Equal(t, UUIDSubtype, subtype)
	assert.Equal(t, id[:], data)
}

func TestCodecMalformedInput(t *testing.T) {
	codec := Codec{}
	t.Run("not cbor", func(t *testing.T) {
		_, err := codec.UnmarshalDocument([]byte{0xff, 0x00, 0x01})
		assert.Error(t, err)
	})
	t.Run("untagged root", func(t *testing.T) {
		_, err := codec.UnmarshalDocument([]byte{0x80}) // plain empty array
		assert.Error(t, err)
	})
}
