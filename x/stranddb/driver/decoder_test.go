// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/stranddb/strand-go-driver/x/docx"
)

func TestResponseDecoderStrings(t *testing.T) {
	t.Run("default is strict UTF-8", func(t *testing.T) {
		rd := ResponseDecoder{Codec: testCodec}
		_, err := rd.convertDocument(docx.Doc{}.Append("msg", docx.String("caf\xe9")))
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
	})
	t.Run("valid UTF-8 passes unchanged", func(t *testing.T) {
		rd := ResponseDecoder{Codec: testCodec}
		doc, err := rd.convertDocument(docx.Doc{}.Append("msg", docx.String("café")))
		noerr(t, err)
		assert.Equal(t, "café", doc.Lookup("msg").StringValue())
	})
	t.Run("configured encoding is applied", func(t *testing.T) {
		rd := ResponseDecoder{
			Codec:    testCodec,
			Settings: DecodeSettings{Encoding: charmap.ISO8859_1},
		}
		doc, err := rd.convertDocument(docx.Doc{}.Append("msg", docx.String("caf\xe9")))
		noerr(t, err)
		assert.Equal(t, "café", doc.Lookup("msg").StringValue())
	})
	t.Run("nested strings are checked", func(t *testing.T) {
		rd := ResponseDecoder{Codec: testCodec}
		_, err := rd.convertDocument(docx.Doc{}.Append("outer", docx.Document(
			docx.Doc{}.Append("items", docx.Array(docx.Arr{docx.String("\xff\xfe")})),
		)))
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
	})
}

func TestResponseDecoderUUIDs(t *testing.T) {
	raw := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	t.Run("standard subtype decodes in both modes", func(t *testing.T) {
		want, err := uuid.FromBytes(raw)
		noerr(t, err)
		for _, mode := range []UUIDMode{UUIDStandard, UUIDLegacy} {
			rd := ResponseDecoder{Codec: testCodec, Settings: DecodeSettings{UUIDMode: mode}}
			doc, err := rd.convertDocument(docx.Doc{}.Append("id", docx.Binary(UUIDSubtype, raw)))
			noerr(t, err)
			got, ok := doc.Lookup("id").UUIDOK()
			require.True(t, ok)
			assert.Equal(t, want, got)
		}
	})
	t.Run("legacy subtype stays binary in standard mode", func(t *testing.T) {
		rd := ResponseDecoder{Codec: testCodec}
		doc, err := rd.convertDocument(docx.Doc{}.Append("id", docx.Binary(UUIDLegacySubtype, raw)))
		noerr(t, err)
		subtype, data, ok := doc.Lookup("id").BinaryOK()
		require.True(t, ok)
		assert.Equal(t, UUIDLegacySubtype, subtype)
		assert.Equal(t, raw, data)
	})
	t.Run("legacy subtype is byte swapped in legacy mode", func(t *testing.T) {
		rd := ResponseDecoder{Codec: testCodec, Settings: DecodeSettings{UUIDMode: UUIDLegacy}}
		doc, err := rd.convertDocument(docx.Doc{}.Append("id", docx.Binary(UUIDLegacySubtype, raw)))
		noerr(t, err)
		got, ok := doc.Lookup("id").UUIDOK()
		require.True(t, ok)
		assert.Equal(t, uuid.MustParse("03020100-0504-0706-0809-0a0b0c0d0e0f"), got)
	})
	t.Run("same bytes decode differently per mode", func(t *testing.T) {
		standard := ResponseDecoder{Codec: testCodec}
		legacy := ResponseDecoder{Codec: testCodec, Settings: DecodeSettings{UUIDMode: UUIDLegacy}}
		in := docx.Doc{}.Append("id", docx.Binary(UUIDLegacySubtype, raw))
		doc1, err := standard.convertDocument(in)
		noerr(t, err)
		doc2, err := legacy.convertDocument(in)
		noerr(t, err)
		assert.False(t, doc1.Equal(doc2))
	})
	t.Run("wrong length rejected", func(t *testing.T) {
		rd := ResponseDecoder{Codec: testCodec}
		_, err := rd.convertDocument(docx.Doc{}.Append("id", docx.Binary(UUIDSubtype, []byte{1, 2, 3})))
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
	})
}

func TestResponseDecoderDecode(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		rd := ResponseDecoder{Codec: testCodec}
		_, err := rd.Decode([]byte{0xff, 0x00})
		var respErr ResponseError
		require.ErrorAs(t, err, &respErr)
	})
	t.Run("round trip", func(t *testing.T) {
		in := docx.Doc{}.
			Append("ok", docx.Int64(1)).
			Append("value", docx.Document(docx.Doc{}.Append("x", docx.Double(1.5))))
		body, err := testCodec.MarshalDocument(nil, in)
		noerr(t, err)
		rd := ResponseDecoder{Codec: testCodec}
		out, err := rd.Decode(body)
		noerr(t, err)
		assert.True(t, in.Equal(out))
	})
	t.Run("missing codec", func(t *testing.T) {
		_, err := ResponseDecoder{}.Decode([]byte{0x00})
		require.Equal(t, InvalidOperationError{MissingField: "Codec"}, err)
	})
}
