// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"github.com/stranddb/strand-go-driver/x/docx"
)

// Binary subtypes for identifiers.
const (
	// UUIDSubtype is the binary subtype a UUID is encoded as.
	UUIDSubtype byte = 4
	// UUIDLegacySubtype is the binary subtype older drivers encoded UUIDs as,
	// with the first three groups stored little-endian.
	UUIDLegacySubtype byte = 3
)

// UUIDMode controls how legacy binary identifiers are decoded.
type UUIDMode uint8

// These are the valid UUID decoding modes.
const (
	// UUIDStandard decodes subtype 4 binary values as UUIDs and leaves legacy
	// subtype 3 values as opaque binary.
	UUIDStandard UUIDMode = iota
	// UUIDLegacy additionally decodes subtype 3 binary values as UUIDs,
	// swapping the stored little-endian groups back to canonical order.
	UUIDLegacy
)

// DecodeSettings configures how raw response bytes are turned into documents.
type DecodeSettings struct {
	// Encoding is the character encoding of strings in the response. A nil
	// Encoding means strict UTF-8: responses containing invalid UTF-8 are
	// rejected.
	Encoding encoding.Encoding

	// UUIDMode selects the binary-identifier compatibility mode. The default
	// is the driver-wide current mode, UUIDStandard.
	UUIDMode UUIDMode
}

// ResponseDecoder turns a raw response body into a document, honoring the
// configured character encoding and binary-identifier representation.
type ResponseDecoder struct {
	Codec    Codec
	Settings DecodeSettings
}

// Decode unmarshals a raw response body. Failure indicates a protocol or
// version mismatch and is never retried.
func (rd ResponseDecoder) Decode(response []byte) (docx.Doc, error) {
	if rd.Codec == nil {
		return nil, InvalidOperationError{MissingField: "Codec"}
	}
	doc, err := rd.Codec.UnmarshalDocument(response)
	if err != nil {
		return nil, NewCommandResponseError("malformed response: invalid document", err)
	}
	return rd.convertDocument(doc)
}

func (rd ResponseDecoder) convertDocument(doc docx.Doc) (docx.Doc, error) {
	out := make(docx.Doc, 0, len(doc))
	for _, elem := range doc {
		val, err := rd.convertValue(elem.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", elem.Key, err)
		}
		out = out.Append(elem.Key, val)
	}
	return out, nil
}

func (rd ResponseDecoder) convertValue(val docx.Val) (docx.Val, error) {
	switch val.Type() {
	case docx.TypeString:
		str, _ := val.StringValueOK()
		decoded, err := rd.decodeString(str)
		if err != nil {
			return docx.Val{}, err
		}
		return docx.String(decoded), nil
	case docx.TypeDocument:
		sub, _ := val.DocumentOK()
		converted, err := rd.convertDocument(sub)
		if err != nil {
			return docx.Val{}, err
		}
		return docx.Document(converted), nil
	case docx.TypeArray:
		arr, _ := val.ArrayOK()
		converted := make(docx.Arr, 0, len(arr))
		for _, item := range arr {
			c, err := rd.convertValue(item)
			if err != nil {
				return docx.Val{}, err
			}
			converted = append(converted, c)
		}
		return docx.Array(converted), nil
	case docx.TypeBinary:
		return rd.convertBinary(val)
	default:
		return val, nil
	}
}

// decodeString applies the configured character encoding. The default is
// strict UTF-8.
func (rd ResponseDecoder) decodeString(raw string) (string, error) {
	if rd.Settings.Encoding == nil {
		if !utf8.ValidString(raw) {
			return "", NewCommandResponseError("response contains invalid UTF-8", nil)
		}
		return raw, nil
	}
	decoded, err := rd.Settings.Encoding.NewDecoder().String(raw)
	if err != nil {
		return "", NewCommandResponseError("response string cannot be decoded", err)
	}
	return decoded, nil
}

func (rd ResponseDecoder) convertBinary(val docx.Val) (docx.Val, error) {
	subtype, data, _ := val.BinaryOK()
	switch subtype {
	case UUIDSubtype:
		if len(data) != 16 {
			return docx.Val{}, NewCommandResponseError("binary identifier must be 16 bytes", nil)
		}
		id, err := uuid.FromBytes(data)
		if err != nil {
			return docx.Val{}, NewCommandResponseError("malformed binary identifier", err)
		}
		return docx.UUID(id), nil
	case UUIDLegacySubtype:
		// The legacy representation only takes effect when the driver-wide
		// compatibility mode demands it; otherwise the value stays binary.
		if rd.Settings.UUIDMode != UUIDLegacy {
			return val, nil
		}
		if len(data) != 16 {
			return docx.Val{}, NewCommandResponseError("binary identifier must be 16 bytes", nil)
		}
		id, err := uuid.FromBytes(legacyUUIDBytes(data))
		if err != nil {
			return docx.Val{}, NewCommandResponseError("malformed binary identifier", err)
		}
		return docx.UUID(id), nil
	default:
		return val, nil
	}
}

// legacyUUIDBytes reorders a legacy little-endian identifier into canonical
// byte order: the 4-2-2 leading groups are each reversed, the trailing 8 bytes
// are unchanged.
func legacyUUIDBytes(data []byte) []byte {
	out := make([]byte, 16)
	out[0], out[1], out[2], out[3] = data[3], data[2], data[1], data[0]
	out[4], out[5] = data[5], data[4]
	out[6], out[7] = data[7], data[6]
	copy(out[8:], data[8:])
	return out
}
