// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package cborcodec implements the driver.Codec interface using CBOR as the
// document representation. Documents are encoded as a tagged array of
// alternating keys and values rather than a CBOR map, so element order is
// preserved bit-for-bit; the first element of a command must stay the command
// name, and a retried write must resend identical bytes.
package cborcodec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/stranddb/strand-go-driver/x/docx"
)

// Tag numbers used by the StrandDB wire format. They live in the
// first-come-first-served tag space.
const (
	documentTag  = 40701
	binaryTag    = 40702
	timestampTag = 40703
)

// UUIDSubtype is the binary subtype a UUID is encoded as on the wire.
const UUIDSubtype byte = 4

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding: a retried write must produce the same
	// bytes for the same command document.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Codec is the CBOR implementation of driver.Codec. The zero value is ready to
// use.
type Codec struct{}

// MarshalDocument appends the encoded form of doc to dst.
func (Codec) MarshalDocument(dst []byte, doc docx.Doc) ([]byte, error) {
	encoded, err := encodeDoc(doc)
	if err != nil {
		return dst, err
	}
	b, err := encMode.Marshal(encoded)
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}

// UnmarshalDocument decodes a single document from data.
func (Codec) UnmarshalDocument(data []byte) (docx.Doc, error) {
	var raw interface{}
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	tag, ok := raw.(cbor.Tag)
	if !ok || tag.Number != documentTag {
		return nil, errors.New("root value is not a document")
	}
	return decodeDoc(tag.Content)
}

func encodeDoc(doc docx.Doc) (cbor.Tag, error) {
	items := make([]interface{}, 0, 2*len(doc))
	for _, elem := range doc {
		val, err := encodeVal(elem.Value)
		if err != nil {
			return cbor.Tag{}, fmt.Errorf("field %q: %w", elem.Key, err)
		}
		items = append(items, elem.Key, val)
	}
	return cbor.Tag{Number: documentTag, Content: items}, nil
}

func encodeVal(val docx.Val) (interface{}, error) {
	switch val.Type() {
	case docx.TypeNull:
		return nil, nil
	case docx.TypeString:
		str, _ := val.StringValueOK()
		return str, nil
	case docx.TypeInt64:
		i64, _ := val.Int64OK()
		return i64, nil
	case docx.TypeDouble:
		f64, _ := val.DoubleOK()
		return f64, nil
	case docx.TypeBoolean:
		b, _ := val.BooleanOK()
		return b, nil
	case docx.TypeDocument:
		doc, _ := val.DocumentOK()
		return encodeDoc(doc)
	case docx.TypeArray:
		arr, _ := val.ArrayOK()
		items := make([]interface{}, 0, len(arr))
		for _, item := range arr {
			encoded, err := encodeVal(item)
			if err != nil {
				return nil, err
			}
			items = append(items, encoded)
		}
		return items, nil
	case docx.TypeBinary:
		subtype, data, _ := val.BinaryOK()
		return cbor.Tag{Number: binaryTag, Content: []interface{}{uint64(subtype), data}}, nil
	case docx.TypeUUID:
		id, _ := val.UUIDOK()
		return cbor.Tag{Number: binaryTag, Content: []interface{}{uint64(UUIDSubtype), id[:]}}, nil
	case docx.TypeTimestamp:
		t, i, _ := val.TimestampOK()
		return cbor.Tag{Number: timestampTag, Content: []interface{}{uint64(t), uint64(i)}}, nil
	default:
		return nil, fmt.Errorf("cannot encode value of type %s", val.Type())
	}
}

func decodeDoc(content interface{}) (docx.Doc, error) {
	items, ok := content.([]interface{})
	if !ok {
		return nil, errors.New("document content is not an array")
	}
	if len(items)%2 != 0 {
		return nil, errors.New("document content has an odd number of items")
	}
	doc := make(docx.Doc, 0, len(items)/2)
	for idx := 0; idx < len(items); idx += 2 {
		key, ok := items[idx].(string)
		if !ok {
			return nil, fmt.Errorf("document key at index %d is not a string", idx)
		}
		val, err := decodeVal(items[idx+1])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		doc = doc.Append(key, val)
	}
	return doc, nil
}

func decodeVal(raw interface{}) (docx.Val, error) {
	switch tt := raw.(type) {
	case nil:
		return docx.Null(), nil
	case string:
		return docx.String(tt), nil
	case int64:
		return docx.Int64(tt), nil
	case uint64:
		return docx.Int64(int64(tt)), nil
	case float64:
		return docx.Double(tt), nil
	case bool:
		return docx.Boolean(tt), nil
	case []byte:
		return docx.Binary(0, tt), nil
	case []interface{}:
		arr := make(docx.Arr, 0, len(tt))
		for _, item := range tt {
			val, err := decodeVal(item)
			if err != nil {
				return docx.Val{}, err
			}
			arr = append(arr, val)
		}
		return docx.Array(arr), nil
	case cbor.Tag:
		return decodeTag(tt)
	default:
		return docx.Val{}, fmt.Errorf("cannot decode value of type %T", raw)
	}
}

func decodeTag(tag cbor.Tag) (docx.Val, error) {
	switch tag.Number {
	case documentTag:
		doc, err := decodeDoc(tag.Content)
		if err != nil {
			return docx.Val{}, err
		}
		return docx.Document(doc), nil
	case binaryTag:
		items, ok := tag.Content.([]interface{})
		if !ok || len(items) != 2 {
			return docx.Val{}, errors.New("malformed binary value")
		}
		subtype, ok := items[0].(uint64)
		if !ok {
			return docx.Val{}, errors.New("malformed binary subtype")
		}
		data, ok := items[1].([]byte)
		if !ok {
			return docx.Val{}, errors.New("malformed binary data")
		}
		return docx.Binary(byte(subtype), data), nil
	case timestampTag:
		items, ok := tag.Content.([]interface{})
		if !ok || len(items) != 2 {
			return docx.Val{}, errors.New("malformed timestamp value")
		}
		t, tok := items[0].(uint64)
		i, iok := items[1].(uint64)
		if !tok || !iok {
			return docx.Val{}, errors.New("malformed timestamp components")
		}
		return docx.Timestamp(uint32(t), uint32(i)), nil
	default:
		return docx.Val{}, fmt.Errorf("unknown tag number %d", tag.Number)
	}
}
