// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package docx provides an ordered document representation used to build
// commands for and read replies from a StrandDB server. A Doc preserves the
// order of its elements, which matters on the wire: the first element of a
// command document must be the command name.
package docx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrElementNotFound indicates that an Elem for the given key could not be found.
var ErrElementNotFound = errors.New("element not found")

// Type identifies the kind of value stored in a Val.
type Type byte

// These constants are the valid types for a Val.
// The zero Type is invalid, which lets the zero Val be distinguished from an
// explicit null.
const (
	TypeNull Type = iota + 1
	TypeString
	TypeInt64
	TypeDouble
	TypeBoolean
	TypeDocument
	TypeArray
	TypeBinary
	TypeUUID
	TypeTimestamp
)

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeString:
		return "string"
	case TypeInt64:
		return "int64"
	case TypeDouble:
		return "double"
	case TypeBoolean:
		return "boolean"
	case TypeDocument:
		return "document"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeUUID:
		return "uuid"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "invalid"
	}
}

// Doc is an ordered document. It is not safe for concurrent mutation.
type Doc []Elem

// Elem is a key/value pair inside a Doc.
type Elem struct {
	Key   string
	Value Val
}

// Arr is an ordered sequence of values.
type Arr []Val

// Append adds an element to the end of d, returning the updated Doc.
func (d Doc) Append(key string, val Val) Doc {
	return append(d, Elem{Key: key, Value: val})
}

// Lookup searches the document, potentially recursively, for the given key.
// If there are multiple keys provided, each key except for the last must be a
// document. A zero Val is returned when the key cannot be found.
func (d Doc) Lookup(key ...string) Val {
	val, err := d.LookupErr(key...)
	if err != nil {
		return Val{}
	}
	return val
}

// LookupErr behaves the same as Lookup except it returns ErrElementNotFound
// when the key cannot be found.
func (d Doc) LookupErr(key ...string) (Val, error) {
	if len(key) == 0 {
		return Val{}, ErrElementNotFound
	}
	for _, elem := range d {
		if elem.Key != key[0] {
			continue
		}
		if len(key) == 1 {
			return elem.Value, nil
		}
		sub, ok := elem.Value.DocumentOK()
		if !ok {
			return Val{}, ErrElementNotFound
		}
		return sub.LookupErr(key[1:]...)
	}
	return Val{}, ErrElementNotFound
}

// Copy returns a shallow copy of the document. The elements themselves are
// value types, so mutating an element of the copy does not alter the original.
func (d Doc) Copy() Doc {
	cp := make(Doc, len(d))
	copy(cp, d)
	return cp
}

// Equal compares this document to another, returning true if they are equal.
func (d Doc) Equal(d2 Doc) bool {
	if len(d) != len(d2) {
		return false
	}
	for idx := range d {
		if d[idx].Key != d2[idx].Key || !d[idx].Value.Equal(d2[idx].Value) {
			return false
		}
	}
	return true
}

// String implements the fmt.Stringer interface.
func (d Doc) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for idx, elem := range d {
		if idx > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: %s", elem.Key, elem.Value)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Val is a value in a Doc or Arr.
type Val struct {
	t Type

	boolv bool
	i64   int64
	f64   float64
	str   string
	doc   Doc
	arr   Arr
	data  []byte
	sub   byte
	uid   uuid.UUID
	tst   uint32
	tsi   uint32
}

// Null returns a null value.
func Null() Val { return Val{t: TypeNull} }

// String returns a string value.
func String(s string) Val { return Val{t: TypeString, str: s} }

// Int64 returns an integer value.
func Int64(i int64) Val { return Val{t: TypeInt64, i64: i} }

// Double returns a double value.
func Double(f float64) Val { return Val{t: TypeDouble, f64: f} }

// Boolean returns a boolean value.
func Boolean(b bool) Val { return Val{t: TypeBoolean, boolv: b} }

// Document returns a document value.
func Document(d Doc) Val { return Val{t: TypeDocument, doc: d} }

// Array returns an array value.
func Array(a Arr) Val { return Val{t: TypeArray, arr: a} }

// Binary returns a binary value with the provided subtype.
func Binary(subtype byte, data []byte) Val {
	return Val{t: TypeBinary, sub: subtype, data: data}
}

// UUID returns a uuid value.
func UUID(u uuid.UUID) Val { return Val{t: TypeUUID, uid: u} }

// Timestamp returns a timestamp value.
func Timestamp(t, i uint32) Val { return Val{t: TypeTimestamp, tst: t, tsi: i} }

// Type returns this value's type.
func (v Val) Type() Type { return v.t }

// IsZero returns whether this value is zero valued, which is distinct from a
// null value.
func (v Val) IsZero() bool { return v.t == Type(0) }

// StringValue returns the string, panicking if the value is not a string.
func (v Val) StringValue() string {
	str, ok := v.StringValueOK()
	if !ok {
		panic(ElementTypeError{Method: "docx.Val.StringValue", Type: v.t})
	}
	return str
}

// StringValueOK returns the string and true if the value is a string.
func (v Val) StringValueOK() (string, bool) { return v.str, v.t == TypeString }

// Int64OK returns the int64 and true if the value is an int64.
func (v Val) Int64OK() (int64, bool) { return v.i64, v.t == TypeInt64 }

// DoubleOK returns the double and true if the value is a double.
func (v Val) DoubleOK() (float64, bool) { return v.f64, v.t == TypeDouble }

// BooleanOK returns the boolean and true if the value is a boolean.
func (v Val) BooleanOK() (bool, bool) { return v.boolv, v.t == TypeBoolean }

// DocumentOK returns the document and true if the value is a document.
func (v Val) DocumentOK() (Doc, bool) { return v.doc, v.t == TypeDocument }

// Document returns the document, panicking if the value is not a document.
func (v Val) Document() Doc {
	doc, ok := v.DocumentOK()
	if !ok {
		panic(ElementTypeError{Method: "docx.Val.Document", Type: v.t})
	}
	return doc
}

// ArrayOK returns the array and true if the value is an array.
func (v Val) ArrayOK() (Arr, bool) { return v.arr, v.t == TypeArray }

// BinaryOK returns the subtype, data, and true if the value is binary.
func (v Val) BinaryOK() (byte, []byte, bool) { return v.sub, v.data, v.t == TypeBinary }

// UUIDOK returns the uuid and true if the value is a uuid.
func (v Val) UUIDOK() (uuid.UUID, bool) { return v.uid, v.t == TypeUUID }

// TimestampOK returns the timestamp components and true if the value is a
// timestamp.
func (v Val) TimestampOK() (uint32, uint32, bool) {
	return v.tst, v.tsi, v.t == TypeTimestamp
}

// Equal compares this value to another, returning true if they are equal.
func (v Val) Equal(v2 Val) bool {
	if v.t != v2.t {
		return false
	}
	switch v.t {
	case TypeNull:
		return true
	case TypeString:
		return v.str == v2.str
	case TypeInt64:
		return v.i64 == v2.i64
	case TypeDouble:
		return v.f64 == v2.f64
	case TypeBoolean:
		return v.boolv == v2.boolv
	case TypeDocument:
		return v.doc.Equal(v2.doc)
	case TypeArray:
		if len(v.arr) != len(v2.arr) {
			return false
		}
		for idx := range v.arr {
			if !v.arr[idx].Equal(v2.arr[idx]) {
				return false
			}
		}
		return true
	case TypeBinary:
		if v.sub != v2.sub || len(v.data) != len(v2.data) {
			return false
		}
		for idx := range v.data {
			if v.data[idx] != v2.data[idx] {
				return false
			}
		}
		return true
	case TypeUUID:
		return v.uid == v2.uid
	case TypeTimestamp:
		return v.tst == v2.tst && v.tsi == v2.tsi
	default:
		return false
	}
}

// String implements the fmt.Stringer interface.
func (v Val) String() string {
	switch v.t {
	case TypeNull:
		return "null"
	case TypeString:
		return fmt.Sprintf("%q", v.str)
	case TypeInt64:
		return fmt.Sprintf("%d", v.i64)
	case TypeDouble:
		return fmt.Sprintf("%g", v.f64)
	case TypeBoolean:
		return fmt.Sprintf("%t", v.boolv)
	case TypeDocument:
		return v.doc.String()
	case TypeArray:
		elems := make([]string, 0, len(v.arr))
		for _, val := range v.arr {
			elems = append(elems, val.String())
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case TypeBinary:
		return fmt.Sprintf("binary(%d, %x)", v.sub, v.data)
	case TypeUUID:
		return fmt.Sprintf("uuid(%s)", v.uid)
	case TypeTimestamp:
		return fmt.Sprintf("timestamp(%d, %d)", v.tst, v.tsi)
	default:
		return "invalid"
	}
}

// ElementTypeError indicates that a method to obtain a value was called on a
// Val holding a different type.
type ElementTypeError struct {
	Method string
	Type   Type
}

// Error implements the error interface.
func (ete ElementTypeError) Error() string {
	return "Call of " + ete.Method + " on " + ete.Type.String() + " type"
}
