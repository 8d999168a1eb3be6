// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stranddb/strand-go-driver/x/docx"
)

var (
	// ErrNoCommandResponse occurs when the server sent no response document to a command.
	ErrNoCommandResponse = errors.New("no command response document")
	// ErrUnacknowledgedWrite is returned from functions that have anything in common with
	// an unacknowledged write.
	ErrUnacknowledgedWrite = errors.New("unacknowledged write")
)

// Error labels attached by the server or by this driver.
const (
	// NetworkError is an error label for network errors.
	NetworkError = "NetworkError"
	// RetryableWriteError is an error label for retryable write errors.
	RetryableWriteError = "RetryableWriteError"
	// NoWritesPerformed is an error label indicating that no writes were
	// performed for an operation.
	NoWritesPerformed = "NoWritesPerformed"
)

// Server error codes this driver considers retryable for write operations.
var retryableCodes = []int32{11600, 11602, 10107, 13435, 13436, 189, 91, 7, 6, 89, 9001}

// InvalidOperationError is returned from Validate and indicates that a
// required field is missing from an instance of Operation.
type InvalidOperationError struct{ MissingField string }

// Error implements the error interface.
func (err InvalidOperationError) Error() string {
	return "the " + err.MissingField + " field must be set on Operation"
}

// ResponseError is an error parsing the response to a command.
type ResponseError struct {
	Message string
	Wrapped error
}

// NewCommandResponseError creates a ResponseError.
func NewCommandResponseError(msg string, err error) ResponseError {
	return ResponseError{Message: msg, Wrapped: err}
}

// Error implements the error interface.
func (e ResponseError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Wrapped)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e ResponseError) Unwrap() error { return e.Wrapped }

// Error is a command execution error from the database.
type Error struct {
	Code    int32
	Message string
	Labels  []string
	Name    string
	Wrapped error
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%v) %v", e.Name, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error { return e.Wrapped }

// HasErrorLabel returns true if the error contains the specified label.
func (e Error) HasErrorLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Retryable returns true if the error is retryable.
func (e Error) Retryable() bool {
	for _, label := range e.Labels {
		if label == NetworkError || label == RetryableWriteError {
			return true
		}
	}
	for _, code := range retryableCodes {
		if e.Code == code {
			return true
		}
	}
	if strings.Contains(e.Message, "not writable primary") || strings.Contains(e.Message, "node is recovering") {
		return true
	}
	return false
}

// NetworkError returns true if the error occurred while reading from or
// writing to a connection.
func (e Error) NetworkError() bool { return e.HasErrorLabel(NetworkError) }

// WriteError is a non-write concern failure that occurred as a result of a
// write operation.
type WriteError struct {
	Index   int64
	Code    int64
	Message string
}

func (we WriteError) Error() string { return we.Message }

// WriteConcernError is a write concern failure that occurred as a result of a
// write operation.
type WriteConcernError struct {
	Name    string
	Code    int64
	Message string
	Details docx.Doc
}

func (wce WriteConcernError) Error() string {
	if wce.Name != "" {
		return fmt.Sprintf("(%v) %v", wce.Name, wce.Message)
	}
	return wce.Message
}

// Retryable returns true if the write concern error is retryable.
func (wce WriteConcernError) Retryable() bool {
	for _, code := range retryableCodes {
		if wce.Code == int64(code) {
			return true
		}
	}
	return false
}

// WriteCommandError is an error for a write command.
type WriteCommandError struct {
	WriteConcernError *WriteConcernError
	WriteErrors       []WriteError
	Labels            []string
}

func (wce WriteCommandError) Error() string {
	var sb strings.Builder
	sb.WriteString("write command error: [")
	fmt.Fprintf(&sb, "{write errors: %v}, ", wce.WriteErrors)
	fmt.Fprintf(&sb, "{write concern error: %v}", wce.WriteConcernError)
	sb.WriteString("]")
	return sb.String()
}

// Retryable returns true if the write command error is retryable.
func (wce WriteCommandError) Retryable() bool {
	for _, label := range wce.Labels {
		if label == RetryableWriteError {
			return true
		}
	}
	if wce.WriteConcernError == nil {
		return false
	}
	return wce.WriteConcernError.Retryable()
}

// extractError inspects a decoded response document and returns an error if
// the server reported one. A response with {ok: 1} and no write errors yields
// nil.
func extractError(rdr docx.Doc) error {
	var errmsg, codeName string
	var code int64
	var labels []string
	var ok bool
	var wcError WriteCommandError

	for _, elem := range rdr {
		switch elem.Key {
		case "ok":
			switch elem.Value.Type() {
			case docx.TypeInt64:
				if i64, _ := elem.Value.Int64OK(); i64 == 1 {
					ok = true
				}
			case docx.TypeDouble:
				if f64, _ := elem.Value.DoubleOK(); f64 == 1 {
					ok = true
				}
			case docx.TypeBoolean:
				if b, _ := elem.Value.BooleanOK(); b {
					ok = true
				}
			}
		case "errmsg":
			if str, okay := elem.Value.StringValueOK(); okay {
				errmsg = str
			}
		case "codeName":
			if str, okay := elem.Value.StringValueOK(); okay {
				codeName = str
			}
		case "code":
			if i64, okay := elem.Value.Int64OK(); okay {
				code = i64
			}
		case "errorLabels":
			if arr, okay := elem.Value.ArrayOK(); okay {
				for _, val := range arr {
					if str, okay := val.StringValueOK(); okay {
						labels = append(labels, str)
					}
				}
			}
		case "writeErrors":
			arr, okay := elem.Value.ArrayOK()
			if !okay {
				break
			}
			for _, val := range arr {
				doc, exists := val.DocumentOK()
				if !exists {
					break
				}
				var we WriteError
				if index, exists := doc.Lookup("index").Int64OK(); exists {
					we.Index = index
				}
				if code, exists := doc.Lookup("code").Int64OK(); exists {
					we.Code = code
				}
				if msg, exists := doc.Lookup("errmsg").StringValueOK(); exists {
					we.Message = msg
				}
				wcError.WriteErrors = append(wcError.WriteErrors, we)
			}
		case "writeConcernError":
			doc, exists := elem.Value.DocumentOK()
			if !exists {
				break
			}
			wcError.WriteConcernError = new(WriteConcernError)
			if code, exists := doc.Lookup("code").Int64OK(); exists {
				wcError.WriteConcernError.Code = code
			}
			if name, exists := doc.Lookup("codeName").StringValueOK(); exists {
				wcError.WriteConcernError.Name = name
			}
			if msg, exists := doc.Lookup("errmsg").StringValueOK(); exists {
				wcError.WriteConcernError.Message = msg
			}
			if info, exists := doc.Lookup("errInfo").DocumentOK(); exists {
				wcError.WriteConcernError.Details = info.Copy()
			}
		}
	}

	if !ok {
		if errmsg == "" {
			errmsg = "command failed"
		}
		return Error{
			Code:    int32(code),
			Message: errmsg,
			Name:    codeName,
			Labels:  labels,
		}
	}

	if len(wcError.WriteErrors) > 0 || wcError.WriteConcernError != nil {
		wcError.Labels = labels
		return wcError
	}

	return nil
}
