// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stranddb/strand-go-driver/x/docx"
)

func TestExtractError(t *testing.T) {
	t.Run("ok response yields nil", func(t *testing.T) {
		for _, ok := range []docx.Val{docx.Int64(1), docx.Double(1), docx.Boolean(true)} {
			noerr(t, extractError(docx.Doc{}.Append("ok", ok)))
		}
	})
	t.Run("command failure", func(t *testing.T) {
		err := extractError(docx.Doc{}.
			Append("ok", docx.Int64(0)).
			Append("errmsg", docx.String("something went wrong")).
			Append("code", docx.Int64(11602)).
			Append("codeName", docx.String("InterruptedDueToReplStateChange")).
			Append("errorLabels", docx.Array(docx.Arr{docx.String(RetryableWriteError)})))

		var srvErr Error
		require.ErrorAs(t, err, &srvErr)
		assert.Equal(t, int32(11602), srvErr.Code)
		assert.Equal(t, "something went wrong", srvErr.Message)
		assert.Equal(t, "InterruptedDueToReplStateChange", srvErr.Name)
		assert.True(t, srvErr.HasErrorLabel(RetryableWriteError))
		assert.True(t, srvErr.Retryable())
	})
	t.Run("failure without message", func(t *testing.T) {
		err := extractError(docx.Doc{}.Append("ok", docx.Int64(0)))
		var srvErr Error
		require.ErrorAs(t, err, &srvErr)
		assert.Equal(t, "command failed", srvErr.Message)
	})
	t.Run("write errors", func(t *testing.T) {
		err := extractError(docx.Doc{}.
			Append("ok", docx.Int64(1)).
			Append("writeErrors", docx.Array(docx.Arr{docx.Document(docx.Doc{}.
				Append("index", docx.Int64(0)).
				Append("code", docx.Int64(11000)).
				Append("errmsg", docx.String("duplicate key")),
			)})))

		var wce WriteCommandError
		require.ErrorAs(t, err, &wce)
		want := []WriteError{{Index: 0, Code: 11000, Message: "duplicate key"}}
		if diff := cmp.Diff(want, wce.WriteErrors); diff != "" {
			t.Errorf("write errors mismatch (-want +got):\n%s", diff)
		}
		assert.False(t, wce.Retryable())
	})
	t.Run("write concern error", func(t *testing.T) {
		err := extractError(docx.Doc{}.
			Append("ok", docx.Int64(1)).
			Append("writeConcernError", docx.Document(docx.Doc{}.
				Append("code", docx.Int64(91)).
				Append("codeName", docx.String("ShutdownInProgress")).
				Append("errmsg", docx.String("shutting down")),
			)))

		var wce WriteCommandError
		require.ErrorAs(t, err, &wce)
		require.NotNil(t, wce.WriteConcernError)
		assert.True(t, wce.Retryable())
	})
}

func TestErrorRetryable(t *testing.T) {
	testCases := []struct {
		name string
		err  Error
		want bool
	}{
		{"network label", Error{Labels: []string{NetworkError}}, true},
		{"retryable write label", Error{Labels: []string{RetryableWriteError}}, true},
		{"retryable code", Error{Code: 189}, true},
		{"not writable primary message", Error{Message: "not writable primary"}, true},
		{"node recovering message", Error{Message: "node is recovering"}, true},
		{"plain failure", Error{Code: 2, Message: "bad value"}, false},
		{"unrelated label", Error{Labels: []string{NoWritesPerformed}}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Retryable())
		})
	}
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(Error{Code: 91}))
	assert.True(t, Retryable(WriteCommandError{Labels: []string{RetryableWriteError}}))
	assert.False(t, Retryable(ResponseError{Message: "malformed response"}))
	assert.False(t, Retryable(ValidationError{Key: "$x"}))
	assert.False(t, Retryable(assert.AnError))
}
