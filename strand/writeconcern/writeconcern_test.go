// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package writeconcern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stranddb/strand-go-driver/x/docx"
)

func TestWriteConcernMarshal(t *testing.T) {
	testCases := []struct {
		name string
		wc   *WriteConcern
		want docx.Doc
		err  error
	}{
		{"empty", New(), nil, ErrEmptyWriteConcern},
		{"w number", New(W(2)), docx.Doc{}.Append("w", docx.Int64(2)), nil},
		{"w majority", New(WMajority()), docx.Doc{}.Append("w", docx.String("majority")), nil},
		{"journaled", New(J(true)), docx.Doc{}.Append("j", docx.Boolean(true)), nil},
		{
			"timeout",
			New(W(1), WTimeout(2 * time.Second)),
			docx.Doc{}.Append("w", docx.Int64(1)).Append("wtimeout", docx.Int64(2000)),
			nil,
		},
		{"negative w", New(W(-1)), nil, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := tc.wc.MarshalDocument()
			if tc.err != nil {
				require.Equal(t, tc.err, err)
				return
			}
			if tc.want == nil {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, doc.Equal(tc.want), "expected %v, got %v", tc.want, doc)
		})
	}
}

func TestWriteConcernAcknowledged(t *testing.T) {
	assert.True(t, AckWrite(nil), "nil write concern acknowledges")
	assert.True(t, New(WMajority()).Acknowledged())
	assert.True(t, New(W(0), J(true)).Acknowledged(), "journaling forces acknowledgment")
	assert.False(t, New(W(0)).Acknowledged())
}
