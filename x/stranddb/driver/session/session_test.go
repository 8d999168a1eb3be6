// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stranddb/strand-go-driver/x/docx"
)

func TestSessionPool(t *testing.T) {
	t.Run("sessions are reused", func(t *testing.T) {
		pool := NewPool(nil)
		first, err := pool.GetSession()
		require.NoError(t, err)
		pool.ReturnSession(first)

		second, err := pool.GetSession()
		require.NoError(t, err)
		assert.True(t, first.SessionID.Equal(second.SessionID))
	})
	t.Run("checked out counter", func(t *testing.T) {
		pool := NewPool(nil)
		ss, err := pool.GetSession()
		require.NoError(t, err)
		assert.Equal(t, 1, pool.CheckedOut())
		pool.ReturnSession(ss)
		assert.Equal(t, 0, pool.CheckedOut())
	})
	t.Run("distinct sessions have distinct ids", func(t *testing.T) {
		pool := NewPool(nil)
		first, err := pool.GetSession()
		require.NoError(t, err)
		second, err := pool.GetSession()
		require.NoError(t, err)
		assert.False(t, first.SessionID.Equal(second.SessionID))
	})
}

func TestClientSession(t *testing.T) {
	t.Run("transaction numbers are per server session", func(t *testing.T) {
		pool := NewPool(nil)
		sess, err := NewClientSession(pool, Explicit)
		require.NoError(t, err)
		defer sess.EndSession()

		assert.Equal(t, int64(0), sess.TxnNumber())
		sess.IncrementTxnNumber()
		assert.Equal(t, int64(1), sess.TxnNumber())
	})
	t.Run("fork shares server session", func(t *testing.T) {
		pool := NewPool(nil)
		sess, err := NewClientSession(pool, Explicit)
		require.NoError(t, err)
		defer sess.EndSession()

		sess.IncrementTxnNumber()
		fork, err := sess.Fork()
		require.NoError(t, err)

		assert.True(t, sess.SessionID().Equal(fork.SessionID()))
		assert.Equal(t, sess.TxnNumber(), fork.TxnNumber())

		// A number allocated after forking is observed by the fork too.
		sess.IncrementTxnNumber()
		assert.Equal(t, int64(2), fork.TxnNumber())
	})
	t.Run("fork lifetime is tracked", func(t *testing.T) {
		pool := NewPool(nil)
		sess, err := NewClientSession(pool, Explicit)
		require.NoError(t, err)

		fork1, err := sess.Fork()
		require.NoError(t, err)
		fork2, err := sess.Fork()
		require.NoError(t, err)
		assert.Equal(t, 2, sess.ActiveForks())

		fork1.EndSession()
		fork2.EndSession()
		assert.Equal(t, 0, sess.ActiveForks())

		// Ending forks must not return the server session to the pool.
		assert.Equal(t, 1, pool.CheckedOut())
		sess.EndSession()
		assert.Equal(t, 0, pool.CheckedOut())
	})
	t.Run("ending twice is safe", func(t *testing.T) {
		pool := NewPool(nil)
		sess, err := NewClientSession(pool, Explicit)
		require.NoError(t, err)
		sess.EndSession()
		sess.EndSession()
		assert.Equal(t, 0, pool.CheckedOut())
	})
	t.Run("ended sessions cannot be used", func(t *testing.T) {
		pool := NewPool(nil)
		sess, err := NewClientSession(pool, Explicit)
		require.NoError(t, err)
		sess.EndSession()

		assert.Equal(t, ErrSessionEnded, sess.UpdateUseTime())
		_, err = sess.Fork()
		assert.Equal(t, ErrSessionEnded, err)
	})
	t.Run("cluster time propagates to the root", func(t *testing.T) {
		pool := NewPool(nil)
		sess, err := NewClientSession(pool, Explicit)
		require.NoError(t, err)
		defer sess.EndSession()

		fork, err := sess.Fork()
		require.NoError(t, err)
		defer fork.EndSession()

		ct := docx.Doc{}.Append("$clusterTime", docx.Document(
			docx.Doc{}.Append("clusterTime", docx.Timestamp(10, 1)),
		))
		fork.AdvanceClusterTime(ct)
		assert.True(t, sess.ClusterTime.Equal(ct))
	})
}

func TestMaxClusterTime(t *testing.T) {
	ct := func(epoch, ord uint32) docx.Doc {
		return docx.Doc{}.Append("$clusterTime", docx.Document(
			docx.Doc{}.Append("clusterTime", docx.Timestamp(epoch, ord)),
		))
	}

	testCases := []struct {
		name     string
		ct1, ct2 docx.Doc
		want     docx.Doc
	}{
		{"higher epoch wins", ct(20, 0), ct(10, 99), ct(20, 0)},
		{"lower epoch loses", ct(10, 99), ct(20, 0), ct(20, 0)},
		{"ordinal breaks ties", ct(10, 2), ct(10, 5), ct(10, 5)},
		{"equal times keep first", ct(10, 1), ct(10, 1), ct(10, 1)},
		{"nil second returns first", ct(10, 1), nil, ct(10, 1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := MaxClusterTime(tc.ct1, tc.ct2)
			assert.True(t, got.Equal(tc.want))
		})
	}
}
