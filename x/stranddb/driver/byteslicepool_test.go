// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteSlicePool(t *testing.T) {
	t.Run("handed out buffers are empty", func(t *testing.T) {
		p := newByteSlicePool()
		b := p.Get()
		assert.Equal(t, 0, len(b))
		assert.True(t, cap(b) >= 1024)
	})
	t.Run("returned buffers are reusable", func(t *testing.T) {
		p := newByteSlicePool()
		b := p.Get()
		b = append(b, make([]byte, 2048)...)
		p.Put(b)
		b2 := p.Get()
		assert.Equal(t, 0, len(b2))
	})
	t.Run("oversized buffers are dropped", func(t *testing.T) {
		p := newByteSlicePool()
		// Should not panic; the pool silently drops buffers above the wire
		// message size cap.
		p.Put(make([]byte, 17*1024*1024))
	})
}
