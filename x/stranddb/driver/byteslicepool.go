// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"sync"
)

// byteslicePool hands out reusable buffers for wire messages and raw
// responses. Buffers must be returned before the attempt that obtained them
// returns.
type byteslicePool struct {
	pool *sync.Pool
}

func newByteSlicePool() *byteslicePool {
	return &byteslicePool{
		pool: &sync.Pool{
			New: func() interface{} {
				// Start with 1kb buffers.
				b := make([]byte, 1024)
				// Return a pointer as the static analysis tool suggests.
				return &b
			},
		},
	}
}

func (p *byteslicePool) Get() []byte {
	return (*p.pool.Get().(*[]byte))[:0]
}

func (p *byteslicePool) Put(b []byte) {
	// Proper usage of a sync.Pool requires each entry to have approximately
	// the same memory cost. To obtain this property when the stored type
	// contains a variably-sized buffer, we add a hard limit on the maximum
	// buffer to place back in the pool, the maximum wire message size.
	if c := cap(b); c <= MaxMessageSize {
		b = b[:c]
		p.pool.Put(&b)
	}
}

var memoryPool = newByteSlicePool()
