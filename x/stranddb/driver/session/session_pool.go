// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"sync"

	"github.com/stranddb/strand-go-driver/x/stranddb/driver/description"
)

// Node represents a server session in a linked list
type Node struct {
	*Server
	next *Node
	prev *Node
}

// Pool is a pool of server sessions that can be reused.
type Pool struct {
	descChan   <-chan description.Topology
	head       *Node
	tail       *Node
	timeout    uint32
	mutex      sync.Mutex // mutex to protect list and timeout
	checkedOut int        // number of sessions checked out of pool
}

// defaultSessionTimeout is used until the deployment reports its own session
// timeout on the description channel.
const defaultSessionTimeout = 30

// NewPool creates a new server session pool. The description channel, if not
// nil, is read to keep the session timeout in sync with the deployment.
func NewPool(descChan <-chan description.Topology) *Pool {
	return &Pool{descChan: descChan, timeout: defaultSessionTimeout}
}

// assumes caller has mutex to protect the pool
func (p *Pool) updateTimeout() {
	if p.descChan == nil {
		return
	}
	select {
	case newDesc := <-p.descChan:
		p.timeout = newDesc.SessionTimeoutMinutes
	default:
		// no new description waiting
	}
}

// GetSession retrieves an unexpired session from the pool.
func (p *Pool) GetSession() (*Server, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.checkedOut++
	p.updateTimeout()
	for p.head != nil {
		// pull session from head of queue and return it if it is valid for at
		// least 1 more minute
		if p.head.expired(p.timeout) {
			p.head = p.head.next
			continue
		}

		// found unexpired session
		session := p.head.Server
		if p.head.next != nil {
			p.head.next.prev = nil
		}
		if p.tail == p.head {
			p.tail = nil
		}
		p.head = p.head.next
		return session, nil
	}

	// no valid session found
	return newServerSession(), nil
}

// ReturnSession returns a session to the pool if it has not expired.
func (p *Pool) ReturnSession(ss *Server) {
	if ss == nil {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.checkedOut--
	p.updateTimeout()
	// check sessions at end of queue for expired
	// stop checking after hitting the first valid session
	for p.tail != nil && p.tail.expired(p.timeout) {
		if p.tail.prev != nil {
			p.tail.prev.next = nil
		}
		p.tail = p.tail.prev
	}

	// session expired
	if ss.expired(p.timeout) {
		return
	}

	newNode := &Node{Server: ss}

	// empty list
	if p.tail == nil {
		p.head = newNode
		p.tail = newNode
		return
	}

	// at least 1 valid session in list
	newNode.next = p.head
	p.head.prev = newNode
	p.head = newNode
}

// CheckedOut returns the number of server sessions currently checked out of
// the pool.
func (p *Pool) CheckedOut() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.checkedOut
}
