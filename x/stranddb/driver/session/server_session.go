// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/stranddb/strand-go-driver/x/docx"
)

// Server is an open session with the server. The transaction number lives here
// so that every fork of a client session observes the number allocated for the
// current operation.
type Server struct {
	SessionID docx.Doc
	TxnNumber int64
	LastUsed  time.Time
}

// returns whether or not a session has expired given a timeout in minutes
// a session is considered expired if it has less than 1 minute left before becoming stale
func (ss *Server) expired(timeoutMinutes uint32) bool {
	if timeoutMinutes == 0 {
		return true
	}
	timeUnused := time.Since(ss.LastUsed).Minutes()
	return timeUnused > float64(timeoutMinutes-1)
}

// update the last used time for this session.
// must be called whenever this server session is used to send a command to the server.
func (ss *Server) updateUseTime() {
	ss.LastUsed = time.Now()
}

func newServerSession() *Server {
	return &Server{
		SessionID: docx.Doc{{Key: "id", Value: docx.UUID(uuid.New())}},
		LastUsed:  time.Now(),
	}
}
