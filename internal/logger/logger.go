// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package logger provides the driver's internal logging facade. Components log
// through a component-scoped Logger; output is silent unless the embedding
// application raises the level on the shared logrus logger.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// SetOutput directs driver logs to w.
func SetOutput(w io.Writer) { base.SetOutput(w) }

// SetLevel sets the level below which driver logs are discarded.
func SetLevel(level logrus.Level) { base.SetLevel(level) }

// Logger is a component-scoped logger.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger scoped to the named driver component.
func New(component string) *Logger {
	return &Logger{entry: base.WithField("component", component)}
}

// Debug logs a debug-level message with structured fields.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

// Warn logs a warn-level message with structured fields.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	l.entry.WithFields(logrus.Fields(fields)).Warn(msg)
}
