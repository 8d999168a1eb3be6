// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package operation

import (
	"context"
	"errors"

	"github.com/stranddb/strand-go-driver/internal/logger"
	"github.com/stranddb/strand-go-driver/strand/writeconcern"
	"github.com/stranddb/strand-go-driver/x/docx"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/description"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/session"
)

// Insert performs an insert operation.
type Insert struct {
	documents      []docx.Doc
	ordered        *bool
	comment        *string
	session        *session.Client
	writeConcern   *writeconcern.WriteConcern
	retry          *driver.RetryMode
	collection     string
	database       string
	deployment     driver.Deployment
	selector       description.ServerSelector
	codec          driver.Codec
	decodeSettings driver.DecodeSettings
	compression    *driver.CompressionOpts
	logger         *logger.Logger

	result InsertResult
}

// InsertResult represents an insert result returned by the server.
type InsertResult struct {
	// N is the number of documents inserted.
	N int64
}

// NewInsert constructs and returns a new Insert.
func NewInsert(documents ...docx.Doc) *Insert {
	return &Insert{documents: documents}
}

// Result returns the result of executing this operation.
func (i *Insert) Result() InsertResult { return i.result }

func (i *Insert) processResponse(response docx.Doc) error {
	i.result = InsertResult{}
	if n, ok := response.Lookup("n").Int64OK(); ok {
		i.result.N = n
	}
	return nil
}

// Execute runs this operation against the provided deployment.
func (i *Insert) Execute(ctx context.Context) error {
	if i.deployment == nil {
		return errors.New("the Insert operation must have a Deployment set before Execute can be called")
	}
	return i.operation().Execute(ctx)
}

// ExecuteAsync runs this operation without blocking. The returned channel
// receives the error Execute would have returned.
func (i *Insert) ExecuteAsync(ctx context.Context) <-chan error {
	if i.deployment == nil {
		ch := make(chan error, 1)
		ch <- errors.New("the Insert operation must have a Deployment set before Execute can be called")
		return ch
	}
	return i.operation().ExecuteAsync(ctx)
}

func (i *Insert) operation() driver.Operation {
	return driver.Operation{
		CommandFn:         i.command,
		ProcessResponseFn: i.processResponse,
		Client:            i.session,
		RetryMode:         i.retry,
		Type:              driver.Write,
		Database:          i.database,
		Deployment:        i.deployment,
		Selector:          i.selector,
		WriteConcern:      i.writeConcern,
		Codec:             i.codec,
		Validator: driver.MappedValidator{Children: map[string]driver.FieldNameValidator{
			"documents": driver.CollectionDocumentValidator{},
		}},
		DecodeSettings: i.decodeSettings,
		Compression:    i.compression,
		Logger:         i.logger,
		Name:           "insert",
	}
}

func (i *Insert) command(dst docx.Doc, desc description.SelectedServer) (docx.Doc, error) {
	dst = dst.Append("insert", docx.String(i.collection))
	docs := make(docx.Arr, 0, len(i.documents))
	for _, doc := range i.documents {
		docs = append(docs, docx.Document(doc))
	}
	dst = dst.Append("documents", docx.Array(docs))
	if i.ordered != nil {
		dst = dst.Append("ordered", docx.Boolean(*i.ordered))
	}
	if i.comment != nil {
		dst = dst.Append("comment", docx.String(*i.comment))
	}
	return dst, nil
}

// Documents sets the documents to insert.
func (i *Insert) Documents(documents ...docx.Doc) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.documents = documents
	return i
}

// Ordered sets ordered. If true, when a write fails, the operation returns
// without continuing the remaining writes.
func (i *Insert) Ordered(ordered bool) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.ordered = &ordered
	return i
}

// Comment attaches a comment to the operation.
func (i *Insert) Comment(comment string) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.comment = &comment
	return i
}

// Session sets the session for this operation.
func (i *Insert) Session(client *session.Client) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.session = client
	return i
}

// WriteConcern sets the write concern for this operation.
func (i *Insert) WriteConcern(writeConcern *writeconcern.WriteConcern) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.writeConcern = writeConcern
	return i
}

// Retry enables retryable mode for this operation.
func (i *Insert) Retry(retry driver.RetryMode) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.retry = &retry
	return i
}

// Collection sets the collection that this command will run against.
func (i *Insert) Collection(collection string) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.collection = collection
	return i
}

// Database sets the database to run this operation against.
func (i *Insert) Database(database string) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.database = database
	return i
}

// Deployment sets the deployment to run this operation against.
func (i *Insert) Deployment(deployment driver.Deployment) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.deployment = deployment
	return i
}

// ServerSelector sets the selector used to retrieve a server.
func (i *Insert) ServerSelector(selector description.ServerSelector) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.selector = selector
	return i
}

// Codec sets the codec used to marshal commands and unmarshal responses.
func (i *Insert) Codec(codec driver.Codec) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.codec = codec
	return i
}

// DecodeSettings sets the response decode settings for this operation.
func (i *Insert) DecodeSettings(settings driver.DecodeSettings) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.decodeSettings = settings
	return i
}

// Compression sets the wire message compression settings for this operation.
func (i *Insert) Compression(compression *driver.CompressionOpts) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.compression = compression
	return i
}

// Logger sets the logger for this operation.
func (i *Insert) Logger(lgr *logger.Logger) *Insert {
	if i == nil {
		i = new(Insert)
	}
	i.logger = lgr
	return i
}
