// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package operation contains the operations that can be executed against a
// StrandDB deployment. Each operation wraps a driver.Operation with the
// command construction, validation, and response processing specific to it.
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

// FindAndModify performs a findAndModify operation: it atomically locates one
// document and removes, updates, or replaces it, returning either the original
// or the modified document.
type FindAndModify struct {
	query          docx.Doc
	update         docx.Doc
	sort           docx.Doc
	fields         docx.Doc
	collation      docx.Doc
	remove         *bool
	upsert         *bool
	returnNew      *bool
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

	result FindAndModifyResult
}

// FindAndModifyResult is the typed result of a FindAndModify.
type FindAndModifyResult struct {
	// Value is the document before or after modification, depending on the
	// ReturnNew setting. It is nil when no document matched.
	Value docx.Doc
	// UpdatedExisting is true when an existing document was modified.
	UpdatedExisting bool
	// Upserted holds the identifier of an upserted document, if any.
	Upserted docx.Val
}

// NewFindAndModify constructs and returns a new FindAndModify.
func NewFindAndModify(query docx.Doc) *FindAndModify {
	return &FindAndModify{query: query}
}

// Result returns the result of executing this operation.
func (fam *FindAndModify) Result() FindAndModifyResult { return fam.result }

func (fam *FindAndModify) processResponse(response docx.Doc) error {
	fam.result = FindAndModifyResult{}

	val, err := response.LookupErr("value")
	if err != nil {
		return driver.NewCommandResponseError("invalid response from server, no value field", err)
	}
	switch val.Type() {
	case docx.TypeNull:
	case docx.TypeDocument:
		fam.result.Value = val.Document()
	default:
		return driver.NewCommandResponseError("invalid response from server, value field is not a document", nil)
	}

	if leo, ok := response.Lookup("lastErrorObject").DocumentOK(); ok {
		if updated, ok := leo.Lookup("updatedExisting").BooleanOK(); ok {
			fam.result.UpdatedExisting = updated
		}
		if upserted := leo.Lookup("upserted"); !upserted.IsZero() {
			fam.result.Upserted = upserted
		}
	}
	return nil
}

// Execute runs this operation against the provided deployment.
func (fam *FindAndModify) Execute(ctx context.Context) error {
	if fam.deployment == nil {
		return errors.New("the FindAndModify operation must have a Deployment set before Execute can be called")
	}
	return fam.operation().Execute(ctx)
}

// ExecuteAsync runs this operation without blocking. The returned channel
// receives the error Execute would have returned.
func (fam *FindAndModify) ExecuteAsync(ctx context.Context) <-chan error {
	if fam.deployment == nil {
		ch := make(chan error, 1)
		ch <- errors.New("the FindAndModify operation must have a Deployment set before Execute can be called")
		return ch
	}
	return fam.operation().ExecuteAsync(ctx)
}

func (fam *FindAndModify) operation() driver.Operation {
	return driver.Operation{
		CommandFn:         fam.command,
		ProcessResponseFn: fam.processResponse,
		Client:            fam.session,
		RetryMode:         fam.retry,
		Type:              driver.Write,
		Database:          fam.database,
		Deployment:        fam.deployment,
		Selector:          fam.selector,
		WriteConcern:      fam.writeConcern,
		Codec:             fam.codec,
		Validator:         fam.validator(),
		DecodeSettings:    fam.decodeSettings,
		Compression:       fam.compression,
		Logger:            fam.logger,
		Name:              "findAndModify",
	}
}

func (fam *FindAndModify) command(dst docx.Doc, desc description.SelectedServer) (docx.Doc, error) {
	dst = dst.Append("findAndModify", docx.String(fam.collection))
	if fam.query != nil {
		dst = dst.Append("query", docx.Document(fam.query))
	}
	if fam.sort != nil {
		dst = dst.Append("sort", docx.Document(fam.sort))
	}
	if fam.remove != nil {
		dst = dst.Append("remove", docx.Boolean(*fam.remove))
	}
	if fam.update != nil {
		dst = dst.Append("update", docx.Document(fam.update))
	}
	if fam.returnNew != nil {
		dst = dst.Append("new", docx.Boolean(*fam.returnNew))
	}
	if fam.fields != nil {
		dst = dst.Append("fields", docx.Document(fam.fields))
	}
	if fam.upsert != nil {
		dst = dst.Append("upsert", docx.Boolean(*fam.upsert))
	}
	if fam.collation != nil {
		dst = dst.Append("collation", docx.Document(fam.collation))
	}
	if fam.comment != nil {
		dst = dst.Append("comment", docx.String(*fam.comment))
	}
	return dst, nil
}

// validator chooses the field-name rules for the update document. An update
// whose first field is an operator must be all operators; anything else is a
// replacement and follows stored-document rules.
func (fam *FindAndModify) validator() driver.FieldNameValidator {
	if fam.update == nil {
		return nil
	}
	var child driver.FieldNameValidator = driver.ReplacementDocumentValidator{}
	if len(fam.update) > 0 && len(fam.update[0].Key) > 0 && fam.update[0].Key[0] == '$' {
		child = driver.UpdateDocumentValidator{}
	}
	return driver.MappedValidator{Children: map[string]driver.FieldNameValidator{
		"update": child,
	}}
}

// Query specifies the selection criteria for the modification.
func (fam *FindAndModify) Query(query docx.Doc) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.query = query
	return fam
}

// Update specifies the update document or replacement document.
func (fam *FindAndModify) Update(update docx.Doc) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.update = update
	return fam
}

// Sort determines which document the operation modifies if the query selects
// multiple documents.
func (fam *FindAndModify) Sort(sort docx.Doc) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.sort = sort
	return fam
}

// Fields is a subset of fields to return.
func (fam *FindAndModify) Fields(fields docx.Doc) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.fields = fields
	return fam
}

// Remove specifies that the matched document should be removed.
func (fam *FindAndModify) Remove(remove bool) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.remove = &remove
	return fam
}

// Upsert specifies whether a document should be inserted if no match is found.
func (fam *FindAndModify) Upsert(upsert bool) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.upsert = &upsert
	return fam
}

// ReturnNew specifies whether to return the modified document rather than the
// original.
func (fam *FindAndModify) ReturnNew(returnNew bool) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.returnNew = &returnNew
	return fam
}

// Collation specifies a collation to be used.
func (fam *FindAndModify) Collation(collation docx.Doc) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.collation = collation
	return fam
}

// Comment attaches a comment to the operation.
func (fam *FindAndModify) Comment(comment string) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.comment = &comment
	return fam
}

// Session sets the session for this operation.
func (fam *FindAndModify) Session(client *session.Client) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.session = client
	return fam
}

// WriteConcern sets the write concern for this operation.
func (fam *FindAndModify) WriteConcern(writeConcern *writeconcern.WriteConcern) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.writeConcern = writeConcern
	return fam
}

// Retry enables retryable mode for this operation. Retries are handled
// automatically in driver.Operation.Execute based on how the operation is set.
func (fam *FindAndModify) Retry(retry driver.RetryMode) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.retry = &retry
	return fam
}

// Collection sets the collection that this command will run against.
func (fam *FindAndModify) Collection(collection string) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.collection = collection
	return fam
}

// Database sets the database to run this operation against.
func (fam *FindAndModify) Database(database string) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.database = database
	return fam
}

// Deployment sets the deployment to run this operation against.
func (fam *FindAndModify) Deployment(deployment driver.Deployment) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.deployment = deployment
	return fam
}

// ServerSelector sets the selector used to retrieve a server.
func (fam *FindAndModify) ServerSelector(selector description.ServerSelector) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.selector = selector
	return fam
}

// Codec sets the codec used to marshal commands and unmarshal responses.
func (fam *FindAndModify) Codec(codec driver.Codec) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.codec = codec
	return fam
}

// DecodeSettings sets the response decode settings for this operation.
func (fam *FindAndModify) DecodeSettings(settings driver.DecodeSettings) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.decodeSettings = settings
	return fam
}

// Compression sets the wire message compression settings for this operation.
func (fam *FindAndModify) Compression(compression *driver.CompressionOpts) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.compression = compression
	return fam
}

// Logger sets the logger for this operation.
func (fam *FindAndModify) Logger(lgr *logger.Logger) *FindAndModify {
	if fam == nil {
		fam = new(FindAndModify)
	}
	fam.logger = lgr
	return fam
}
