// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/stranddb/strand-go-driver/internal/logger"
	"github.com/stranddb/strand-go-driver/strand/writeconcern"
	"github.com/stranddb/strand-go-driver/x/docx"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/description"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/session"
	"github.com/stranddb/strand-go-driver/x/stranddb/driver/wiremessage"
)

var operationLogger = logger.New("operation")

// Operation is used to execute an operation. It contains all of the common
// code required to select a server, transform an operation into a command,
// write the command to a connection from the selected server, read a response
// from that connection, process the response, and potentially retry.
//
// The required fields are CommandFn, Database, Deployment, and Codec. All
// other fields are optional.
type Operation struct {
	// CommandFn is used to create the command that will be wrapped in a wire
	// message and sent to the server. This function should only append the
	// elements of the command and must not mutate session or connection
	// state. Per the command API, the first element must be the name of the
	// command to run. It must be deterministic given identical inputs, since
	// a retried attempt resends the command with the same transaction number.
	// This field is required.
	CommandFn func(dst docx.Doc, desc description.SelectedServer) (docx.Doc, error)

	// Database is the database that the command will be run against. This
	// field is required.
	Database string

	// Deployment is the StrandDB deployment to use. Commands that need to run
	// against a single, preselected server can use the SingleServerDeployment
	// type. This field is required.
	Deployment Deployment

	// Codec marshals command documents into wire message bodies and
	// unmarshals response bodies. This field is required.
	Codec Codec

	// ProcessResponseFn is called after a successful response to the command
	// is decoded. Operations use it to store their typed result.
	ProcessResponseFn func(response docx.Doc) error

	// Selector is the server selector that's used during both initial server
	// selection and subsequent selection for retries. Depending on the
	// Deployment implementation, the SelectServer method may not actually be
	// called.
	Selector description.ServerSelector

	// WriteConcern is the write concern to append to write commands.
	WriteConcern *writeconcern.WriteConcern

	// Client is the session used with this operation.
	Client *session.Client

	// RetryMode specifies how to retry. Both RetryMode and Type must be set
	// for retryability to be enabled.
	RetryMode *RetryMode

	// Type specifies the kind of operation this is. There is only one type
	// that enables retry: Write. Both Type and RetryMode must be set for
	// retryability to be enabled.
	Type Type

	// Validator enforces the field-name rules of this operation's command
	// family before the command is marshaled. A validation failure is a
	// configuration error and is never retried.
	Validator FieldNameValidator

	// DecodeSettings configure the response decode path: character encoding
	// and the legacy binary-identifier representation.
	DecodeSettings DecodeSettings

	// Compression configures wire message compression. Compression is only
	// applied if the selected server advertises support for the configured
	// compressor.
	Compression *CompressionOpts

	// RetryablePredicate classifies an attempt's failure as retry-eligible.
	// When nil, the default classification (error labels, retryable server
	// codes, and the not-writable-primary message forms) is used.
	RetryablePredicate func(error) bool

	// Logger overrides the package logger for this operation.
	Logger *logger.Logger

	// Name is the name of the operation, used for logging.
	Name string
}

// Validate validates this operation, ensuring the fields are set properly.
func (op Operation) Validate() error {
	if op.CommandFn == nil {
		return InvalidOperationError{MissingField: "CommandFn"}
	}
	if op.Deployment == nil {
		return InvalidOperationError{MissingField: "Deployment"}
	}
	if op.Database == "" {
		return InvalidOperationError{MissingField: "Database"}
	}
	if op.Codec == nil {
		return InvalidOperationError{MissingField: "Codec"}
	}
	if op.Client != nil && !writeconcern.AckWrite(op.WriteConcern) {
		return errors.New("session provided for an unacknowledged write")
	}
	return nil
}

// Execute runs this operation. At most two attempts are made: if the first
// attempt fails with a retry-eligible error and retrying is enabled for this
// operation, one additional attempt is made on a freshly bound channel with
// the same transaction number. Callers observe only the final outcome.
func (op Operation) Execute(ctx context.Context) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if op.Client != nil {
		if err := op.Client.UpdateUseTime(); err != nil {
			return err
		}
	}

	cb, err := op.bindChannel(ctx)
	if err != nil {
		return err
	}

	// Determine retryability against the first selected server only. If that
	// server does not support retryable writes, the write executes as if
	// retries were not requested.
	retryable := op.retryable(cb.conn.Description())
	if retryable {
		// Allocate the transaction number shared by every attempt of this
		// call. The fork held by the binding observes the same number.
		op.Client.IncrementTxnNumber()
	}

	err = op.executeAttempt(ctx, cb, 1, retryable)
	if err == nil || !retryable {
		return err
	}

	// Cancellation is fatal for the call; no retry is attempted after it.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	predicate := op.RetryablePredicate
	if predicate == nil {
		predicate = Retryable
	}
	if !predicate(err) {
		return err
	}

	original := err

	// Bind a (possibly different) channel for the second attempt. If a
	// suitable one cannot be obtained, the first attempt's error stands.
	cb, bindErr := op.bindChannel(ctx)
	if bindErr != nil {
		return original
	}
	if !op.retrySupported(cb.conn.Description()) {
		cb.Release()
		return original
	}

	op.logger().Debug("retrying operation", map[string]interface{}{
		"operation": op.Name,
		"txnNumber": op.Client.TxnNumber(),
		"cause":     original.Error(),
	})

	return op.executeAttempt(ctx, cb, 2, true)
}

// ExecuteAsync runs this operation without blocking the caller. The returned
// channel receives the same error Execute would have returned; both calling
// conventions share this one orchestration, so their behavior cannot diverge.
func (op Operation) ExecuteAsync(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- op.Execute(ctx)
	}()
	return ch
}

// Retryable is the default retry-eligibility classification: transient
// network errors, retryable server codes, and errors labeled retryable
// qualify. Builder, validation, decode, and cancellation failures never do.
func Retryable(err error) bool {
	switch tt := err.(type) {
	case Error:
		return tt.Retryable()
	case WriteCommandError:
		return tt.Retryable()
	default:
		return false
	}
}

// executeAttempt sends the command over the bound channel exactly once and
// decodes the reply. The binding and any pooled buffers are released on every
// exit path.
func (op Operation) executeAttempt(ctx context.Context, cb *channelBinding, attempt int, retryEnabled bool) error {
	defer cb.Release()

	desc := description.SelectedServer{
		Server: cb.conn.Description(),
		Kind:   op.Deployment.Kind(),
	}

	cmd, err := op.createCommand(cb, desc, retryEnabled)
	if err != nil {
		return err
	}
	if err := ValidateDocument(cmd, op.Validator); err != nil {
		return err
	}

	wm := memoryPool.Get()
	defer func() {
		memoryPool.Put(wm)
	}()
	wm, err = op.createWireMessage(wm, cmd, desc)
	if err != nil {
		return err
	}

	// Check for context cancellation before the round trip so a canceled call
	// never touches the wire.
	if err := ctx.Err(); err != nil {
		return err
	}

	op.logger().Debug("executing attempt", map[string]interface{}{
		"operation": op.Name,
		"attempt":   attempt,
		"server":    cb.conn.Address().String(),
	})

	res, err := op.roundTrip(ctx, cb.conn, wm)
	if err != nil {
		return err
	}

	if op.ProcessResponseFn != nil {
		return op.ProcessResponseFn(res)
	}
	return nil
}

// retryable reports whether this invocation both requests retry and targets a
// server that supports it.
func (op Operation) retryable(desc description.Server) bool {
	if op.Type != Write || op.Client == nil {
		return false
	}
	if op.RetryMode == nil || !op.RetryMode.Enabled() {
		return false
	}
	return op.retrySupported(desc)
}

// retrySupported reports whether the server described supports retryable
// writes with an acknowledged write concern.
func (op Operation) retrySupported(desc description.Server) bool {
	return description.RetryWritesSupported(desc) && writeconcern.AckWrite(op.WriteConcern)
}

// createCommand builds the full command document for one attempt: the
// operation's own fields, then the session identifier and transaction number,
// the write concern, and the target database.
func (op Operation) createCommand(cb *channelBinding, desc description.SelectedServer, retryEnabled bool) (docx.Doc, error) {
	cmd, err := op.CommandFn(docx.Doc{}, desc)
	if err != nil {
		return nil, err
	}

	cmd, err = op.addSession(cmd, cb.session, desc, retryEnabled)
	if err != nil {
		return nil, err
	}

	cmd, err = op.addWriteConcern(cmd)
	if err != nil {
		return nil, err
	}

	return cmd.Append("$db", docx.String(op.Database)), nil
}

func (op Operation) addSession(cmd docx.Doc, sess *session.Client, desc description.SelectedServer, retryEnabled bool) (docx.Doc, error) {
	if sess == nil || !description.SessionsSupported(desc.WireVersion) {
		return cmd, nil
	}
	if sess.Terminated {
		return nil, session.ErrSessionEnded
	}
	cmd = cmd.Append("lsid", docx.Document(sess.SessionID()))
	if retryEnabled {
		cmd = cmd.Append("txnNumber", docx.Int64(sess.TxnNumber()))
	}
	return cmd, nil
}

func (op Operation) addWriteConcern(cmd docx.Doc) (docx.Doc, error) {
	if op.WriteConcern == nil {
		return cmd, nil
	}
	doc, err := op.WriteConcern.MarshalDocument()
	if err == writeconcern.ErrEmptyWriteConcern {
		return cmd, nil
	}
	if err != nil {
		return nil, err
	}
	return cmd.Append("writeConcern", docx.Document(doc)), nil
}

// createWireMessage frames the marshaled command, compressing the body when
// the operation requests it and the server supports it.
func (op Operation) createWireMessage(dst []byte, cmd docx.Doc, desc description.SelectedServer) ([]byte, error) {
	idx, dst := wiremessage.AppendHeaderStart(dst, wiremessage.NextRequestID(), 0, wiremessage.OpCommand)
	dst, err := op.Codec.MarshalDocument(dst, cmd)
	if err != nil {
		return dst, err
	}
	dst = wiremessage.UpdateLength(dst, idx, int32(len(dst[idx:])))

	if op.Compression != nil && supportsCompression(desc.Server, op.Compression.Compressor) {
		return op.compressWireMessage(dst)
	}
	return dst, nil
}

func supportsCompression(desc description.Server, id wiremessage.CompressorID) bool {
	if id == wiremessage.CompressorNoOp {
		return false
	}
	name := compressorName(id)
	for _, supported := range desc.Compression {
		if supported == name {
			return true
		}
	}
	return false
}

func compressorName(id wiremessage.CompressorID) string {
	switch id {
	case wiremessage.CompressorSnappy:
		return "snappy"
	case wiremessage.CompressorZLib:
		return "zlib"
	case wiremessage.CompressorZstd:
		return "zstd"
	default:
		return ""
	}
}

// compressWireMessage takes a wire message and returns an equivalent
// OP_COMPRESSED message.
func (op Operation) compressWireMessage(src []byte) ([]byte, error) {
	length, reqid, respto, origcode, body, ok := wiremessage.ReadHeader(src)
	if !ok {
		return nil, errors.New("wiremessage is too short to compress, less than 16 bytes")
	}

	opts := *op.Compression
	opts.UncompressedSize = length - 16
	compressed, err := CompressPayload(body, opts)
	if err != nil {
		return nil, err
	}

	idx, dst := wiremessage.AppendHeaderStart(nil, reqid, respto, wiremessage.OpCompressed)
	dst = wiremessage.AppendCompressedOriginalOpCode(dst, origcode)
	dst = wiremessage.AppendCompressedUncompressedSize(dst, length-16)
	dst = wiremessage.AppendCompressedCompressorID(dst, opts.Compressor)
	dst = wiremessage.AppendCompressedCompressedMessage(dst, compressed)
	return wiremessage.UpdateLength(dst, idx, int32(len(dst[idx:]))), nil
}

// roundTrip writes a wiremessage to the connection and then reads and decodes
// its reply.
func (op Operation) roundTrip(ctx context.Context, conn Connection, wm []byte) (docx.Doc, error) {
	if err := conn.WriteWireMessage(ctx, wm); err != nil {
		return nil, op.networkError(err)
	}
	return op.readWireMessage(ctx, conn)
}

// readWireMessage reads a raw reply into a pooled buffer, decodes it, and
// returns the buffer to the pool before returning. The raw response never
// outlives the attempt that produced it.
func (op Operation) readWireMessage(ctx context.Context, conn Connection) (docx.Doc, error) {
	raw := memoryPool.Get()
	defer func() {
		memoryPool.Put(raw)
	}()

	raw, err := conn.ReadWireMessage(ctx, raw)
	if err != nil {
		return nil, op.networkError(err)
	}
	return op.decodeResult(raw)
}

// decodeResult parses one framed reply: header, optional decompression, body
// decode, and server-side error extraction.
func (op Operation) decodeResult(wm []byte) (docx.Doc, error) {
	wmLength := len(wm)
	length, _, _, opcode, rem, ok := wiremessage.ReadHeader(wm)
	if !ok || int(length) > wmLength {
		return nil, NewCommandResponseError("malformed wire message: insufficient bytes", nil)
	}
	// A length smaller than the header itself cannot describe a real message.
	if length < 16 {
		return nil, NewCommandResponseError("malformed wire message: invalid length", nil)
	}
	// Constrain to just this wiremessage in case there are multiple in the
	// slice.
	rem = rem[:length-16]

	if opcode == wiremessage.OpCompressed {
		opcode, rem, err := op.decompressWireMessage(rem)
		if err != nil {
			return nil, err
		}
		return op.decodeReply(opcode, rem)
	}
	return op.decodeReply(opcode, rem)
}

func (op Operation) decodeReply(opcode wiremessage.OpCode, body []byte) (docx.Doc, error) {
	if opcode != wiremessage.OpReply {
		return nil, fmt.Errorf("cannot decode result from %s", opcode)
	}
	if len(body) == 0 {
		return nil, ErrNoCommandResponse
	}

	decoder := ResponseDecoder{Codec: op.Codec, Settings: op.DecodeSettings}
	res, err := decoder.Decode(body)
	if err != nil {
		return nil, err
	}

	// Surface the reply's cluster time before error handling so the session
	// is updated even for failed commands.
	if op.Client != nil {
		if val, lerr := res.LookupErr("$clusterTime"); lerr == nil {
			op.Client.AdvanceClusterTime(docx.Doc{{Key: "$clusterTime", Value: val}})
		}
	}

	return res, extractError(res)
}

// decompressWireMessage handles decompressing a wiremessage without the
// header.
func (op Operation) decompressWireMessage(wm []byte) (wiremessage.OpCode, []byte, error) {
	opcode, rem, ok := wiremessage.ReadCompressedOriginalOpCode(wm)
	if !ok {
		return 0, nil, errors.New("malformed OP_COMPRESSED: missing original opcode")
	}
	uncompressedSize, rem, ok := wiremessage.ReadCompressedUncompressedSize(rem)
	if !ok {
		return 0, nil, errors.New("malformed OP_COMPRESSED: missing uncompressed size")
	}
	compressorID, rem, ok := wiremessage.ReadCompressedCompressorID(rem)
	if !ok {
		return 0, nil, errors.New("malformed OP_COMPRESSED: missing compressor ID")
	}

	opts := CompressionOpts{
		Compressor:       compressorID,
		UncompressedSize: uncompressedSize,
	}
	uncompressed, err := DecompressPayload(rem, opts)
	if err != nil {
		return 0, nil, err
	}
	return opcode, uncompressed, nil
}

// networkError wraps the provided error in an Error with label NetworkError.
// The wrapped error is preserved so cancellation remains observable via
// errors.Is.
func (op Operation) networkError(err error) error {
	if err == nil {
		return nil
	}
	return Error{Message: err.Error(), Labels: []string{NetworkError}, Wrapped: err}
}

func (op Operation) logger() *logger.Logger {
	if op.Logger != nil {
		return op.Logger
	}
	return operationLogger
}
