// Copyright (C) StrandDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package driver

import (
	"fmt"
	"strings"

	"github.com/stranddb/strand-go-driver/x/docx"
)

// ValidationError indicates that a command document failed the field-name
// rules of its operation family. It is a configuration error and is never
// retried.
type ValidationError struct {
	Key     string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid field name %q: %s", ve.Key, ve.Message)
}

// FieldNameValidator validates the field names of a command document on the
// generic send path, so the rules of a write-command family are enforced
// uniformly rather than per operation. Validation is structural only; it never
// sends or receives data.
type FieldNameValidator interface {
	// Validate checks a single field name at the current level.
	Validate(key string) error

	// Child returns the validator for documents nested under key, or nil if
	// nested documents need no validation. For arrays of documents the child
	// validator is applied to each element.
	Child(key string) FieldNameValidator
}

// ValidateDocument walks doc, applying the validator at the root level and the
// validators obtained via Child to nested levels.
func ValidateDocument(doc docx.Doc, validator FieldNameValidator) error {
	if validator == nil {
		return nil
	}
	for _, elem := range doc {
		if err := validator.Validate(elem.Key); err != nil {
			return err
		}
		child := validator.Child(elem.Key)
		if child == nil {
			continue
		}
		switch elem.Value.Type() {
		case docx.TypeDocument:
			sub, _ := elem.Value.DocumentOK()
			if err := ValidateDocument(sub, child); err != nil {
				return err
			}
		case docx.TypeArray:
			arr, _ := elem.Value.ArrayOK()
			for _, val := range arr {
				sub, ok := val.DocumentOK()
				if !ok {
					continue
				}
				if err := ValidateDocument(sub, child); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// NoOpValidator accepts every field name.
type NoOpValidator struct{}

// Validate implements the FieldNameValidator interface.
func (NoOpValidator) Validate(string) error { return nil }

// Child implements the FieldNameValidator interface.
func (NoOpValidator) Child(string) FieldNameValidator { return nil }

// CollectionDocumentValidator enforces the rules for documents stored in a
// collection: field names must not begin with '$' and must not contain '.'.
// The rules apply at every nesting level.
type CollectionDocumentValidator struct{}

// Validate implements the FieldNameValidator interface.
func (CollectionDocumentValidator) Validate(key string) error {
	if strings.HasPrefix(key, "$") {
		return ValidationError{Key: key, Message: "stored document field names cannot begin with '$'"}
	}
	if strings.Contains(key, ".") {
		return ValidationError{Key: key, Message: "stored document field names cannot contain '.'"}
	}
	return nil
}

// Child implements the FieldNameValidator interface.
func (v CollectionDocumentValidator) Child(string) FieldNameValidator { return v }

// UpdateDocumentValidator enforces the rules for update specifications: every
// top-level field name must be a '$'-prefixed update operator. Nested
// documents are operator arguments and are unrestricted.
type UpdateDocumentValidator struct{}

// Validate implements the FieldNameValidator interface.
func (UpdateDocumentValidator) Validate(key string) error {
	if !strings.HasPrefix(key, "$") {
		return ValidationError{Key: key, Message: "update document field names must begin with '$'"}
	}
	return nil
}

// Child implements the FieldNameValidator interface.
func (UpdateDocumentValidator) Child(string) FieldNameValidator { return nil }

// ReplacementDocumentValidator enforces the rules for replacement documents:
// top-level field names must not begin with '$'; nested levels follow the
// stored-document rules.
type ReplacementDocumentValidator struct{}

// Validate implements the FieldNameValidator interface.
func (ReplacementDocumentValidator) Validate(key string) error {
	return CollectionDocumentValidator{}.Validate(key)
}

// Child implements the FieldNameValidator interface.
func (ReplacementDocumentValidator) Child(string) FieldNameValidator {
	return CollectionDocumentValidator{}
}

// MappedValidator validates the root of a command document with per-field
// child validators. Root field names themselves are unrestricted; only the
// mapped children are descended into.
type MappedValidator struct {
	Children map[string]FieldNameValidator
}

// Validate implements the FieldNameValidator interface.
func (MappedValidator) Validate(string) error { return nil }

// Child implements the FieldNameValidator interface.
func (mv MappedValidator) Child(key string) FieldNameValidator {
	return mv.Children[key]
}
