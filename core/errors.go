// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a document or task does not exist.
var ErrNotFound = errors.New("record not found")

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTask indicates a Task failed validation.
	ErrInvalidTask = errors.New("invalid task")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyTitle indicates a task title is blank.
	ErrEmptyTitle = errors.New("task title cannot be empty")

	// ErrInvalidStatus indicates an unknown TaskStatus value.
	ErrInvalidStatus = errors.New("invalid task status")
)

// Ingestion input errors
var (
	// ErrUnsupportedEncoding indicates file content is not valid UTF-8 text.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrExtractionFailed indicates text could not be extracted from a file.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrIsDirectory indicates a file was expected but the path is a directory.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrNotDirectory indicates a directory was expected but the path is not one.
	ErrNotDirectory = errors.New("path is not a directory")
)

// IngestionError reports a failure to ingest a single file.
type IngestionError struct {
	Path string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to ingest %s: %v", e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
