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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/glyph/core"
)

// PathIndexEntry maps a source path to the document ingested from it.
type PathIndexEntry struct {
	DocumentID  core.ID
	ContentHash string
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalPathIndexEntry serializes a PathIndexEntry to bytes.
func MarshalPathIndexEntry(e PathIndexEntry) []byte {
	size := varint.Uint64.Size(uint64(e.DocumentID)) + ord.String.Size(e.ContentHash)
	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(e.DocumentID), buf)
	ord.String.Marshal(e.ContentHash, buf[n:])
	return buf
}

// UnmarshalPathIndexEntry deserializes a PathIndexEntry from bytes.
func UnmarshalPathIndexEntry(data []byte) (PathIndexEntry, error) {
	var e PathIndexEntry
	id, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return e, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	hash, _, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return e, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	e.DocumentID = core.ID(id)
	e.ContentHash = hash
	return e, nil
}

// MarshalEmbedding encodes a vector as a JSON array. A nil vector encodes as nil.
func MarshalEmbedding(v []float32) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// UnmarshalEmbedding decodes a JSON array vector. Empty input yields nil.
func UnmarshalEmbedding(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return v, nil
}

// MarshalMetadata encodes metadata as a JSON object; nil encodes as "{}".
func MarshalMetadata(m core.Metadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// UnmarshalMetadata decodes JSON metadata. Empty input yields an empty map.
func UnmarshalMetadata(data []byte) (core.Metadata, error) {
	m := core.Metadata{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return m, nil
}
