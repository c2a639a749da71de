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


// Package storage provides the storage abstraction layer for glyph.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. Two backends implement them:
//
//   - storage/badger: embedded key/value store, the default
//   - storage/sqlite: relational store with one row per document and task
//
// # Usage
//
//	docs, tasks, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer docs.Close()
//
// # Source of truth
//
// The persistent store is authoritative. The in-memory vector cache in
// package search is derived from it and can always be rebuilt by listing
// documents.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. Every method accepts a
// context.Context for cancellation.
package storage
