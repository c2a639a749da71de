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


// Package search provides the embedding index used for retrieval.
//
// The Store keeps an in-memory cache of document vectors that is written
// through to the document repository. The repository is the source of
// truth: Initialize rebuilds the cache from it and backfills any document
// that has no embedding yet.
//
// Search is brute-force cosine similarity over the cache. Results below the
// similarity threshold are dropped, the rest are ranked highest first and
// hydrated from the repository.
package search
