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


// Package langchain implements ai.Provider on top of langchaingo.
//
// Every backend shares one Provider adapter that wraps an llms.Model for
// text generation and an optional embeddings.Embedder for vectors:
//
//   - NewOllama: local Ollama server, separate chat and embedding models
//   - NewOpenAI: any OpenAI-compatible API
//   - NewGemini: Google Gemini through the googleai client
//   - NewAnthropic: Claude models; chat only, Embed returns ai.ErrUnsupported
//
// NewProviders builds the configured backends in fallback order, skipping
// those without credentials, ready to be wrapped in an ai.Chain.
package langchain
