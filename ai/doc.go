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


// Package ai provides the language model abstractions used by glyph.
//
// The Provider interface is the whole capability surface the rest of the
// system needs: free-form generation, chat, summaries, tags and embeddings.
// Concrete backends live in sub-packages:
//
//   - ai/langchain: Ollama, OpenAI-compatible, Gemini and Anthropic backends
//   - ai/mock: test doubles with deterministic behavior
//
// # Fallback chain
//
// Chain is itself a Provider. It tries each configured provider in order,
// bounding every attempt with its own timeout, and returns the first
// success. When every provider fails, or none is configured, the error is a
// *NoProviderError that matches ErrNoProviderAvailable:
//
//	chain := ai.NewChain(providers, ai.WithCallTimeout(30*time.Second))
//	vec, err := chain.Embed(ctx, "hello")
//	if errors.Is(err, ai.ErrNoProviderAvailable) {
//	    // configuration problem, surface to the caller
//	}
//
// A cancelled parent context stops the chain immediately.
//
// # Configuration
//
// Config follows the functional options pattern:
//
//	cfg := ai.NewConfig(
//	    ai.WithProviders("ollama", "openai"),
//	    ai.WithOpenAI(key, "", "gpt-4o-mini", ""),
//	)
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package ai
