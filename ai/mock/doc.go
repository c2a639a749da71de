// Package mock provides test double implementations of ai.Provider.
//
// The mocks allow tests to run without external AI service dependencies and
// enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	p := mock.NewMockProvider()
//	vec, err := p.Embed(ctx, "test")
//
//	// Custom behavior injection
//	p.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//
//	// A provider that always fails, for fallback tests
//	down := mock.NewFailingProvider("ollama", errors.New("connection refused"))
//
//	// Check call counts
//	count := p.CallCount()
//
// # Default Behavior
//
//   - Embed: deterministic unit vectors derived from an FNV hash of the text
//   - Summarize: "summary: " followed by the start of the text
//   - GenerateTags: ["mock", "test"]
//   - Chat: echoes the last message
//   - GenerateContent: an empty JSON array
package mock
