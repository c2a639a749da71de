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


package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/poiesic/glyph/ai"
)

// MockProvider is a test double for ai.Provider.
// It allows custom behavior injection via function fields; nil fields fall
// back to deterministic defaults.
type MockProvider struct {
	ProviderName string

	GenerateContentFunc func(ctx context.Context, prompt string) (string, error)
	ChatFunc            func(ctx context.Context, messages []ai.Message) (string, error)
	SummarizeFunc       func(ctx context.Context, text string) (string, error)
	GenerateTagsFunc    func(ctx context.Context, text string) ([]string, error)
	EmbedFunc           func(ctx context.Context, text string) ([]float32, error)

	calls      atomic.Int64
	embedCalls atomic.Int64
}

var _ ai.Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider with default deterministic behavior.
// Note: Returns concrete type to allow test assertions and behavior injection.
func NewMockProvider() *MockProvider {
	return &MockProvider{ProviderName: "mock"}
}

// NewFailingProvider returns a provider whose every method fails with err.
func NewFailingProvider(name string, err error) *MockProvider {
	return &MockProvider{
		ProviderName: name,
		GenerateContentFunc: func(context.Context, string) (string, error) {
			return "", err
		},
		ChatFunc: func(context.Context, []ai.Message) (string, error) {
			return "", err
		},
		SummarizeFunc: func(context.Context, string) (string, error) {
			return "", err
		},
		GenerateTagsFunc: func(context.Context, string) ([]string, error) {
			return nil, err
		},
		EmbedFunc: func(context.Context, string) ([]float32, error) {
			return nil, err
		},
	}
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockProvider) Info() ai.ProviderInfo {
	return ai.ProviderInfo{Name: m.Name(), Model: "mock-chat", EmbeddingModel: "mock-embed"}
}

func (m *MockProvider) GenerateContent(ctx context.Context, prompt string) (string, error) {
	m.calls.Add(1)
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt)
	}
	return "[]", nil
}

func (m *MockProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	m.calls.Add(1)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}
	if len(messages) == 0 {
		return "", ai.ErrEmptyResponse
	}
	return fmt.Sprintf("echo: %s", messages[len(messages)-1].Content), nil
}

func (m *MockProvider) Summarize(ctx context.Context, text string) (string, error) {
	m.calls.Add(1)
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	return "summary: " + ai.Truncate(text, 40), nil
}

func (m *MockProvider) GenerateTags(ctx context.Context, text string) ([]string, error) {
	m.calls.Add(1)
	if m.GenerateTagsFunc != nil {
		return m.GenerateTagsFunc(ctx, text)
	}
	return []string{"mock", "test"}, nil
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	m.embedCalls.Add(1)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return DeterministicVector(text, DefaultDimension), nil
}

// CallCount returns the number of times any method was called.
func (m *MockProvider) CallCount() int {
	return int(m.calls.Load())
}

// EmbedCallCount returns the number of Embed calls.
func (m *MockProvider) EmbedCallCount() int {
	return int(m.embedCalls.Load())
}

// Reset clears the call counts.
func (m *MockProvider) Reset() {
	m.calls.Store(0)
	m.embedCalls.Store(0)
}
