package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoProviderAvailable indicates no provider could serve a capability,
	// either because none is configured or because every one failed.
	ErrNoProviderAvailable = errors.New("no AI provider available")

	// ErrUnsupported indicates a provider does not implement a capability.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrEmptyResponse indicates a provider returned no content.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Capability names an operation routed through the provider chain.
type Capability string

const (
	CapabilityGenerate  Capability = "generation"
	CapabilityChat      Capability = "chat"
	CapabilitySummarize Capability = "summarization"
	CapabilityTags      Capability = "tagging"
	CapabilityEmbed     Capability = "embedding"
)

// ProviderFailure records one failed attempt in the chain.
type ProviderFailure struct {
	Provider string
	Err      error
}

// NoProviderError is returned when no provider in the chain succeeded.
// It matches ErrNoProviderAvailable with errors.Is.
type NoProviderError struct {
	Capability Capability
	Attempts   []ProviderFailure
	Hint       string
}

func (e *NoProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrNoProviderAvailable, e.Hint)
	if len(e.Attempts) > 0 {
		b.WriteString(" (")
		for i, a := range e.Attempts {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %v", a.Provider, a.Err)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *NoProviderError) Is(target error) bool {
	return target == ErrNoProviderAvailable
}
