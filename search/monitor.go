package search

import "github.com/poiesic/glyph/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	OnSearchStart(query string, limit int)
	OnQueryEmbedded(dimension int)
	OnCandidatesScored(scanned, kept int)
	OnSearchComplete(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) OnSearchStart(_ string, _ int)           {}
func (n *noopMonitor) OnQueryEmbedded(_ int)                   {}
func (n *noopMonitor) OnCandidatesScored(_, _ int)             {}
func (n *noopMonitor) OnSearchComplete(_ []*core.SearchResult) {}
