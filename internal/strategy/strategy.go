package strategy

import (
	"context"
	"net/http"
)

// RawContent is the downloaded form of a content URL before extraction.
type RawContent struct {
	Body        []byte
	ContentType string
	Header      http.Header
	// FinalURL is the effective URL after redirects.
	FinalURL string
}

// Extraction is the structured result a strategy produces from raw content.
type Extraction struct {
	Content string
	Title   string
	Author  string
	// DelegateTo, when set, hands the item to whichever strategy matches
	// the new URL instead of finishing extraction here.
	DelegateTo string
	// SkipProcessing short-circuits the pipeline: the item completes
	// without a summarization pass.
	SkipProcessing bool
	Metadata       map[string]string
}

// Payload is the summarizer-ready form of an extraction.
type Payload struct {
	Content string
	Title   string
	// Binary marks payloads that are raw document bytes rather than text.
	Binary bool
}

// Strategy extracts usable content from one family of URLs.
//
// CanHandle must be pure: same url and header always produce the same
// answer, with no I/O.
type Strategy interface {
	Name() string
	CanHandle(url string, header http.Header) bool
	Download(ctx context.Context, url string) (*RawContent, error)
	Extract(raw *RawContent, url string) (*Extraction, error)
	PrepareForLLM(extraction *Extraction) Payload
}

// Registry resolves URLs to strategies. Registration order is priority
// order; the first strategy whose CanHandle returns true wins, so
// resolution is deterministic for a fixed registration sequence.
type Registry struct {
	strategies []Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a strategy. Later registrations have lower priority.
func (r *Registry) Register(s Strategy) {
	if s == nil {
		return
	}
	r.strategies = append(r.strategies, s)
}

// Resolve returns the first registered strategy that can handle the URL.
func (r *Registry) Resolve(url string, header http.Header) (Strategy, bool) {
	for _, s := range r.strategies {
		if s.CanHandle(url, header) {
			return s, true
		}
	}
	return nil, false
}

// Strategies returns the registered strategies in priority order.
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}
