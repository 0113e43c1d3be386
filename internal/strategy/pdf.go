package strategy

import (
	"net/http"
	"net/url"
	"strings"

	"distill/internal/services"
)

// PDF handles document URLs whose payload is a PDF. The raw bytes are
// carried through as a binary payload for the summarizer.
type PDF struct {
	downloader
}

// NewPDF builds the PDF document strategy.
func NewPDF(fetcher Downloader) *PDF {
	return &PDF{downloader{fetcher: fetcher}}
}

func (s *PDF) Name() string { return "pdf" }

func (s *PDF) CanHandle(rawURL string, header http.Header) bool {
	if header != nil {
		contentType := strings.ToLower(header.Get("Content-Type"))
		if strings.Contains(contentType, "application/pdf") {
			return true
		}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf") {
		return true
	}
	// arxiv serves PDFs from /pdf/ paths without an extension.
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	return host == "arxiv.org" && strings.HasPrefix(parsed.Path, "/pdf/")
}

func (s *PDF) Extract(raw *RawContent, rawURL string) (*Extraction, error) {
	if len(raw.Body) == 0 {
		return nil, services.Wrap(services.ErrValidation, "strategy", "pdf", "empty document at "+rawURL, nil)
	}
	if !strings.HasPrefix(string(raw.Body[:min(4, len(raw.Body))]), "%PDF") {
		return nil, services.Wrap(services.ErrValidation, "strategy", "pdf", "response is not a pdf document", nil)
	}
	return &Extraction{
		Content: string(raw.Body),
		Metadata: map[string]string{
			"content_type": "application/pdf",
		},
	}, nil
}

func (s *PDF) PrepareForLLM(extraction *Extraction) Payload {
	return Payload{Content: extraction.Content, Title: extraction.Title, Binary: true}
}
