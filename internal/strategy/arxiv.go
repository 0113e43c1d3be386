package strategy

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"distill/internal/services"
)

// Arxiv handles arxiv.org abstract pages. It records the title, authors,
// and abstract, then delegates to the PDF strategy for the full paper.
type Arxiv struct {
	downloader
}

// NewArxiv builds the arxiv abstract-page strategy.
func NewArxiv(fetcher Downloader) *Arxiv {
	return &Arxiv{downloader{fetcher: fetcher}}
}

func (s *Arxiv) Name() string { return "arxiv" }

func (s *Arxiv) CanHandle(rawURL string, _ http.Header) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	return host == "arxiv.org" && strings.HasPrefix(parsed.Path, "/abs/")
}

func (s *Arxiv) Extract(raw *RawContent, pageURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "strategy", "arxiv", "parse abstract page", err)
	}

	title := strings.TrimSpace(doc.Find("h1.title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	authors := strings.TrimSpace(doc.Find("div.authors").First().Text())
	authors = strings.TrimSpace(strings.TrimPrefix(authors, "Authors:"))

	abstract := strings.TrimSpace(doc.Find("blockquote.abstract").First().Text())
	abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

	pdfURL := pdfURLFromAbs(pageURL)
	if pdfURL == "" {
		return nil, services.Wrap(services.ErrValidation, "strategy", "arxiv", "derive pdf url from "+pageURL, nil)
	}

	extraction := &Extraction{
		Content:    abstract,
		Title:      title,
		Author:     authors,
		DelegateTo: pdfURL,
	}
	if abstract != "" {
		extraction.Metadata = map[string]string{"abstract": abstract}
	}
	return extraction, nil
}

// PrepareForLLM exists to satisfy the interface; abstract pages always
// delegate, so only the abstract would ever be summarized here.
func (s *Arxiv) PrepareForLLM(extraction *Extraction) Payload {
	return Payload{Content: extraction.Content, Title: extraction.Title}
}

func pdfURLFromAbs(absURL string) string {
	parsed, err := url.Parse(absURL)
	if err != nil {
		return ""
	}
	if !strings.HasPrefix(parsed.Path, "/abs/") {
		return ""
	}
	parsed.Path = "/pdf/" + strings.TrimPrefix(parsed.Path, "/abs/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
