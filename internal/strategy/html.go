package strategy

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"distill/internal/services"
)

// HTML is the generic fallback strategy: any page it can parse with
// goquery yields title, author, and body text. Register it last.
type HTML struct {
	downloader
}

// NewHTML builds the fallback HTML strategy over the shared fetcher.
func NewHTML(fetcher Downloader) *HTML {
	return &HTML{downloader{fetcher: fetcher}}
}

func (s *HTML) Name() string { return "html" }

// CanHandle accepts every http(s) URL; content-type mismatches surface as
// extraction failures instead.
func (s *HTML) CanHandle(url string, _ http.Header) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func (s *HTML) Extract(raw *RawContent, url string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "strategy", "html", "parse document", err)
	}

	title := metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	author := metaContent(doc, `meta[name="author"]`)
	if author == "" {
		author = strings.TrimSpace(doc.Find(`[rel="author"]`).First().Text())
	}

	content := collectParagraphs(doc.Find("article"))
	if content == "" {
		content = collectParagraphs(doc.Find("main"))
	}
	if content == "" {
		content = collectParagraphs(doc.Selection)
	}
	if content == "" {
		return nil, services.Wrap(services.ErrValidation, "strategy", "html", "no readable text in "+url, nil)
	}

	return &Extraction{
		Content: content,
		Title:   title,
		Author:  author,
	}, nil
}

func (s *HTML) PrepareForLLM(extraction *Extraction) Payload {
	return Payload{Content: extraction.Content, Title: extraction.Title}
}

func metaContent(doc *goquery.Document, selector string) string {
	value, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(value)
}

func collectParagraphs(scope *goquery.Selection) string {
	var parts []string
	scope.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}
