package strategy

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"

	"distill/internal/queue"
	"distill/internal/services"
)

// Podcast handles RSS feeds carrying audio enclosures. Extraction records
// the enclosure URL so the processor can hand the item to the chained
// audio pipeline (download, transcribe, summarize).
type Podcast struct {
	downloader
}

// NewPodcast builds the podcast feed strategy.
func NewPodcast(fetcher Downloader) *Podcast {
	return &Podcast{downloader{fetcher: fetcher}}
}

func (s *Podcast) Name() string { return "podcast" }

func (s *Podcast) CanHandle(rawURL string, header http.Header) bool {
	if header != nil {
		contentType := strings.ToLower(header.Get("Content-Type"))
		if strings.Contains(contentType, "rss") ||
			strings.Contains(contentType, "atom") ||
			strings.Contains(contentType, "xml") {
			return true
		}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	lowered := strings.ToLower(parsed.Path)
	return strings.HasSuffix(lowered, ".rss") ||
		strings.HasSuffix(lowered, ".xml") ||
		strings.HasSuffix(strings.TrimSuffix(lowered, "/"), "/feed")
}

// rssFeed models the subset of RSS 2.0 the pipeline needs.
type rssFeed struct {
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Description string `xml:"description"`
			Enclosure   struct {
				URL  string `xml:"url,attr"`
				Type string `xml:"type,attr"`
			} `xml:"enclosure"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (s *Podcast) Extract(raw *RawContent, rawURL string) (*Extraction, error) {
	var feed rssFeed
	if err := xml.Unmarshal(raw.Body, &feed); err != nil {
		return nil, services.Wrap(services.ErrValidation, "strategy", "podcast", "parse feed", err)
	}

	for _, item := range feed.Channel.Items {
		enclosureURL := strings.TrimSpace(item.Enclosure.URL)
		if enclosureURL == "" {
			continue
		}
		if item.Enclosure.Type != "" && !strings.HasPrefix(item.Enclosure.Type, "audio/") {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = strings.TrimSpace(feed.Channel.Title)
		}
		return &Extraction{
			Content: strings.TrimSpace(item.Description),
			Title:   title,
			Metadata: map[string]string{
				queue.MetaAudioURL: enclosureURL,
			},
		}, nil
	}

	return nil, services.Wrap(services.ErrValidation, "strategy", "podcast", "no audio enclosure in feed "+rawURL, nil)
}

// PrepareForLLM returns the episode description; the real summary comes
// later from the transcript.
func (s *Podcast) PrepareForLLM(extraction *Extraction) Payload {
	return Payload{Content: extraction.Content, Title: extraction.Title}
}
