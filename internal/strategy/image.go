package strategy

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".svg":  {},
	".avif": {},
}

// Image handles bare image links. There is nothing to summarize, so the
// extraction marks the item skip-processing and the pipeline completes it
// without a summary.
type Image struct {
	downloader
}

// NewImage builds the image short-circuit strategy.
func NewImage(fetcher Downloader) *Image {
	return &Image{downloader{fetcher: fetcher}}
}

func (s *Image) Name() string { return "image" }

func (s *Image) CanHandle(rawURL string, header http.Header) bool {
	if header != nil {
		contentType := strings.ToLower(header.Get("Content-Type"))
		if strings.HasPrefix(contentType, "image/") {
			return true
		}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(parsed.Path))]
	return ok
}

func (s *Image) Extract(raw *RawContent, rawURL string) (*Extraction, error) {
	return &Extraction{
		SkipProcessing: true,
		Metadata: map[string]string{
			"content_type": raw.ContentType,
		},
	}, nil
}

func (s *Image) PrepareForLLM(extraction *Extraction) Payload {
	return Payload{}
}
