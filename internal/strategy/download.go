package strategy

import (
	"context"

	"distill/internal/fetch"
)

// Downloader is how strategies retrieve raw content; satisfied by
// *fetch.Fetcher and by test fakes.
type Downloader interface {
	Get(ctx context.Context, url string) (*fetch.Result, error)
}

// downloader gives concrete strategies a shared Download implementation
// over the fetch collaborator.
type downloader struct {
	fetcher Downloader
}

func (d downloader) Download(ctx context.Context, url string) (*RawContent, error) {
	result, err := d.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return &RawContent{
		Body:        result.Body,
		ContentType: result.ContentType,
		Header:      result.Header,
		FinalURL:    result.FinalURL,
	}, nil
}
