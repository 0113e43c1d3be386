package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"resty.dev/v3"

	"distill/internal/config"
	"distill/internal/logging"
	"distill/internal/services"
)

// Result captures a completed download.
type Result struct {
	Body        []byte
	ContentType string
	StatusCode  int
	Header      http.Header
	// FinalURL is the effective URL after redirects.
	FinalURL string
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// Fetcher downloads content over HTTP with shared headers, timeouts, and
// failure classification.
type Fetcher struct {
	client    *resty.Client
	permanent map[int]struct{}
	logger    *slog.Logger
}

// NewFetcher builds a Fetcher from application configuration.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	client := resty.New()
	client.SetTimeout(time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second)
	client.SetHeader("User-Agent", cfg.Fetch.UserAgent)

	permanent := make(map[int]struct{}, len(cfg.Fetch.PermanentStatuses))
	for _, status := range cfg.Fetch.PermanentStatuses {
		permanent[status] = struct{}{}
	}

	return &Fetcher{
		client:    client,
		permanent: permanent,
		logger:    logging.NewComponentLogger(logger, "fetch"),
	}
}

// Close releases the underlying HTTP client resources.
func (f *Fetcher) Close() error {
	return f.client.Close()
}

// Get downloads the resource at url and returns the response body along with
// transport metadata. Non-2xx responses return a classified error wrapping
// StatusError.
func (f *Fetcher) Get(ctx context.Context, url string) (*Result, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "get", url, err)
	}

	result := &Result{
		Body:        resp.Bytes(),
		ContentType: resp.Header().Get("Content-Type"),
		StatusCode:  resp.StatusCode(),
		Header:      resp.Header(),
		FinalURL:    finalURL(resp, url),
	}

	if resp.IsError() {
		return result, f.classifyStatus(url, resp.StatusCode())
	}

	f.logger.Debug("fetched resource",
		logging.String(logging.FieldURL, url),
		logging.Int("status", resp.StatusCode()),
		logging.Int("bytes", len(result.Body)))
	return result, nil
}

// Download streams the resource at url into destPath, creating parent
// directories as needed. It returns the number of bytes written.
func (f *Fetcher) Download(ctx context.Context, url, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "fetch", "download", "create destination directory", err)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "fetch", "download", url, err)
	}
	body := resp.Body
	defer body.Close()

	if resp.IsError() {
		return 0, f.classifyStatus(url, resp.StatusCode())
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "fetch", "download", "create destination file", err)
	}
	defer file.Close()

	written, err := io.Copy(file, body)
	if err != nil {
		os.Remove(destPath)
		return 0, services.Wrap(services.ErrTransient, "fetch", "download", "stream response body", err)
	}

	f.logger.Debug("downloaded file",
		logging.String(logging.FieldURL, url),
		logging.String("path", destPath),
		logging.Int64("bytes", written))
	return written, nil
}

func (f *Fetcher) classifyStatus(url string, status int) error {
	statusErr := &StatusError{URL: url, StatusCode: status}
	if _, ok := f.permanent[status]; ok {
		return services.Wrap(services.ErrPermanent, "fetch", "get", "", statusErr)
	}
	return services.Wrap(services.ErrTransient, "fetch", "get", "", statusErr)
}

func finalURL(resp *resty.Response, fallback string) string {
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		return resp.RawResponse.Request.URL.String()
	}
	return fallback
}
