package audio

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"distill/internal/config"
	"distill/internal/fetch"
	"distill/internal/logging"
	"distill/internal/queue"
	"distill/internal/services"
	"distill/internal/textutil"
)

// Downloader handles download_audio tasks: it fetches the episode file into
// the audio directory and chains a transcribe task. It never checks the
// content item out; once the processor hands off, the task chain owns it.
type Downloader struct {
	store   *queue.Store
	fetcher *fetch.Fetcher
	cfg     *config.Config
	logger  *slog.Logger
}

func NewDownloader(store *queue.Store, fetcher *fetch.Fetcher, cfg *config.Config, logger *slog.Logger) *Downloader {
	return &Downloader{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "audio-download"),
	}
}

func (d *Downloader) Handle(ctx context.Context, task *queue.Task) error {
	item, meta, err := loadTaskItem(ctx, d.store, task)
	if err != nil || item == nil {
		return err
	}
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, d.logger)

	var payload queue.DownloadAudioPayload
	if task.PayloadJSON != "" {
		if err := queue.DecodePayload(task, &payload); err != nil {
			return services.Wrap(services.ErrValidation, "audio", "download", "bad payload", err)
		}
	}
	audioURL := payload.AudioURL
	if audioURL == "" {
		audioURL, _ = meta.GetString(queue.MetaAudioURL)
	}
	if audioURL == "" {
		return services.Wrap(services.ErrValidation, "audio", "download", "task has no audio url", nil)
	}

	destPath := filepath.Join(d.cfg.Paths.AudioDir, episodeFilename(item.ID, audioURL))
	written, err := d.fetcher.Download(ctx, audioURL, destPath)
	if err != nil {
		return err
	}
	logger.Info("audio downloaded",
		logging.String(logging.FieldURL, audioURL),
		logging.String("path", destPath),
		logging.Int64("bytes", written))

	meta[queue.MetaAudioPath] = destPath
	item.MetadataJSON = meta.Encode()
	if err := d.store.UpdateContent(ctx, item); err != nil {
		return err
	}

	next, err := queue.EncodePayload(queue.TranscribePayload{FilePath: destPath})
	if err != nil {
		return err
	}
	if _, err := d.store.Enqueue(ctx, queue.TaskTranscribe, &item.ID, next); err != nil {
		return err
	}
	return nil
}

// episodeFilename derives a stable per-item filename, keeping the source
// basename and extension when the URL has them.
func episodeFilename(itemID int64, audioURL string) string {
	base := ""
	ext := ".mp3"
	if parsed, err := url.Parse(audioURL); err == nil {
		if e := path.Ext(parsed.Path); e != "" {
			ext = e
		}
		base = textutil.SanitizeFileName(strings.TrimSuffix(path.Base(parsed.Path), path.Ext(parsed.Path)))
	}
	if base == "" || base == "/" || base == "." {
		return fmt.Sprintf("item-%d%s", itemID, ext)
	}
	return fmt.Sprintf("item-%d-%s%s", itemID, base, ext)
}

// loadTaskItem resolves the content item behind a chained task, decoding its
// metadata. A terminal item yields (nil, nil, nil): the task is stale and
// completes without work.
func loadTaskItem(ctx context.Context, store *queue.Store, task *queue.Task) (*queue.ContentItem, queue.Metadata, error) {
	if task.ContentID == nil {
		return nil, nil, services.Wrap(services.ErrValidation, "audio", "load", "task has no content id", nil)
	}
	item, err := store.GetContent(ctx, *task.ContentID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "audio", "load",
			fmt.Sprintf("content item %d not found", *task.ContentID), nil)
	}
	if item.Status.IsTerminal() {
		return nil, nil, nil
	}
	return item, queue.DecodeMetadata(item.MetadataJSON), nil
}
