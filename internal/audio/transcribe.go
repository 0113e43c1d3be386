package audio

import (
	"context"
	"log/slog"
	"path/filepath"

	"distill/internal/config"
	"distill/internal/logging"
	"distill/internal/queue"
	"distill/internal/services"
	"distill/internal/services/whisper"
)

// TranscriptionService is the slice of the WhisperX wrapper the transcribe
// worker needs; satisfied by *whisper.Service.
type TranscriptionService interface {
	TranscribeFile(ctx context.Context, source, outputDir string) (whisper.Result, error)
}

// Transcriber handles transcribe tasks: it runs the downloaded episode
// through WhisperX, stores the transcript in metadata, and chains a
// summarize task.
type Transcriber struct {
	store   *queue.Store
	service TranscriptionService
	cfg     *config.Config
	logger  *slog.Logger
}

func NewTranscriber(store *queue.Store, service TranscriptionService, cfg *config.Config, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		store:   store,
		service: service,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "audio-transcribe"),
	}
}

func (t *Transcriber) Handle(ctx context.Context, task *queue.Task) error {
	item, meta, err := loadTaskItem(ctx, t.store, task)
	if err != nil || item == nil {
		return err
	}
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, t.logger)

	var payload queue.TranscribePayload
	if task.PayloadJSON != "" {
		if err := queue.DecodePayload(task, &payload); err != nil {
			return services.Wrap(services.ErrValidation, "audio", "transcribe", "bad payload", err)
		}
	}
	sourcePath := payload.FilePath
	if sourcePath == "" {
		sourcePath, _ = meta.GetString(queue.MetaAudioPath)
	}
	if sourcePath == "" {
		return services.Wrap(services.ErrValidation, "audio", "transcribe", "task has no audio path", nil)
	}

	result, err := t.service.TranscribeFile(ctx, sourcePath, filepath.Dir(sourcePath))
	if err != nil {
		return err
	}
	if result.Text == "" {
		return services.Wrap(services.ErrValidation, "audio", "transcribe", "empty transcript for "+sourcePath, nil)
	}
	logger.Info("transcription finished",
		logging.String("path", sourcePath),
		logging.Int("transcript_chars", len(result.Text)))

	meta[queue.MetaTranscript] = result.Text
	item.MetadataJSON = meta.Encode()
	if err := t.store.UpdateContent(ctx, item); err != nil {
		return err
	}

	if _, err := t.store.Enqueue(ctx, queue.TaskSummarize, &item.ID, ""); err != nil {
		return err
	}
	return nil
}
