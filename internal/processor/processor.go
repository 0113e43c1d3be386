package processor

import (
	"context"
	"log/slog"
	"time"

	"distill/internal/config"
	"distill/internal/logging"
	"distill/internal/queue"
	"distill/internal/services"
	"distill/internal/services/llm"
	"distill/internal/strategy"
	"distill/internal/textutil"
)

// Summarizer abstracts the LLM collaborator; satisfied by *llm.Client.
type Summarizer interface {
	Summarize(ctx context.Context, req llm.SummaryRequest) (llm.Summary, error)
}

// Processor is the content worker: it turns a claimed content item into a
// completed, failed, or skipped one.
type Processor struct {
	store      *queue.Store
	registry   *strategy.Registry
	summarizer Summarizer
	cfg        *config.Config
	logger     *slog.Logger
}

// New wires a content worker.
func New(store *queue.Store, registry *strategy.Registry, summarizer Summarizer, cfg *config.Config, logger *slog.Logger) *Processor {
	return &Processor{
		store:      store,
		registry:   registry,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "processor"),
	}
}

// ProcessContent claims the item and runs the pipeline. A failed claim
// (item absent, already held, or terminal) is a no-op so duplicate task
// enqueues stay harmless.
func (p *Processor) ProcessContent(ctx context.Context, contentID int64, workerID string) error {
	item, err := p.store.CheckoutContent(ctx, contentID, workerID)
	if err != nil {
		return err
	}
	if item == nil {
		p.logger.Debug("item not claimable, skipping",
			logging.Int64(logging.FieldItemID, contentID),
			logging.String(logging.FieldWorkerID, workerID))
		return nil
	}
	return p.Process(ctx, item, workerID)
}

// Process runs the pipeline on an item the caller already holds a checkout
// for. The claim is released on every exit path: terminal checkin on
// success or permanent failure, retry checkin on transient failure.
func (p *Processor) Process(ctx context.Context, item *queue.ContentItem, workerID string) error {
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithWorkerID(ctx, workerID)
	logger := logging.WithContext(ctx, p.logger)

	err := p.run(ctx, item, workerID, logger)
	if err == nil {
		return nil
	}

	if services.IsPermanent(err) {
		logger.Error("permanent failure", logging.Error(err))
		if _, checkinErr := p.store.Checkin(ctx, item.ID, workerID, queue.StatusFailed, err.Error()); checkinErr != nil {
			logger.Error("checkin after permanent failure", logging.Error(checkinErr))
		}
		return err
	}

	status, checkinErr := p.store.CheckinRetry(ctx, item.ID, workerID, err.Error(), p.cfg.Workflow.MaxRetries)
	if checkinErr != nil {
		logger.Error("checkin retry", logging.Error(checkinErr))
		return err
	}
	logger.Warn("transient failure",
		logging.Error(err),
		logging.String("next_status", string(status)),
		logging.Int("retry_count", item.RetryCount+1))
	return err
}

// run performs the download/extract/summarize state machine. It returns nil
// only after a successful terminal (or handoff) checkin.
func (p *Processor) run(ctx context.Context, item *queue.ContentItem, workerID string, logger *slog.Logger) error {
	meta := queue.DecodeMetadata(item.MetadataJSON)

	// News aggregator rows point at the aggregator; the collector records
	// the real target under resolved_url.
	currentURL := item.URL
	if resolved, ok := meta.GetString(queue.MetaResolvedURL); ok && resolved != "" {
		currentURL = resolved
	}

	var (
		extraction *strategy.Extraction
		active     strategy.Strategy
		depth      int
	)
	for {
		resolved, ok := p.registry.Resolve(currentURL, nil)
		if !ok {
			return services.Wrap(services.ErrPermanent, "processor", "resolve", "no strategy for url "+currentURL, nil)
		}

		raw, err := resolved.Download(ctx, currentURL)
		if err != nil {
			return err
		}

		// The response headers may identify the payload more precisely
		// than the URL did (e.g. an extensionless PDF link).
		if refined, ok := p.registry.Resolve(currentURL, raw.Header); ok && refined.Name() != resolved.Name() {
			logger.Debug("strategy refined by response headers",
				logging.String(logging.FieldStrategy, refined.Name()),
				logging.String("previous", resolved.Name()))
			resolved = refined
		}

		ext, err := resolved.Extract(raw, currentURL)
		if err != nil {
			return err
		}

		mergeExtraction(meta, ext, raw, item.URL)
		if item.Title == "" && ext.Title != "" {
			item.Title = textutil.CleanTitle(ext.Title)
		}

		if ext.DelegateTo != "" && ext.DelegateTo != currentURL {
			depth++
			if depth > p.cfg.Workflow.MaxDelegationDepth {
				return services.Wrap(services.ErrPermanent, "processor", "delegate", "delegation depth exceeded", nil)
			}
			logger.Info("delegating to new url",
				logging.String(logging.FieldStrategy, resolved.Name()),
				logging.String(logging.FieldURL, ext.DelegateTo),
				logging.Int("depth", depth))
			currentURL = ext.DelegateTo
			continue
		}

		extraction = ext
		active = resolved
		break
	}

	meta[queue.MetaStrategy] = active.Name()
	meta[queue.MetaExtractedAt] = time.Now().UTC().Format(time.RFC3339)

	if extraction.SkipProcessing {
		item.MetadataJSON = meta.Encode()
		if err := p.store.UpdateContent(ctx, item); err != nil {
			return err
		}
		if _, err := p.store.Checkin(ctx, item.ID, workerID, queue.StatusCompleted, ""); err != nil {
			return err
		}
		logger.Info("completed without summary",
			logging.String(logging.FieldStrategy, active.Name()))
		return nil
	}

	if audioURL, ok := meta.GetString(queue.MetaAudioURL); ok && audioURL != "" {
		return p.handoffAudio(ctx, item, workerID, meta, audioURL, logger)
	}

	payload := active.PrepareForLLM(extraction)
	// Persist the text so a later SUMMARIZE task can rerun summarization
	// without refetching. Binary payloads (PDF bytes) stay out of metadata.
	if !payload.Binary && payload.Content != "" {
		meta[queue.MetaContent] = payload.Content
	}
	title := payload.Title
	if title == "" {
		title = item.Title
	}
	summary, err := p.summarizer.Summarize(ctx, llm.SummaryRequest{
		Content:     payload.Content,
		ContentKind: string(item.ContentType),
		Title:       title,
		Binary:      payload.Binary,
	})
	if err != nil {
		return err
	}

	applySummary(item, meta, summary)
	if item.Title == "" {
		item.Title = textutil.TitleFromURL(currentURL)
	}
	if err := p.store.UpdateContent(ctx, item); err != nil {
		return err
	}
	if _, err := p.store.Checkin(ctx, item.ID, workerID, queue.StatusCompleted, ""); err != nil {
		return err
	}
	logger.Info("completed with summary",
		logging.String(logging.FieldStrategy, active.Name()),
		logging.String("classification", summary.Classification))
	return nil
}

// handoffAudio persists the extraction, enqueues the audio download, and
// checks the item in still-processing: the chained tasks own it from here.
func (p *Processor) handoffAudio(ctx context.Context, item *queue.ContentItem, workerID string, meta queue.Metadata, audioURL string, logger *slog.Logger) error {
	item.MetadataJSON = meta.Encode()
	if err := p.store.UpdateContent(ctx, item); err != nil {
		return err
	}

	payload, err := queue.EncodePayload(queue.DownloadAudioPayload{AudioURL: audioURL})
	if err != nil {
		return err
	}
	taskID, err := p.store.Enqueue(ctx, queue.TaskDownloadAudio, &item.ID, payload)
	if err != nil {
		return err
	}
	if _, err := p.store.Checkin(ctx, item.ID, workerID, queue.StatusProcessing, ""); err != nil {
		return err
	}
	logger.Info("handed off to audio pipeline",
		logging.Int64(logging.FieldTaskID, taskID),
		logging.String(logging.FieldURL, audioURL))
	return nil
}

// SummarizeExisting runs the summarization-only path for an item that
// already carries extracted content or a transcript in its metadata. The
// chained audio tasks end here, so it operates without a checkout.
func (p *Processor) SummarizeExisting(ctx context.Context, contentID int64) error {
	item, err := p.store.GetContent(ctx, contentID)
	if err != nil {
		return err
	}
	if item == nil {
		return services.Wrap(services.ErrNotFound, "processor", "summarize", "content item missing", nil)
	}
	if item.Status.IsTerminal() {
		return nil
	}

	meta := queue.DecodeMetadata(item.MetadataJSON)
	content, _ := meta.GetString(queue.MetaTranscript)
	if content == "" {
		content, _ = meta.GetString(queue.MetaContent)
	}
	if content == "" {
		return services.Wrap(services.ErrValidation, "processor", "summarize", "no transcript or content to summarize", nil)
	}

	summary, err := p.summarizer.Summarize(ctx, llm.SummaryRequest{
		Content:     content,
		ContentKind: string(item.ContentType),
		Title:       item.Title,
	})
	if err != nil {
		return err
	}

	applySummary(item, meta, summary)
	item.Status = queue.StatusCompleted
	item.ErrorMessage = ""
	now := time.Now().UTC()
	item.ProcessedAt = &now
	if err := p.store.UpdateContent(ctx, item); err != nil {
		return err
	}
	logging.WithContext(services.WithItemID(ctx, item.ID), p.logger).Info("completed from transcript",
		logging.String("classification", summary.Classification))
	return nil
}

func mergeExtraction(meta queue.Metadata, ext *strategy.Extraction, raw *strategy.RawContent, originalURL string) {
	for key, value := range ext.Metadata {
		meta[key] = value
	}
	if ext.Author != "" {
		meta[queue.MetaAuthor] = ext.Author
	}
	if raw.FinalURL != "" && raw.FinalURL != originalURL {
		meta[queue.MetaResolvedURL] = raw.FinalURL
	}
}

func applySummary(item *queue.ContentItem, meta queue.Metadata, summary llm.Summary) {
	meta[queue.MetaSummary] = map[string]any{
		"title":         summary.Title,
		"overview":      summary.Overview,
		"bullet_points": summary.BulletPoints,
		"quotes":        summary.Quotes,
		"topics":        summary.Topics,
	}
	if item.Title == "" && summary.Title != "" {
		item.Title = summary.Title
	}
	if summary.Classification != "" {
		item.Classification = summary.Classification
	}
	item.MetadataJSON = meta.Encode()
	item.ErrorMessage = ""
}
