package dispatch

import (
	"context"
	"log/slog"

	"distill/internal/logging"
	"distill/internal/queue"
	"distill/internal/services"
	"distill/internal/textutil"
)

// duplicateTitleThreshold is the cosine similarity above which two
// headlines in one scrape batch are treated as the same story.
const duplicateTitleThreshold = 0.9

// CollectedItem is one row a collector discovered.
type CollectedItem struct {
	ContentType queue.ContentType
	URL         string
	Title       string
	Metadata    queue.Metadata
}

// Collector discovers content for a named source. Implementations live
// outside this module; the scrape handler only routes to them.
type Collector interface {
	Collect(ctx context.Context, source string) ([]CollectedItem, error)
}

// ContentWorker is the slice of the content worker the task handlers
// drive; satisfied by *processor.Processor.
type ContentWorker interface {
	ProcessContent(ctx context.Context, contentID int64, workerID string) error
	SummarizeExisting(ctx context.Context, contentID int64) error
}

// ScrapeHandler routes scrape tasks to registered collectors, inserts the
// rows they return, and enqueues a process_content task per new row.
type ScrapeHandler struct {
	store      *queue.Store
	collectors map[string]Collector
	logger     *slog.Logger
}

func NewScrapeHandler(store *queue.Store, logger *slog.Logger) *ScrapeHandler {
	return &ScrapeHandler{
		store:      store,
		collectors: make(map[string]Collector),
		logger:     logging.NewComponentLogger(logger, "scrape"),
	}
}

// RegisterCollector binds a collector to a source name.
func (h *ScrapeHandler) RegisterCollector(source string, collector Collector) {
	h.collectors[source] = collector
}

func (h *ScrapeHandler) Handle(ctx context.Context, task *queue.Task) error {
	var payload queue.ScrapePayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		return services.Wrap(services.ErrValidation, "scrape", "decode", "bad payload", err)
	}
	collector, ok := h.collectors[payload.Source]
	if !ok {
		return services.Wrap(services.ErrConfiguration, "scrape", "route",
			"no collector registered for source "+payload.Source, nil)
	}

	collected, err := collector.Collect(ctx, payload.Source)
	if err != nil {
		return err
	}

	inserted := 0
	var seenTitles []*textutil.Fingerprint
	for _, entry := range collected {
		if entry.URL == "" {
			continue
		}
		existing, err := h.store.FindContentByURL(ctx, entry.URL)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		// Aggregators list the same story under different URLs; near-
		// identical headlines within one batch are duplicates.
		if fp := textutil.NewFingerprint(entry.Title); fp != nil {
			duplicate := false
			for _, seen := range seenTitles {
				if textutil.CosineSimilarity(fp, seen) >= duplicateTitleThreshold {
					duplicate = true
					break
				}
			}
			if duplicate {
				h.logger.Debug("skipping near-duplicate headline",
					logging.String(logging.FieldURL, entry.URL),
					logging.String("title", entry.Title))
				continue
			}
			seenTitles = append(seenTitles, fp)
		}

		item, err := h.store.NewContent(ctx, entry.ContentType, entry.URL, entry.Metadata.Encode())
		if err != nil {
			return err
		}
		if entry.Title != "" {
			item.Title = entry.Title
			if err := h.store.UpdateContent(ctx, item); err != nil {
				return err
			}
		}
		if _, err := h.store.Enqueue(ctx, queue.TaskProcessContent, &item.ID, ""); err != nil {
			return err
		}
		inserted++
	}

	h.logger.Info("scrape finished",
		logging.String("source", payload.Source),
		logging.Int("discovered", len(collected)),
		logging.Int("inserted", inserted))
	return nil
}

// NewProcessContentHandler routes process_content tasks into the content
// worker, using the task's claimant as the checkout holder.
func NewProcessContentHandler(worker ContentWorker) Handler {
	return HandlerFunc(func(ctx context.Context, task *queue.Task) error {
		if task.ContentID == nil {
			return services.Wrap(services.ErrValidation, "dispatch", "process_content", "task has no content id", nil)
		}
		return worker.ProcessContent(ctx, *task.ContentID, task.ClaimedBy)
	})
}

// NewSummarizeHandler routes summarize tasks into the summarization-only
// path of the content worker.
func NewSummarizeHandler(worker ContentWorker) Handler {
	return HandlerFunc(func(ctx context.Context, task *queue.Task) error {
		if task.ContentID == nil {
			return services.Wrap(services.ErrValidation, "dispatch", "summarize", "task has no content id", nil)
		}
		return worker.SummarizeExisting(ctx, *task.ContentID)
	})
}
