package main

import (
	"log/slog"

	"distill/internal/audio"
	"distill/internal/config"
	"distill/internal/dispatch"
	"distill/internal/fetch"
	"distill/internal/processor"
	"distill/internal/queue"
	"distill/internal/services/llm"
	"distill/internal/services/whisper"
	"distill/internal/strategy"
)

// buildDispatcher wires the extraction strategies, collaborators, and task
// handlers. The returned cleanup closes the shared fetcher.
func buildDispatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*dispatch.Dispatcher, func()) {
	fetcher := fetch.NewFetcher(cfg, logger)
	registry := buildRegistry(fetcher)

	summarizer := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	transcription := whisper.NewService(whisper.Config{
		Model:       cfg.Transcriber.Model,
		CUDAEnabled: cfg.Transcriber.CUDAEnabled,
		Language:    cfg.Transcriber.Language,
	})

	worker := processor.New(store, registry, summarizer, cfg, logger)

	dispatcher := dispatch.New(cfg, store, worker, logger)
	dispatcher.RegisterHandler(queue.TaskScrape, dispatch.NewScrapeHandler(store, logger))
	dispatcher.RegisterHandler(queue.TaskProcessContent, dispatch.NewProcessContentHandler(worker))
	dispatcher.RegisterHandler(queue.TaskDownloadAudio, audio.NewDownloader(store, fetcher, cfg, logger))
	dispatcher.RegisterHandler(queue.TaskTranscribe, audio.NewTranscriber(store, transcription, cfg, logger))
	dispatcher.RegisterHandler(queue.TaskSummarize, dispatch.NewSummarizeHandler(worker))

	return dispatcher, func() { _ = fetcher.Close() }
}

// buildRegistry registers extraction strategies in priority order: the
// specific ones first, the generic HTML fallback last.
func buildRegistry(fetcher *fetch.Fetcher) *strategy.Registry {
	registry := strategy.NewRegistry()
	registry.Register(strategy.NewArxiv(fetcher))
	registry.Register(strategy.NewPDF(fetcher))
	registry.Register(strategy.NewImage(fetcher))
	registry.Register(strategy.NewPodcast(fetcher))
	registry.Register(strategy.NewHTML(fetcher))
	return registry
}
