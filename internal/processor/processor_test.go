package processor_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"distill/internal/config"
	"distill/internal/fetch"
	"distill/internal/logging"
	"distill/internal/processor"
	"distill/internal/queue"
	"distill/internal/services"
	"distill/internal/services/llm"
	"distill/internal/strategy"
	"distill/internal/testsupport"
)

type fakeFetcher struct {
	pages map[string]*fetch.Result
	err   error
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (*fetch.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	result, ok := f.pages[url]
	if !ok {
		return nil, services.Wrap(services.ErrPermanent, "fetch", "get", "", &fetch.StatusError{URL: url, StatusCode: http.StatusNotFound})
	}
	return result, nil
}

type fakeSummarizer struct {
	summary  llm.Summary
	err      error
	calls    int
	lastReq  llm.SummaryRequest
	requests []llm.SummaryRequest
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req llm.SummaryRequest) (llm.Summary, error) {
	f.calls++
	f.lastReq = req
	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.Summary{}, f.err
	}
	return f.summary, nil
}

func htmlResult(body string) *fetch.Result {
	return &fetch.Result{
		Body:        []byte(body),
		ContentType: "text/html; charset=utf-8",
		Header:      http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
	}
}

func fullRegistry(fetcher strategy.Downloader) *strategy.Registry {
	registry := strategy.NewRegistry()
	registry.Register(strategy.NewArxiv(fetcher))
	registry.Register(strategy.NewPDF(fetcher))
	registry.Register(strategy.NewImage(fetcher))
	registry.Register(strategy.NewPodcast(fetcher))
	registry.Register(strategy.NewHTML(fetcher))
	return registry
}

func newProcessor(t *testing.T, fetcher strategy.Downloader, summarizer processor.Summarizer) (*processor.Processor, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	proc := processor.New(store, fullRegistry(fetcher), summarizer, cfg, logging.NewNop())
	return proc, store, cfg
}

func TestProcessContentArticleHappyPath(t *testing.T) {
	const url = "https://example.com/post"
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		url: htmlResult(`<html><head><title>Page</title></head><body><article><p>Body text.</p></article></body></html>`),
	}}
	summarizer := &fakeSummarizer{summary: llm.Summary{
		Title:          "Summarized Title",
		Overview:       "An overview.",
		BulletPoints:   []string{"point"},
		Classification: "technology",
	}}
	proc, store, _ := newProcessor(t, fetcher, summarizer)

	item := testsupport.NewContent(t, store, queue.TypeArticle, url)
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err != nil {
		t.Fatalf("ProcessContent returned error: %v", err)
	}

	got, err := store.GetContent(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if got.CheckedOutBy != "" {
		t.Fatalf("expected released claim, held by %q", got.CheckedOutBy)
	}
	if got.ProcessedAt == nil {
		t.Fatal("expected processed_at to be stamped")
	}
	if got.Classification != "technology" {
		t.Fatalf("unexpected classification: %q", got.Classification)
	}
	if got.Title != "Page" {
		t.Fatalf("expected extraction title to win, got %q", got.Title)
	}
	meta := queue.DecodeMetadata(got.MetadataJSON)
	if _, ok := meta[queue.MetaSummary]; !ok {
		t.Fatal("expected summary in metadata")
	}
	if stored, _ := meta.GetString(queue.MetaContent); stored == "" {
		t.Fatal("expected extracted content retained for re-summarization")
	}
	if summarizer.calls != 1 {
		t.Fatalf("expected one summarizer call, got %d", summarizer.calls)
	}
	if summarizer.lastReq.ContentKind != "article" {
		t.Fatalf("unexpected content kind: %q", summarizer.lastReq.ContentKind)
	}
}

func TestProcessContentTitleFallsBackToSummary(t *testing.T) {
	const url = "https://example.com/untitled"
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		url: htmlResult(`<html><body><p>No title here.</p></body></html>`),
	}}
	summarizer := &fakeSummarizer{summary: llm.Summary{Title: "From Summary", Overview: "o"}}
	proc, store, _ := newProcessor(t, fetcher, summarizer)

	item := testsupport.NewContent(t, store, queue.TypeArticle, url)
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err != nil {
		t.Fatalf("ProcessContent returned error: %v", err)
	}
	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Title != "From Summary" {
		t.Fatalf("expected summary title fallback, got %q", got.Title)
	}
}

func TestProcessContentArxivDelegatesToPDF(t *testing.T) {
	const absURL = "https://arxiv.org/abs/2401.00001"
	const pdfURL = "https://arxiv.org/pdf/2401.00001"
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		absURL: htmlResult(`<html><body>
			<h1 class="title">Title: Deep Queues</h1>
			<div class="authors">Authors: B. Author</div>
			<blockquote class="abstract">Abstract: Queues, deeply.</blockquote>
		</body></html>`),
		pdfURL: {
			Body:        []byte("%PDF-1.5 binary payload"),
			ContentType: "application/pdf",
			Header:      http.Header{"Content-Type": []string{"application/pdf"}},
		},
	}}
	summarizer := &fakeSummarizer{summary: llm.Summary{Overview: "paper summary", Classification: "science"}}
	proc, store, _ := newProcessor(t, fetcher, summarizer)

	item := testsupport.NewContent(t, store, queue.TypeArticle, absURL)
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err != nil {
		t.Fatalf("ProcessContent returned error: %v", err)
	}

	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("unexpected status: %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Title != "Deep Queues" {
		t.Fatalf("expected title from the abstract page, got %q", got.Title)
	}
	if !summarizer.lastReq.Binary {
		t.Fatal("expected binary payload for the delegated pdf")
	}
	meta := queue.DecodeMetadata(got.MetadataJSON)
	if author, _ := meta.GetString(queue.MetaAuthor); author != "B. Author" {
		t.Fatalf("unexpected author metadata: %q", author)
	}
	if strategyName, _ := meta.GetString(queue.MetaStrategy); strategyName != "pdf" {
		t.Fatalf("expected final strategy pdf, got %q", strategyName)
	}
}

type loopStrategy struct{}

func (loopStrategy) Name() string { return "loop" }

func (loopStrategy) CanHandle(url string, _ http.Header) bool {
	return strings.Contains(url, "loop.example.com")
}

func (loopStrategy) Download(ctx context.Context, url string) (*strategy.RawContent, error) {
	return &strategy.RawContent{Body: []byte("x")}, nil
}

func (loopStrategy) Extract(raw *strategy.RawContent, url string) (*strategy.Extraction, error) {
	return &strategy.Extraction{DelegateTo: url + "x"}, nil
}

func (loopStrategy) PrepareForLLM(e *strategy.Extraction) strategy.Payload {
	return strategy.Payload{}
}

func TestProcessContentDelegationDepthExceeded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry := strategy.NewRegistry()
	registry.Register(loopStrategy{})
	proc := processor.New(store, registry, &fakeSummarizer{}, cfg, logging.NewNop())

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://loop.example.com/a")
	err := proc.ProcessContent(context.Background(), item.ID, "worker-1")
	if err == nil {
		t.Fatal("expected delegation depth error")
	}
	if !strings.Contains(err.Error(), "delegation depth exceeded") {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.RetryCount != 0 {
		t.Fatalf("permanent failure must bypass the retry counter, got %d", got.RetryCount)
	}
}

func TestProcessContentImageSkipsSummarization(t *testing.T) {
	const url = "https://example.com/photo.png"
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		url: {
			Body:        []byte{0x89, 0x50, 0x4e, 0x47},
			ContentType: "image/png",
			Header:      http.Header{"Content-Type": []string{"image/png"}},
		},
	}}
	summarizer := &fakeSummarizer{}
	proc, store, _ := newProcessor(t, fetcher, summarizer)

	item := testsupport.NewContent(t, store, queue.TypeArticle, url)
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err != nil {
		t.Fatalf("ProcessContent returned error: %v", err)
	}

	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if summarizer.calls != 0 {
		t.Fatalf("expected no summarizer call, got %d", summarizer.calls)
	}
	meta := queue.DecodeMetadata(got.MetadataJSON)
	if _, ok := meta[queue.MetaSummary]; ok {
		t.Fatal("expected no summary in metadata")
	}
}

func TestProcessContentPodcastHandsOffToAudioPipeline(t *testing.T) {
	const url = "https://example.com/feed.rss"
	feed := `<?xml version="1.0"?>
	<rss version="2.0"><channel>
		<title>Show</title>
		<item>
			<title>Ep 1</title>
			<enclosure url="https://cdn.example.com/ep1.mp3" type="audio/mpeg"/>
		</item>
	</channel></rss>`
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{
		url: {
			Body:        []byte(feed),
			ContentType: "application/rss+xml",
			Header:      http.Header{"Content-Type": []string{"application/rss+xml"}},
		},
	}}
	summarizer := &fakeSummarizer{}
	proc, store, _ := newProcessor(t, fetcher, summarizer)

	item := testsupport.NewContent(t, store, queue.TypePodcast, url)
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err != nil {
		t.Fatalf("ProcessContent returned error: %v", err)
	}

	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusProcessing {
		t.Fatalf("expected item to stay in flight, got %s", got.Status)
	}
	if got.CheckedOutBy != "" {
		t.Fatalf("expected released claim, held by %q", got.CheckedOutBy)
	}
	if summarizer.calls != 0 {
		t.Fatal("expected no summarizer call during handoff")
	}

	tasks, err := store.TasksForContent(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("TasksForContent: %v", err)
	}
	var found bool
	for _, task := range tasks {
		if task.TaskType != queue.TaskDownloadAudio {
			continue
		}
		found = true
		var payload queue.DownloadAudioPayload
		if err := queue.DecodePayload(task, &payload); err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		if payload.AudioURL != "https://cdn.example.com/ep1.mp3" {
			t.Fatalf("unexpected audio url: %q", payload.AudioURL)
		}
	}
	if !found {
		t.Fatal("expected a download_audio task")
	}
}

func TestProcessContentNoStrategyIsPermanent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry := strategy.NewRegistry()
	registry.Register(strategy.NewArxiv(&fakeFetcher{}))
	proc := processor.New(store, registry, &fakeSummarizer{}, cfg, logging.NewNop())

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/article")
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err == nil {
		t.Fatal("expected error for unmatched url")
	}

	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.RetryCount != 0 {
		t.Fatalf("expected retry counter untouched, got %d", got.RetryCount)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected error message on the item")
	}
}

func TestProcessContentTransientFailureRetriesThenFails(t *testing.T) {
	const url = "https://example.com/flaky"
	fetcher := &fakeFetcher{err: services.Wrap(services.ErrTransient, "fetch", "get", "", &fetch.StatusError{URL: url, StatusCode: 503})}
	cfg := testsupport.NewConfig(t, testsupport.WithMaxRetries(2))
	store := testsupport.MustOpenStore(t, cfg)
	proc := processor.New(store, fullRegistry(fetcher), &fakeSummarizer{}, cfg, logging.NewNop())

	item := testsupport.NewContent(t, store, queue.TypeArticle, url)

	// First attempt: back to pending.
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err == nil {
		t.Fatal("expected transient error")
	}
	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusPending || got.RetryCount != 1 {
		t.Fatalf("after first attempt: status %s retry %d", got.Status, got.RetryCount)
	}

	// Second attempt exhausts the budget.
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err == nil {
		t.Fatal("expected transient error")
	}
	got, _ = store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusFailed || got.RetryCount != 2 {
		t.Fatalf("after second attempt: status %s retry %d", got.Status, got.RetryCount)
	}
}

func TestProcessContentUnclaimableIsNoOp(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*fetch.Result{}}
	proc, store, _ := newProcessor(t, fetcher, &fakeSummarizer{})

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")
	if _, err := store.CheckoutContent(context.Background(), item.ID, "other-worker"); err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}

	// Another worker holds the claim; the duplicate enqueue resolves quietly.
	if err := proc.ProcessContent(context.Background(), item.ID, "worker-1"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	got, _ := store.GetContent(context.Background(), item.ID)
	if got.CheckedOutBy != "other-worker" {
		t.Fatalf("expected original claim intact, got %q", got.CheckedOutBy)
	}
}

func TestSummarizeExistingFromTranscript(t *testing.T) {
	summarizer := &fakeSummarizer{summary: llm.Summary{Overview: "episode recap", Classification: "culture"}}
	proc, store, _ := newProcessor(t, &fakeFetcher{}, summarizer)

	item := testsupport.NewContent(t, store, queue.TypePodcast, "https://example.com/feed.rss")
	item.MetadataJSON = queue.Metadata{queue.MetaTranscript: "hello world transcript"}.Encode()
	item.Status = queue.StatusProcessing
	if err := store.UpdateContent(context.Background(), item); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	if err := proc.SummarizeExisting(context.Background(), item.ID); err != nil {
		t.Fatalf("SummarizeExisting returned error: %v", err)
	}

	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Fatal("expected processed_at to be stamped")
	}
	if summarizer.lastReq.Content != "hello world transcript" {
		t.Fatalf("unexpected summarizer input: %q", summarizer.lastReq.Content)
	}
}

func TestSummarizeExistingFromStoredContent(t *testing.T) {
	summarizer := &fakeSummarizer{summary: llm.Summary{Overview: "article recap", Classification: "science"}}
	proc, store, _ := newProcessor(t, &fakeFetcher{}, summarizer)

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/article")
	item.MetadataJSON = queue.Metadata{queue.MetaContent: "the extracted article body"}.Encode()
	item.Status = queue.StatusProcessing
	if err := store.UpdateContent(context.Background(), item); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	if err := proc.SummarizeExisting(context.Background(), item.ID); err != nil {
		t.Fatalf("SummarizeExisting returned error: %v", err)
	}

	got, _ := store.GetContent(context.Background(), item.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("unexpected status: %s", got.Status)
	}
	if summarizer.lastReq.Content != "the extracted article body" {
		t.Fatalf("unexpected summarizer input: %q", summarizer.lastReq.Content)
	}
}

func TestSummarizeExistingTerminalItemIsNoOp(t *testing.T) {
	summarizer := &fakeSummarizer{}
	proc, store, _ := newProcessor(t, &fakeFetcher{}, summarizer)

	item := testsupport.NewContent(t, store, queue.TypePodcast, "https://example.com/feed.rss")
	item.Status = queue.StatusCompleted
	if err := store.UpdateContent(context.Background(), item); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	if err := proc.SummarizeExisting(context.Background(), item.ID); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if summarizer.calls != 0 {
		t.Fatal("expected no summarizer call for terminal item")
	}
}

func TestSummarizeExistingWithoutTranscriptFails(t *testing.T) {
	proc, store, _ := newProcessor(t, &fakeFetcher{}, &fakeSummarizer{})

	item := testsupport.NewContent(t, store, queue.TypePodcast, "https://example.com/feed.rss")
	err := proc.SummarizeExisting(context.Background(), item.ID)
	if err == nil {
		t.Fatal("expected error without transcript")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
