package queue_test

import (
	"context"
	"testing"
	"time"

	"distill/internal/queue"
	"distill/internal/testsupport"
)

func TestNewContentDefaults(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item, err := store.NewContent(ctx, queue.TypeArticle, "https://example.com/a", `{"author":"x"}`)
	if err != nil {
		t.Fatalf("NewContent: %v", err)
	}
	if item.Status != queue.StatusNew {
		t.Fatalf("expected new status, got %s", item.Status)
	}
	if item.MetadataJSON != `{"author":"x"}` {
		t.Fatalf("metadata not persisted: %q", item.MetadataJSON)
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps")
	}
	if item.ProcessedAt != nil || item.CheckedOut() {
		t.Fatalf("unexpected initial state: %+v", item)
	}
}

func TestNewContentRejectsBadInput(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.NewContent(ctx, queue.ContentType("video"), "https://example.com/v", ""); err == nil {
		t.Fatal("expected unknown content type error")
	}
	if _, err := store.NewContent(ctx, queue.TypeArticle, "", ""); err == nil {
		t.Fatal("expected missing url error")
	}
}

func TestGetContentMissingIsNil(t *testing.T) {
	store := newStore(t)
	item, err := store.GetContent(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil for missing item, got %+v", item)
	}
}

func TestUpdateContentRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")
	now := time.Now().UTC().Truncate(time.Second)
	item.Title = "A Study of Queues"
	item.Status = queue.StatusCompleted
	item.Classification = "technology"
	item.RetryCount = 2
	item.MetadataJSON = `{"summary":{"overview":"o"}}`
	item.ProcessedAt = &now

	if err := store.UpdateContent(ctx, item); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	got, err := store.GetContent(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if got.Title != item.Title || got.Status != item.Status || got.Classification != item.Classification {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.RetryCount != 2 || got.MetadataJSON != item.MetadataJSON {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(now) {
		t.Fatalf("processed_at mismatch: %v", got.ProcessedAt)
	}
}

func TestFindContentByURL(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeNews, "https://example.com/news/1")
	got, err := store.FindContentByURL(ctx, "https://example.com/news/1")
	if err != nil {
		t.Fatalf("FindContentByURL: %v", err)
	}
	if got == nil || got.ID != item.ID {
		t.Fatalf("lookup failed: %+v", got)
	}

	got, err = store.FindContentByURL(ctx, "https://example.com/absent")
	if err != nil {
		t.Fatalf("FindContentByURL: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown url, got %+v", got)
	}
}

func TestListContentFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/1")
	failed := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/2")
	if err := store.FailContent(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("FailContent: %v", err)
	}

	all, err := store.ListContent(ctx)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two items, got %d", len(all))
	}

	onlyFailed, err := store.ListContent(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(onlyFailed) != 1 || onlyFailed[0].ID != failed.ID {
		t.Fatalf("filter failed: %v", onlyFailed)
	}

	byStatus, err := store.ContentByStatus(ctx, queue.StatusNew)
	if err != nil {
		t.Fatalf("ContentByStatus: %v", err)
	}
	if len(byStatus) != 1 {
		t.Fatalf("expected one new item, got %d", len(byStatus))
	}
}

func TestHealthSummary(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/1")
	done := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/2")
	done.Status = queue.StatusCompleted
	if err := store.UpdateContent(ctx, done); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.New != 1 || health.Completed != 1 {
		t.Fatalf("unexpected summary: %+v", health)
	}
}
