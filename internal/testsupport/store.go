package testsupport

import (
	"context"
	"testing"

	"distill/internal/config"
	"distill/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewContent creates a new content item for tests using the provided store.
func NewContent(t testing.TB, store *queue.Store, contentType queue.ContentType, url string) *queue.ContentItem {
	t.Helper()

	item, err := store.NewContent(context.Background(), contentType, url, "")
	if err != nil {
		t.Fatalf("store.NewContent: %v", err)
	}
	return item
}
