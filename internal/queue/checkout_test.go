package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"distill/internal/queue"
	"distill/internal/testsupport"
)

func TestCheckoutContentClaimsOnce(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")

	claimed, err := store.CheckoutContent(ctx, item.ID, "w1")
	if err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}
	if claimed == nil || claimed.CheckedOutBy != "w1" || claimed.Status != queue.StatusProcessing {
		t.Fatalf("claim not recorded: %+v", claimed)
	}
	if claimed.CheckedOutAt == nil {
		t.Fatal("expected checked_out_at to be stamped")
	}

	// A second claim, by any worker, resolves to nil.
	dup, err := store.CheckoutContent(ctx, item.ID, "w2")
	if err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}
	if dup != nil {
		t.Fatalf("duplicate claim succeeded: %+v", dup)
	}
}

func TestCheckoutContentSkipsTerminalAndMissing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")
	item.Status = queue.StatusCompleted
	if err := store.UpdateContent(ctx, item); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	claimed, err := store.CheckoutContent(ctx, item.ID, "w1")
	if err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed a terminal item: %+v", claimed)
	}

	claimed, err = store.CheckoutContent(ctx, 9999, "w1")
	if err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed a missing item: %+v", claimed)
	}
}

func TestCheckoutBatchMutualExclusion(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	const total = 12
	for i := 0; i < total; i++ {
		testsupport.NewContent(t, store, queue.TypeArticle, fmt.Sprintf("https://example.com/%d", i))
	}

	var mu sync.Mutex
	holders := make(map[int64]string)
	var wg sync.WaitGroup
	for w := 0; w < 3; w++ {
		wg.Add(1)
		workerID := fmt.Sprintf("w%d", w)
		go func() {
			defer wg.Done()
			for {
				items, err := store.CheckoutBatch(ctx, workerID, nil, 4)
				if err != nil {
					t.Errorf("CheckoutBatch: %v", err)
					return
				}
				if len(items) == 0 {
					return
				}
				mu.Lock()
				for _, item := range items {
					if holder, dup := holders[item.ID]; dup {
						t.Errorf("item %d claimed by %s and %s", item.ID, holder, workerID)
					}
					holders[item.ID] = workerID
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(holders) != total {
		t.Fatalf("claimed %d of %d items", len(holders), total)
	}
}

func TestCheckoutBatchFiltersByType(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")
	podcast := testsupport.NewContent(t, store, queue.TypePodcast, "https://example.com/p")

	contentType := queue.TypePodcast
	items, err := store.CheckoutBatch(ctx, "w1", &contentType, 10)
	if err != nil {
		t.Fatalf("CheckoutBatch: %v", err)
	}
	if len(items) != 1 || items[0].ID != podcast.ID {
		t.Fatalf("expected only the podcast item, got %v", items)
	}
}

func TestCheckinStampsProcessedAt(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")
	if _, err := store.CheckoutContent(ctx, item.ID, "w1"); err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}

	did, err := store.Checkin(ctx, item.ID, "w1", queue.StatusCompleted, "")
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	if !did {
		t.Fatal("expected checkin to apply")
	}

	got, _ := store.GetContent(ctx, item.ID)
	if got.Status != queue.StatusCompleted || got.CheckedOutBy != "" {
		t.Fatalf("checkin incomplete: %+v", got)
	}
	if got.ProcessedAt == nil {
		t.Fatal("expected processed_at on completion")
	}
}

func TestCheckinHolderMismatchIsNoOp(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")
	if _, err := store.CheckoutContent(ctx, item.ID, "w1"); err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}

	did, err := store.Checkin(ctx, item.ID, "w2", queue.StatusFailed, "not mine")
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	if did {
		t.Fatal("checkin by a non-holder must be a no-op")
	}

	got, _ := store.GetContent(ctx, item.ID)
	if got.Status != queue.StatusProcessing || got.CheckedOutBy != "w1" {
		t.Fatalf("claim disturbed: %+v", got)
	}
}

func TestCheckinProcessingReleasesClaimOnly(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypePodcast, "https://example.com/p")
	if _, err := store.CheckoutContent(ctx, item.ID, "w1"); err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}

	if _, err := store.Checkin(ctx, item.ID, "w1", queue.StatusProcessing, ""); err != nil {
		t.Fatalf("Checkin: %v", err)
	}

	got, _ := store.GetContent(ctx, item.ID)
	if got.Status != queue.StatusProcessing {
		t.Fatalf("expected item still in flight, got %s", got.Status)
	}
	if got.CheckedOutBy != "" || got.ProcessedAt != nil {
		t.Fatalf("handoff checkin wrong: %+v", got)
	}
}

func TestCheckinRetryBounds(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")

	if _, err := store.CheckoutContent(ctx, item.ID, "w1"); err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}
	status, err := store.CheckinRetry(ctx, item.ID, "w1", "transient", 2)
	if err != nil {
		t.Fatalf("CheckinRetry: %v", err)
	}
	if status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", status)
	}

	if _, err := store.CheckoutContent(ctx, item.ID, "w1"); err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}
	status, err = store.CheckinRetry(ctx, item.ID, "w1", "transient again", 2)
	if err != nil {
		t.Fatalf("CheckinRetry: %v", err)
	}
	if status != queue.StatusFailed {
		t.Fatalf("expected failed at budget, got %s", status)
	}

	got, _ := store.GetContent(ctx, item.ID)
	if got.RetryCount != 2 || got.ErrorMessage != "transient again" {
		t.Fatalf("retry bookkeeping wrong: %+v", got)
	}

	// Releasing without holding is an error.
	if _, err := store.CheckinRetry(ctx, item.ID, "w1", "x", 2); err == nil {
		t.Fatal("expected error when not holding the item")
	}
}

func TestReleaseStaleCheckoutsRestoresLiveness(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/a")
	if _, err := store.CheckoutContent(ctx, item.ID, "w1"); err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}

	released, err := store.ReleaseStaleCheckouts(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReleaseStaleCheckouts: %v", err)
	}
	if released != 0 {
		t.Fatalf("released %d with past cutoff", released)
	}

	released, err = store.ReleaseStaleCheckouts(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ReleaseStaleCheckouts: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected one release, got %d", released)
	}

	got, _ := store.GetContent(ctx, item.ID)
	if got.Status != queue.StatusPending || got.CheckedOutBy != "" {
		t.Fatalf("stale release incomplete: %+v", got)
	}

	// The released item is claimable again.
	claimed, err := store.CheckoutContent(ctx, item.ID, "w2")
	if err != nil {
		t.Fatalf("CheckoutContent: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected released item to be claimable")
	}
}

func TestFailContentForcesFailure(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := testsupport.NewContent(t, store, queue.TypePodcast, "https://example.com/p")
	item.Status = queue.StatusProcessing
	if err := store.UpdateContent(ctx, item); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	if err := store.FailContent(ctx, item.ID, "task retries exhausted"); err != nil {
		t.Fatalf("FailContent: %v", err)
	}
	got, _ := store.GetContent(ctx, item.ID)
	if got.Status != queue.StatusFailed || got.ErrorMessage == "" {
		t.Fatalf("force-fail incomplete: %+v", got)
	}

	// Completed items are left alone.
	done := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/done")
	done.Status = queue.StatusCompleted
	if err := store.UpdateContent(ctx, done); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if err := store.FailContent(ctx, done.ID, "late"); err != nil {
		t.Fatalf("FailContent: %v", err)
	}
	got, _ = store.GetContent(ctx, done.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("completed item was failed: %+v", got)
	}
}

func TestRetryFailedResetsItems(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/1")
	second := testsupport.NewContent(t, store, queue.TypeArticle, "https://example.com/2")
	for _, item := range []*queue.ContentItem{first, second} {
		if err := store.FailContent(ctx, item.ID, "boom"); err != nil {
			t.Fatalf("FailContent: %v", err)
		}
	}

	reset, err := store.RetryFailed(ctx, first.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected one reset, got %d", reset)
	}
	got, _ := store.GetContent(ctx, first.ID)
	if got.Status != queue.StatusNew || got.ErrorMessage != "" || got.RetryCount != 0 {
		t.Fatalf("reset incomplete: %+v", got)
	}

	// No ids resets every remaining failed item.
	reset, err = store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected one reset, got %d", reset)
	}
}
