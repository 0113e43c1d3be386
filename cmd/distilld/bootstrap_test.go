package main

import (
	"testing"

	"distill/internal/fetch"
	"distill/internal/logging"
	"distill/internal/testsupport"
)

func TestBuildRegistryOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fetcher := fetch.NewFetcher(cfg, logging.NewNop())
	defer fetcher.Close()

	registry := buildRegistry(fetcher)
	names := []string{}
	for _, s := range registry.Strategies() {
		names = append(names, s.Name())
	}
	want := []string{"arxiv", "pdf", "image", "podcast", "html"}
	if len(names) != len(want) {
		t.Fatalf("unexpected strategies: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("strategy %d = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestBuildDispatcherWiresHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	dispatcher, cleanup := buildDispatcher(cfg, store, logging.NewNop())
	defer cleanup()
	if dispatcher == nil {
		t.Fatal("expected a dispatcher")
	}
}
