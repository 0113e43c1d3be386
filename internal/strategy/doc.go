// Package strategy defines the pluggable extraction surface of the
// pipeline and its concrete implementations.
//
// A Strategy turns one family of URLs into summarizer-ready content.
// Strategies are held in a Registry where registration order is priority
// order; resolution walks the list and returns the first CanHandle match,
// so the outcome is deterministic for a fixed bootstrap sequence.
//
// Extractions can short-circuit the pipeline (SkipProcessing), hand the
// item to another strategy (DelegateTo), or attach metadata such as the
// audio enclosure URL that routes podcasts into the chained audio tasks.
package strategy
