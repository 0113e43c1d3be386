// Package processor implements the content worker: the decision engine
// that takes a claimed content item through strategy resolution, download,
// extraction, delegation, and summarization to a terminal state.
//
// Every exit path releases the checkout. Successful runs check the item in
// completed (or still-processing for the podcast handoff); permanent
// failures check in failed immediately; transient failures go through the
// bounded retry checkin.
package processor
