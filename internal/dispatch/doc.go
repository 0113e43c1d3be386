// Package dispatch runs the orchestration loops: task workers that
// dequeue and route by task type, a content poller that claims unworked
// items in batches, and a sweeper that returns stale claims to the queue.
// Handlers report success or failure through returned errors; the
// dispatcher owns all task-row bookkeeping, including failing a content
// item whose task ran out of retries.
package dispatch
