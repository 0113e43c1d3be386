// Package queue persists content items and the task queue in SQLite and
// provides the atomic claim primitives every worker coordinates through:
// task dequeue, content checkout/checkin, and the stale-claim sweeps that
// recover work from crashed workers.
//
// The store is the only shared mutable state in the system. All claim
// operations are single UPDATE ... RETURNING statements so that concurrent
// dispatch loops never observe the same row as claimable.
package queue
