// Package daemon wraps the dispatch loops in a single-instance background
// process. A flock-guarded lock file prevents two daemons from working the
// same database.
package daemon
