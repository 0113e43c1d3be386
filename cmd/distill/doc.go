// Command distill is the operator CLI: it queues URLs, inspects pipeline
// state, and resets failed items against the shared SQLite database.
package main
