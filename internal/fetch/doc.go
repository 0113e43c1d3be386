// Package fetch provides the shared HTTP download collaborator.
//
// All outbound content retrieval flows through the Fetcher so user agent,
// timeout, and failure classification stay uniform: configured status codes
// map to permanent failures while every other non-2xx response stays
// retryable.
package fetch
