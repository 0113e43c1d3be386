// Package llm provides an OpenRouter chat client for structured summarization.
//
// # Summarization
//
// The client sends extracted article text or an audio transcript to a
// configured LLM model with a structured prompt requesting JSON output. The
// response carries a title, overview, bullet points, quotes, topic tags, and
// a coarse classification.
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title, timeout.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.Summarize: produce a structured Summary for a content item.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default),
// honouring Retry-After when present. Context cancellation aborts retries
// immediately.
package llm
