// Package llm provides a chat completions client used by the feedback stage
// to explain missing objects and to request a revised prompt.
//
// # Configuration
//
// Requires api_key and optionally base_url (full completions endpoint), model,
// and timeout_seconds. A client without a key returns ErrMissingAPIKey from
// every call without touching the network; callers treat that as a degraded
// result rather than a failure.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Chat: send system/user prompts with temperature and token limits.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, 3 attempts by default).
// Retry-After headers are honoured up to the max delay. Context cancellation
// aborts retries immediately.
package llm
