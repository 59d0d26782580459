package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResponse indicates the provider returned no choices or blank text.
// Treated as transient by the engine's retry loop.
var ErrEmptyResponse = errors.New("ai returned empty response")
