package domain

import "errors"

// Error taxonomy for the workflow engines. Transient and data errors are
// handled inside nodes and encoded into state updates; only configuration
// and logic errors may abort a run.
var (
	// ErrSourceUnavailable marks a transient hazard feed failure. Retried
	// with backoff, then degraded to "no signal".
	ErrSourceUnavailable = errors.New("hazard source unavailable")

	// ErrInvalidRegion marks a monitoring region a source cannot serve.
	// Fatal to that fetch only.
	ErrInvalidRegion = errors.New("invalid monitoring region")

	// ErrModelUnavailable marks a failed language-model call. Triggers the
	// rule-based fallback classifier.
	ErrModelUnavailable = errors.New("classification model unavailable")

	// ErrMalformedResponse marks an unparseable model response. Retried
	// once, then treated as ErrModelUnavailable.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrContextLoad marks missing or unreadable planning context data.
	// Fatal to the planning run.
	ErrContextLoad = errors.New("planning context load failed")

	// ErrConfig marks missing required credentials or paths. Aborts
	// immediately.
	ErrConfig = errors.New("configuration error")

	// ErrLogic marks a workflow invariant violation. An internal defect:
	// fails loudly.
	ErrLogic = errors.New("workflow invariant violation")
)
