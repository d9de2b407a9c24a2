package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients and stores return these
// (optionally wrapped) so callers can branch on the condition without string
// matching.
//
// - ErrConnection: the underlying session cannot be established or maintained;
//   recoverable, retried internally, surfaced as a degraded-mode signal.
// - ErrNotStarted: an operation was invoked before Start; programmer error.
// - ErrUnavailable: a collaborator is temporarily unavailable (circuit open,
//   timeout, 5xx).
// - ErrNotFound / ErrConflict: factual store states, not validation failures.
var (
	ErrConnection  = errors.New("connection unavailable")
	ErrNotStarted  = errors.New("not started")
	ErrUnavailable = errors.New("unavailable")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
)
