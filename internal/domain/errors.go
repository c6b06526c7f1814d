package domain

import "errors"

// Sentinel errors classifying collaborator failures. Anything not matching
// one of these is treated as transient and retried within the caller's
// budget.
var (
	// ErrContentBlocked marks a summarization refusal on policy grounds.
	// Terminal for the item; never retried.
	ErrContentBlocked = errors.New("content blocked by provider policy")

	// ErrAuthentication marks a credential failure. The affected
	// collaborator is disabled for the remainder of the run.
	ErrAuthentication = errors.New("authentication failed")

	// ErrChannelClosed is returned by the approval channel once shutdown
	// has begun; no new approval requests are accepted.
	ErrChannelClosed = errors.New("approval channel closed")
)

// IsBlocked reports whether err is a policy refusal.
func IsBlocked(err error) bool { return errors.Is(err, ErrContentBlocked) }

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool { return errors.Is(err, ErrAuthentication) }
