package domain

import "errors"

var (
	// ErrCatalogNotConfigured indicates no catalog API key is available; the
	// whole request fails, nothing is retried.
	ErrCatalogNotConfigured = errors.New("catalog api key not configured")
	// ErrNotReady indicates the candidate pool stayed short of a full quiz
	// after every relaxation tier. Clients should offer a retry, not treat
	// this as a hard failure.
	ErrNotReady = errors.New("not enough catalog candidates for a full quiz")
	// ErrInvalidAttempt is returned when a submission fails strict
	// validation (score out of range, non-positive duration, missing user).
	ErrInvalidAttempt = errors.New("invalid attempt")
	// ErrStoreNotProvisioned distinguishes "the attempts schema is missing"
	// from "no attempts yet" on leaderboard reads.
	ErrStoreNotProvisioned = errors.New("attempt store not provisioned")
	// ErrAttemptNotFound is returned when reading a best attempt for a user
	// who has not submitted this week.
	ErrAttemptNotFound = errors.New("attempt not found")
)
