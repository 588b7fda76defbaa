package config

import (
	"errors"
	"time"
)

// Sentinel errors, one per row of the error-kind table.
var (
	ErrInvalidConfig = errors.New("invalid config")

	// Handler-side errors (§4.5, §7).
	ErrUnauthorizedCaller = errors.New("unauthorized caller")
	ErrMalformedArguments = errors.New("malformed arguments")
	ErrUnexpectedProposal = errors.New("signature does not match the current anchoring proposal")
	ErrInvalidSignature   = errors.New("invalid input signature")
	ErrAlreadySigned      = errors.New("input already signed by this validator")

	// Chain Updater errors (§4.6, §8 scenario 2-3).
	ErrNoInitialFunds = errors.New("no initial funds: configure a funding transaction or call AddFunds")

	// Bitcoin Sync errors (§4.7, §8 scenario 6).
	ErrUnconfirmedFundingTransaction = errors.New("funding transaction is not yet confirmed")
	ErrRelay                         = errors.New("bitcoin relay error")

	// Codec errors (§4.1).
	ErrDecode = errors.New("decode error")

	// AddFunds preconditions (§4.5).
	ErrFundingAlreadySet        = errors.New("a funding transaction is already pending")
	ErrFundingAlreadySpent      = errors.New("funding transaction already consumed")
	ErrFundingOutputMissing     = errors.New("funding transaction has no output paying the committee address")
	ErrNoActiveProposal         = errors.New("no anchoring proposal is available at this height")

	// Config/lifecycle errors (§4.8, §9 "Committee transition").
	ErrUnauthorizedSupervisor = errors.New("config update must come from the designated supervisor")
	ErrTransitionPending      = errors.New("a committee transition is already pending")
	ErrNotInitialized         = errors.New("service has not been initialized")
)

// Error codes — the stable strings carried in models.APIErrorDetail.Code,
// shared with whatever client consumes the public/private HTTP endpoints.
const (
	ErrorUnauthorizedCaller = "ERROR_UNAUTHORIZED_CALLER"
	ErrorMalformedArguments = "ERROR_MALFORMED_ARGUMENTS"
	ErrorUnexpectedProposal = "ERROR_UNEXPECTED_PROPOSAL"
	ErrorInvalidSignature   = "ERROR_INVALID_SIGNATURE"
	ErrorAlreadySigned      = "ERROR_ALREADY_SIGNED"
	ErrorNoInitialFunds     = "ERROR_NO_INITIAL_FUNDS"
	ErrorInsufficientFunds  = "ERROR_INSUFFICIENT_FUNDS"
	ErrorFundingAlreadySet    = "ERROR_FUNDING_ALREADY_SET"
	ErrorFundingAlreadySpent  = "ERROR_FUNDING_ALREADY_SPENT"
	ErrorFundingOutputMissing = "ERROR_FUNDING_OUTPUT_MISSING"
	ErrorNoActiveProposal     = "ERROR_NO_ACTIVE_PROPOSAL"
	ErrorNotInitialized       = "ERROR_NOT_INITIALIZED"
	ErrorTransitionPending    = "ERROR_TRANSITION_PENDING"
	ErrorInvalidConfig        = "ERROR_INVALID_CONFIG"
	ErrorDecode               = "ERROR_DECODE"
	ErrorNotFound             = "ERROR_NOT_FOUND"
	ErrorInternal             = "ERROR_INTERNAL"
)

// InsufficientFundsError carries the balance/fee pair from AnchoringProposalState::InsufficientFunds.
type InsufficientFundsError struct {
	Balance  int64
	TotalFee int64
}

func (e *InsufficientFundsError) Error() string {
	return "insufficient funds to cover anchoring transaction fee"
}

// TransientError marks an error as safe to retry — the off-chain tasks of
// §4.6/§4.7 surface it to their caller rather than looping internally
// (§7: "Off-chain tasks are stateless and designed for external retry loops").
type TransientError struct {
	err        error
	retryAfter time.Duration
}

// NewTransientError wraps err as retriable with no specific backoff hint.
func NewTransientError(err error) *TransientError {
	return &TransientError{err: err}
}

// NewTransientErrorWithRetry wraps err as retriable after the given delay.
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) *TransientError {
	return &TransientError{err: err, retryAfter: retryAfter}
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// RetryAfter returns the suggested backoff before retrying, or zero if none
// was specified.
func (e *TransientError) RetryAfter() time.Duration { return e.retryAfter }

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
