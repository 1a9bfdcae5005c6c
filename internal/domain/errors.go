package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrInvalidInput          = errors.New("invalid input")
	ErrStateConflict         = errors.New("operation not allowed in current market state")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOracleFailure         = errors.New("oracle failure")
	ErrStale                 = errors.New("oracle reading too old or low confidence")
	ErrNoWinnings            = errors.New("nothing to claim")
	ErrInsufficientResponses = errors.New("insufficient oracle responses")
)
