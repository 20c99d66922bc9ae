package service

import "errors"

// Domain errors. Callers distinguish them with errors.Is; the HTTP layer
// maps them to reason codes.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrMarketNotOpen       = errors.New("market is not open")
	ErrAlreadyResolved     = errors.New("market is already resolved")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyClosed       = errors.New("period already closed")
	ErrNoRewardsConfigured = errors.New("no rewards configured")
	ErrNoParticipants      = errors.New("no participants in period")
	ErrMissionNotCompleted = errors.New("mission not completed")
	ErrAlreadyClaimed      = errors.New("mission reward already claimed")
	ErrAlreadyReferred     = errors.New("referral already activated")
	ErrSelfReferral        = errors.New("cannot use own referral code")
	ErrUserBanned          = errors.New("user is banned")
)
