package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"predmarket/service"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.WithError(err).Error("Failed to encode response")
		}
	}
}

// writeError maps domain errors to HTTP statuses and stable reason codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	reason := "INTERNAL"

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, reason = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, service.ErrNotFound):
		status, reason = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrMarketNotOpen):
		status, reason = http.StatusConflict, "MARKET_NOT_OPEN"
	case errors.Is(err, service.ErrAlreadyResolved):
		status, reason = http.StatusConflict, "ALREADY_RESOLVED"
	case errors.Is(err, service.ErrInsufficientBalance):
		status, reason = http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"
	case errors.Is(err, service.ErrAlreadyClosed):
		status, reason = http.StatusConflict, "ALREADY_CLOSED"
	case errors.Is(err, service.ErrNoRewardsConfigured):
		status, reason = http.StatusConflict, "NO_REWARDS_CONFIGURED"
	case errors.Is(err, service.ErrNoParticipants):
		status, reason = http.StatusConflict, "NO_PARTICIPANTS"
	case errors.Is(err, service.ErrMissionNotCompleted):
		status, reason = http.StatusConflict, "NOT_COMPLETED"
	case errors.Is(err, service.ErrAlreadyClaimed):
		status, reason = http.StatusConflict, "ALREADY_CLAIMED"
	case errors.Is(err, service.ErrAlreadyReferred):
		status, reason = http.StatusConflict, "ALREADY_REFERRED"
	case errors.Is(err, service.ErrSelfReferral):
		status, reason = http.StatusBadRequest, "SELF_REFERRAL"
	case errors.Is(err, service.ErrUserBanned):
		status, reason = http.StatusForbidden, "USER_BANNED"
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: reason})
}
