package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"predmarket/currency"
	"predmarket/models"
	"predmarket/service"
)

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrInvalidInput, name)
	}
	return id, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", service.ErrInvalidInput)
	}
	return nil
}

type getOrCreateUserRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	PhotoURL   string `json:"photo_url"`
}

func (h *Handlers) getOrCreateUser(w http.ResponseWriter, r *http.Request) {
	var req getOrCreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Users.GetOrCreate(r.Context(), req.TelegramID, req.Username, req.FirstName, req.PhotoURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.Users.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type activateReferralRequest struct {
	Code string `json:"code"`
}

func (h *Handlers) activateReferral(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req activateReferralRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Users.ActivateReferral(r.Context(), userID, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

type createMarketRequest struct {
	CreatorID   *int64     `json:"creator_id"`
	Question    string     `json:"question"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	ImageURL    string     `json:"image_url"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ByAdmin     bool       `json:"by_admin"`
}

func (h *Handlers) createMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	market, err := h.Markets.CreateMarket(r.Context(), req.CreatorID, req.Question,
		req.Description, req.Category, req.ImageURL, req.ExpiresAt, req.ByAdmin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, market)
}

func (h *Handlers) getMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, err)
		return
	}
	market, err := h.Markets.GetMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (h *Handlers) closeMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Markets.CloseMarket(r.Context(), marketID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

type resolveMarketRequest struct {
	Outcome models.MarketOutcome `json:"outcome"`
}

func (h *Handlers) resolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req resolveMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Markets.ResolveMarket(r.Context(), marketID, req.Outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type promoteMarketRequest struct {
	Tier  models.PromotionTier `json:"tier"`
	Until time.Time            `json:"until"`
}

func (h *Handlers) promoteMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req promoteMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Markets.PromoteMarket(r.Context(), marketID, req.Tier, req.Until); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}

type placeBetRequest struct {
	UserID   int64           `json:"user_id"`
	MarketID int64           `json:"market_id"`
	Position models.Position `json:"position"`
	Currency models.Currency `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *Handlers) placeBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	bet, err := h.Markets.PlaceBet(r.Context(), req.UserID, req.MarketID, req.Position, req.Currency, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

type validateDepositRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

type validateDepositResponse struct {
	Valid      bool            `json:"valid"`
	TonAmount  decimal.Decimal `json:"ton_amount"`
	PredAmount decimal.Decimal `json:"pred_amount"`
}

// validateDeposit checks a prospective TON deposit against the address
// format and the configured bounds, and previews the PRED credit.
func (h *Handlers) validateDeposit(w http.ResponseWriter, r *http.Request) {
	var req validateDepositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !currency.ValidTonAddress(req.Address) {
		writeError(w, fmt.Errorf("%w: malformed TON address", service.ErrInvalidInput))
		return
	}
	if err := currency.ValidateDeposit(req.Amount, h.MinDepositTon, h.MaxDepositTon); err != nil {
		writeError(w, fmt.Errorf("%w: %s", service.ErrInvalidInput, err))
		return
	}
	writeJSON(w, http.StatusOK, validateDepositResponse{
		Valid:      true,
		TonAmount:  req.Amount,
		PredAmount: h.Converter.TonToPred(req.Amount),
	})
}

func (h *Handlers) currentStandings(w http.ResponseWriter, r *http.Request) {
	periodType := models.PeriodType(r.URL.Query().Get("period"))
	if periodType == "" {
		periodType = models.PeriodWeekly
	}
	entries, err := h.Leaderboard.CurrentStandings(r.Context(), periodType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type closePeriodRequest struct {
	PeriodType models.PeriodType `json:"period_type"`
	AdminID    *int64            `json:"admin_id"`
}

func (h *Handlers) closePeriod(w http.ResponseWriter, r *http.Request) {
	var req closePeriodRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Leaderboard.ClosePeriod(r.Context(), req.PeriodType, req.AdminID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) getUserMissions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	statuses, err := h.Missions.GetUserMissions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handlers) claimMission(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	missionID, err := pathID(r, "missionID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Missions.ClaimReward(r.Context(), userID, missionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "claimed"})
}

type enqueueNotificationRequest struct {
	TelegramID  int64                        `json:"telegram_id"`
	Message     string                       `json:"message"`
	ParseMode   string                       `json:"parse_mode"`
	Metadata    *models.NotificationMetadata `json:"metadata"`
	ScheduledAt *time.Time                   `json:"scheduled_at"`
}

func (h *Handlers) enqueueNotification(w http.ResponseWriter, r *http.Request) {
	var req enqueueNotificationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var scheduledAt time.Time
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}
	n, err := h.Notifications.Enqueue(r.Context(), req.TelegramID, req.Message, req.ParseMode, req.Metadata, scheduledAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
