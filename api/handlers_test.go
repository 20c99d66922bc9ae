package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predmarket/currency"
)

func depositHandlers(t *testing.T) *Handlers {
	t.Helper()
	converter, err := currency.NewConverter(1000)
	require.NoError(t, err)
	return &Handlers{
		Converter:     converter,
		MinDepositTon: decimal.RequireFromString("0.1"),
		MaxDepositTon: decimal.RequireFromString("1000"),
	}
}

func postDeposit(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/deposits/validate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.validateDeposit(rec, req)
	return rec
}

func TestValidateDeposit(t *testing.T) {
	validAddress := "EQ" + strings.Repeat("A", 46)

	t.Run("valid deposit previews the PRED credit", func(t *testing.T) {
		rec := postDeposit(t, depositHandlers(t),
			`{"address": "`+validAddress+`", "amount": "2.5"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp validateDepositResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Valid)
		assert.Equal(t, "2.5", resp.TonAmount.String())
		assert.Equal(t, "2500", resp.PredAmount.String())
	})

	t.Run("raw address form is accepted", func(t *testing.T) {
		rec := postDeposit(t, depositHandlers(t),
			`{"address": "0:`+strings.Repeat("a", 64)+`", "amount": "1"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed address is rejected", func(t *testing.T) {
		rec := postDeposit(t, depositHandlers(t),
			`{"address": "not-a-wallet", "amount": "1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "INVALID_INPUT", resp.Reason)
	})

	t.Run("amount outside the bounds is rejected", func(t *testing.T) {
		h := depositHandlers(t)

		rec := postDeposit(t, h, `{"address": "`+validAddress+`", "amount": "0.05"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = postDeposit(t, h, `{"address": "`+validAddress+`", "amount": "5000"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
