package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tgmarket/market-api/internal/middleware"
	"github.com/tgmarket/market-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), telegramID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"balance":                  Eur(balance.BalanceCents),
		"listing_packages_balance": balance.ListingPackages,
		"has_used_free_ad":         balance.HasUsedFreeAd,
	})
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	transactions, err := h.svc.ListTransactions(r.Context(), telegramID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, transactions)
}
