package payment

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/middleware"
	"github.com/tgmarket/market-api/internal/pkg/monopay"
	"github.com/tgmarket/market-api/internal/pkg/response"
)

const maxWebhookBody = 64 * 1024

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Webhook handles the provider's payment-status push. It always answers 2xx:
// a non-2xx makes the provider retry indefinitely, and retries are already
// safe thanks to the reconciler's idempotency.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("failed to read webhook body")
		response.OK(w, map[string]bool{"ok": true})
		return
	}

	event, err := monopay.ParseWebhook(body)
	if err != nil {
		log.Warn().Err(err).Msg("malformed payment webhook")
		response.OK(w, map[string]bool{"ok": true})
		return
	}

	if err := h.svc.Reconcile(r.Context(), event.InvoiceID, event.Status, body); err != nil {
		log.Warn().Err(err).Str("invoice_id", event.InvoiceID).Msg("webhook reconcile failed")
	}

	response.OK(w, map[string]bool{"ok": true})
}

type topupRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) Topup(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	cents := int64(math.Round(req.Amount * 100))
	if cents <= 0 {
		response.BadRequest(w, "amount must be greater than zero")
		return
	}

	ref, err := h.svc.CreateTopupInvoice(r.Context(), telegramID, cents)
	if err != nil {
		if errors.Is(err, ErrInvoiceCreationFailed) {
			log.Error().Err(err).Int64("telegram_id", telegramID).Msg("top-up invoice creation failed")
			response.Error(w, http.StatusBadGateway, "INVOICE_CREATION_FAILED", "payment provider is unavailable")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"paymentRequired": true,
		"invoiceId":       ref.InvoiceID,
		"pageUrl":         ref.PageURL,
	})
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	invoiceID := chi.URLParam(r, "invoiceId")
	if invoiceID == "" {
		response.BadRequest(w, "invoiceId is required")
		return
	}

	p, err := h.svc.CheckInvoice(r.Context(), telegramID, invoiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "invoice not found")
			return
		}
		log.Error().Err(err).Str("invoice_id", invoiceID).Msg("manual invoice check failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"invoiceId": p.InvoiceID,
		"status":    p.Status,
		"amount":    p.AmountEur,
		"purpose":   p.Purpose,
	})
}

func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/monopay", h.Webhook)
	return r
}
