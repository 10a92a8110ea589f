package purchase

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/domain/ledger"
	"github.com/tgmarket/market-api/internal/domain/payment"
	"github.com/tgmarket/market-api/internal/middleware"
	"github.com/tgmarket/market-api/internal/pkg/response"
	"github.com/tgmarket/market-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type packagePurchaseRequest struct {
	PackageType   string `json:"packageType" validate:"required,package_type"`
	PaymentMethod string `json:"paymentMethod" validate:"required,payment_method"`
}

func (h *Handler) PurchasePackage(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req packagePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	res, err := h.svc.PurchasePackage(r.Context(), telegramID, req.PackageType, PaymentMethod(req.PaymentMethod))
	if err != nil {
		h.writeError(w, err, telegramID)
		return
	}
	response.OK(w, res)
}

type promotionPurchaseRequest struct {
	PromotionType string `json:"promotionType" validate:"required,promotion_type"`
	ListingID     string `json:"listingId" validate:"required,uuid4"`
	PaymentMethod string `json:"paymentMethod" validate:"required,payment_method"`
}

func (h *Handler) PurchasePromotion(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req promotionPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		response.BadRequest(w, "invalid listingId")
		return
	}

	res, err := h.svc.PurchasePromotion(r.Context(), telegramID, req.PromotionType, listingID, PaymentMethod(req.PaymentMethod))
	if err != nil {
		h.writeError(w, err, telegramID)
		return
	}
	response.OK(w, res)
}

func (h *Handler) ListPackagePurchases(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	purchases, err := h.svc.ListPackagePurchases(r.Context(), telegramID, 50, 0)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", telegramID).Msg("failed to list package purchases")
		response.InternalError(w)
		return
	}
	response.OK(w, purchases)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, telegramID int64) {
	switch {
	case errors.Is(err, ErrInvalidPackageType), errors.Is(err, ErrInvalidPromotionType), errors.Is(err, ErrInvalidPaymentMethod):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		response.PaymentRequired(w, "INSUFFICIENT_BALANCE", "balance is not enough for this purchase")
	case errors.Is(err, ErrListingNotPromotable):
		response.NotFound(w, "listing not found or not eligible for promotion")
	case errors.Is(err, payment.ErrInvoiceCreationFailed):
		response.Error(w, http.StatusBadGateway, "INVOICE_CREATION_FAILED", "payment provider is unavailable")
	default:
		log.Error().Err(err).Int64("telegram_id", telegramID).Msg("purchase failed")
		response.InternalError(w)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/package", h.PurchasePackage)
	r.Post("/promotion", h.PurchasePromotion)
	r.Get("/packages", h.ListPackagePurchases)
	return r
}
