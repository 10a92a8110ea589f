package referral

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

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

type recordRequest struct {
	ReferrerID int64 `json:"referrerId" validate:"required,gt=0"`
}

// Record registers a referral-link click for the authenticated user
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.svc.Record(r.Context(), req.ReferrerID, telegramID); err != nil {
		log.Error().Err(err).Int64("telegram_id", telegramID).Msg("referral record failed")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	stats, err := h.svc.Stats(r.Context(), telegramID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, stats)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Record)
	r.Get("/stats", h.Stats)
	return r
}
