package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tgmarket/market-api/internal/middleware"
	"github.com/tgmarket/market-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type telegramAuthRequest struct {
	InitData string `json:"init_data"`
}

type profileResponse struct {
	TelegramID      int64   `json:"telegram_id"`
	Username        string  `json:"username,omitempty"`
	FirstName       string  `json:"first_name"`
	Balance         float64 `json:"balance"`
	ListingPackages int     `json:"listing_packages_balance"`
	HasUsedFreeAd   bool    `json:"has_used_free_ad"`
}

func (h *Handler) TelegramAuth(w http.ResponseWriter, r *http.Request) {
	var req telegramAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.InitData == "" {
		response.BadRequest(w, "init_data is required")
		return
	}

	result, err := h.svc.Authenticate(r.Context(), req.InitData)
	if err != nil {
		if errors.Is(err, ErrInvalidAuth) {
			response.Unauthorized(w, "telegram auth data rejected")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"token": result.Token,
		"user":  toProfile(result.User),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.GetProfile(r.Context(), telegramID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, toProfile(u))
}

func toProfile(u *User) profileResponse {
	return profileResponse{
		TelegramID:      u.TelegramID,
		Username:        u.PublicUsername(),
		FirstName:       u.FirstName,
		Balance:         u.Balance,
		ListingPackages: u.ListingPackages,
		HasUsedFreeAd:   u.HasUsedFreeAd,
	}
}

func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/telegram", h.TelegramAuth)
	return r
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/me", h.Me)
	return r
}
