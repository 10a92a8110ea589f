package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tgmarket/market-api/internal/domain/listing"
	"github.com/tgmarket/market-api/internal/pkg/response"
	"github.com/tgmarket/market-api/internal/pkg/validator"
)

type Handler struct {
	svc      *Service
	listings *listing.Service
	secure   bool
}

// NewHandler wires the moderation surface. secure controls the session
// cookie's Secure flag; off in local development.
func NewHandler(svc *Service, listings *listing.Service, secure bool) *Handler {
	return &Handler{svc: svc, listings: listings, secure: secure}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, "invalid username or password")
			return
		}
		log.Error().Err(err).Msg("admin login failed")
		response.InternalError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/api/admin",
		MaxAge:   h.svc.SessionTTL(),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	response.OK(w, map[string]bool{"success": true})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.svc.Logout(r.Context(), cookie.Value); err != nil {
			log.Warn().Err(err).Msg("admin session destroy failed")
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/api/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
	response.NoContent(w)
}

func (h *Handler) PendingListings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	listings, err := h.listings.PendingModeration(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("pending moderation list failed")
		response.InternalError(w)
		return
	}
	response.OK(w, listings)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}

	l, err := h.listings.Approve(r.Context(), id)
	if err != nil {
		h.writeListingError(w, err)
		return
	}
	response.OK(w, l)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}

	var req listing.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	l, err := h.listings.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.writeListingError(w, err)
		return
	}
	response.OK(w, l)
}

func (h *Handler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}

	if err := h.listings.Delete(r.Context(), 0, id, true); err != nil {
		h.writeListingError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid listing id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeListingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, listing.ErrNotFound):
		response.NotFound(w, "listing not found")
	case errors.Is(err, listing.ErrInvalidTransition):
		response.Conflict(w, "listing is not awaiting moderation")
	case errors.Is(err, listing.ErrReasonRequired):
		response.BadRequest(w, "rejection reason is required")
	case errors.Is(err, listing.ErrReconciling):
		response.Conflict(w, "a payment for this listing is still being processed")
	default:
		log.Error().Err(err).Msg("moderation operation failed")
		response.InternalError(w)
	}
}

// Routes mounts the admin API: login is open, everything else behind the
// session middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.svc.AuthMiddleware)
		pr.Post("/logout", h.Logout)
		pr.Get("/moderation/pending", h.PendingListings)
		pr.Post("/moderation/{id}/approve", h.Approve)
		pr.Post("/moderation/{id}/reject", h.Reject)
		pr.Delete("/listings/{id}", h.DeleteListing)
	})
	return r
}
