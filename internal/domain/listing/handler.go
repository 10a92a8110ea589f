package listing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
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

func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := BrowseFilter{
		City:     q.Get("city"),
		Category: q.Get("category"),
		Query:    q.Get("q"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	listings, total, err := h.svc.Browse(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("listing browse failed")
		response.InternalError(w)
		return
	}
	response.WithMeta(w, listings, response.Meta{Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid listing id")
		return
	}

	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "listing not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, l)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	res, err := h.svc.Submit(r.Context(), telegramID, req)
	if err != nil {
		log.Error().Err(err).Int64("telegram_id", telegramID).Msg("listing submission failed")
		response.InternalError(w)
		return
	}
	if res.NeedsPackage {
		response.OK(w, res)
		return
	}
	response.Created(w, res.Listing)
}

func (h *Handler) My(w http.ResponseWriter, r *http.Request) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	listings, err := h.svc.MyListings(r.Context(), telegramID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, listings)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	telegramID, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Reactivate(r.Context(), telegramID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.NeedsPackage {
		response.OK(w, res)
		return
	}
	response.OK(w, res.Listing)
}

func (h *Handler) Sold(w http.ResponseWriter, r *http.Request) {
	telegramID, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.MarkSold(r.Context(), telegramID, id); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	telegramID, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Hide(r.Context(), telegramID, id); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	telegramID, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), telegramID, id, false); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) ownerAndID(w http.ResponseWriter, r *http.Request) (int64, uuid.UUID, bool) {
	telegramID := middleware.GetTelegramID(r.Context())
	if telegramID == 0 {
		response.Unauthorized(w, "unauthorized")
		return 0, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid listing id")
		return 0, uuid.Nil, false
	}
	return telegramID, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "listing not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "listing belongs to another user")
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, "listing state does not allow this operation")
	case errors.Is(err, ErrReconciling):
		response.Conflict(w, "a payment for this listing is still being processed")
	default:
		log.Error().Err(err).Msg("listing operation failed")
		response.InternalError(w)
	}
}

// Routes mixes the public catalog with the owner endpoints behind auth
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Browse)
	r.Get("/{id}", h.Get)

	r.Group(func(pr chi.Router) {
		pr.Use(authMiddleware)
		pr.Post("/", h.Submit)
		pr.Get("/my", h.My)
		pr.Post("/{id}/reactivate", h.Reactivate)
		pr.Post("/{id}/sold", h.Sold)
		pr.Post("/{id}/hide", h.Hide)
		pr.Delete("/{id}", h.Delete)
	})
	return r
}
