package gamification

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

// Handler serves the gamification API.
type Handler struct {
	service *Service
	now     func() time.Time
	loc     *time.Location
	logger  *logging.Logger
}

// NewHandler creates a handler. Activity days are computed in loc.
func NewHandler(service *Service, loc *time.Location, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, now: time.Now, loc: loc, logger: logger}
}

// Routes mounts under /gamification.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/challenges", h.ListChallenges)
	r.Get("/leaderboard", h.GetLeaderboard)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Post("/activity", h.RecordActivity)
		r.Post("/challenges/{challengeID}/progress", h.AdvanceChallenge)
	})
	return r
}

// AdminRoutes mounts under /admin/gamification. Direct point awards bypass
// every earning rule, so they sit behind admin auth.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/users/{userID}/points", h.AwardPoints)
	return r
}

func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"challenges": h.service.Challenges()})
}

// GetLeaderboard handles GET /gamification/leaderboard?limit=N.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type awardRequest struct {
	Points int64  `json:"points"`
	Reason string `json:"reason"`
}

func (h *Handler) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	userID := chi.URLParam(r, "userID")
	total, err := h.service.AwardPoints(r.Context(), userID, req.Points, req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userId": userID, "points": total})
}

func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	streak, err := h.service.RecordActivity(r.Context(), chi.URLParam(r, "userID"), h.now().In(h.loc))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

type progressRequest struct {
	Delta int64 `json:"delta"`
}

func (h *Handler) AdvanceChallenge(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
	}
	progress, err := h.service.Progress(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "challengeID"), req.Delta)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidUser), errors.Is(err, ErrInvalidPoints):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrUnknownChallenge):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("gamification request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
