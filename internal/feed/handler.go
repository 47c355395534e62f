package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

// Handler serves the public feed and admin post creation.
type Handler struct {
	store    *Store
	validate *validator.Validate
	logger   *logging.Logger
}

func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, validate: validator.New(), logger: logger}
}

// Routes mounts under /feed.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/{postID}/like", h.Like)
	return r
}

// List handles GET /feed?tag=&author=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	writeJSON(w, http.StatusOK, h.store.List(r.Context(), Query{
		Tag:    q.Get("tag"),
		Author: q.Get("author"),
		Page:   page,
		Limit:  limit,
	}))
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.Like(r.Context(), chi.URLParam(r, "postID"))
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type createPostRequest struct {
	Author   string   `json:"author" validate:"required,max=100"`
	Content  string   `json:"content" validate:"required,max=2000"`
	ImageURL string   `json:"imageUrl" validate:"omitempty,url"`
	Tags     []string `json:"tags" validate:"max=10,dive,max=32"`
}

// Create handles POST /admin/feed.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	post, err := h.store.Create(r.Context(), Post{
		Author:   req.Author,
		Content:  req.Content,
		ImageURL: req.ImageURL,
		Tags:     req.Tags,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Info("feed post created", "post_id", post.ID, "author", post.Author)
	writeJSON(w, http.StatusCreated, post)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
