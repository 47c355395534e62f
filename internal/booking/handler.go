package booking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

// Handler exposes booking submission over HTTP.
type Handler struct {
	submitter  *Submitter
	production bool
	logger     *logging.Logger
}

func NewHandler(submitter *Submitter, production bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{submitter: submitter, production: production, logger: logger}
}

// CreateBooking handles POST /bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid JSON body",
			"kind":    KindValidation,
		})
		return
	}

	out, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		be := &Error{}
		if !errors.As(err, &be) {
			be = newError(KindUnknown, err)
		}
		body := map[string]any{
			"success": false,
			"error":   be.Message,
			"kind":    be.Kind,
		}
		if out != nil {
			body["state"] = out.State
		}
		if !h.production && be.Err != nil {
			body["details"] = be.Err.Error()
		}
		writeJSON(w, be.Status, body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"booking": out,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
