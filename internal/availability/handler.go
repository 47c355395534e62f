package availability

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

// Handler exposes the aggregator over HTTP.
type Handler struct {
	aggregator *Aggregator
	production bool
	logger     *logging.Logger
}

// NewHandler creates an availability handler. When production is false,
// error responses include technical details.
func NewHandler(aggregator *Aggregator, production bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{aggregator: aggregator, production: production, logger: logger}
}

type availabilityResponse struct {
	Success bool                `json:"success"`
	Date    string              `json:"date"`
	Slots   []TimeSlot          `json:"slots"`
	Staff   []StaffAvailability `json:"staff"`
}

// GetAvailability handles POST /availability.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	res, err := h.aggregator.Aggregate(r.Context(), req)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			h.writeError(w, http.StatusBadRequest, verr.Error(), nil)
		case errors.Is(err, ErrNoQualifiedStaff):
			h.writeError(w, http.StatusNotFound, ErrNoQualifiedStaff.Error(), nil)
		case errors.Is(err, ErrProviderUnavailable):
			h.writeError(w, http.StatusServiceUnavailable, "availability is temporarily unavailable, please try again shortly", err)
		default:
			h.logger.Error("availability lookup failed", "branch_id", req.BranchID, "service_id", req.ServiceID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to load availability", err)
		}
		return
	}

	if h.production {
		for i := range res.Staff {
			res.Staff[i].Details = ""
		}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		Success: true,
		Date:    res.Date,
		Slots:   res.Slots,
		Staff:   res.Staff,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{
		"success": false,
		"error":   message,
	}
	if err != nil && !h.production {
		body["details"] = err.Error()
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
