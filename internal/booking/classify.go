package booking

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/wolfman30/skinclinic-api/internal/phorest"
)

type rule struct {
	kind    Kind
	markers []string
}

// Order matters: the first rule with a matching marker wins.
var rules = []rule{
	{KindStaffNotWorking, []string{"STAFF_NOT_WORKING", "NOT WORKING"}},
	{KindDoubleBooked, []string{"STAFF_DOUBLE_BOOKED", "DOUBLE_BOOKED", "ALREADY BOOKED"}},
	{KindSlotUnavailable, []string{"SLOT_UNAVAILABLE", "TIME_SLOT_NOT_AVAILABLE", "SLOT NOT AVAILABLE"}},
	{KindClientNotFound, []string{"CLIENT_NOT_FOUND", "CLIENT NOT FOUND"}},
	{KindServiceNotFound, []string{"SERVICE_NOT_FOUND", "SERVICE NOT FOUND"}},
}

// Classify maps a provider failure to a Kind. Structured error codes are
// checked before falling back to substring matching on the message. The
// second result is false when nothing matched and the caller should log the
// raw payload.
func Classify(err error) (*Error, bool) {
	if err == nil {
		return nil, true
	}
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, phorest.ErrUndecodableResponse) {
		return newError(KindUnknownOutcome, err), true
	}

	var apiErr *phorest.APIError
	if errors.As(err, &apiErr) {
		code := strings.ToUpper(strings.TrimSpace(apiErr.Code))
		if code != "" {
			for _, r := range rules {
				for _, m := range r.markers {
					if code == m {
						return newError(r.kind, err), true
					}
				}
			}
		}
		if kind, ok := matchText(apiErr.Code + " " + apiErr.Message + " " + apiErr.Body); ok {
			return newError(kind, err), true
		}
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable:
			return newError(KindProviderUnavailable, err), true
		case http.StatusGatewayTimeout:
			return newError(KindUnknownOutcome, err), true
		}
		return newError(KindUnknown, err), false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newError(KindUnknownOutcome, err), true
		}
		return newError(KindProviderUnavailable, err), true
	}

	if kind, ok := matchText(err.Error()); ok {
		return newError(kind, err), true
	}
	return newError(KindUnknown, err), false
}

func matchText(text string) (Kind, bool) {
	text = strings.ToUpper(text)
	for _, r := range rules {
		for _, m := range r.markers {
			if strings.Contains(text, m) {
				return r.kind, true
			}
		}
	}
	return "", false
}
