package booking

import "net/http"

// Kind classifies a booking failure.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindStaffNotWorking     Kind = "staff_not_working"
	KindDoubleBooked        Kind = "double_booked"
	KindSlotUnavailable     Kind = "slot_unavailable"
	KindClientNotFound      Kind = "client_not_found"
	KindServiceNotFound     Kind = "service_not_found"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindUnknownOutcome      Kind = "unknown_outcome"
	KindUnknown             Kind = "unknown"
)

// Error is a classified booking failure. Message is safe to show to users;
// Err carries the raw cause.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var kindStatus = map[Kind]int{
	KindValidation:          http.StatusBadRequest,
	KindStaffNotWorking:     http.StatusBadRequest,
	KindDoubleBooked:        http.StatusConflict,
	KindSlotUnavailable:     http.StatusBadRequest,
	KindClientNotFound:      http.StatusNotFound,
	KindServiceNotFound:     http.StatusNotFound,
	KindProviderUnavailable: http.StatusServiceUnavailable,
	KindUnknownOutcome:      http.StatusGatewayTimeout,
	KindUnknown:             http.StatusInternalServerError,
}

var kindMessage = map[Kind]string{
	KindStaffNotWorking:     "The selected staff member is not working at that time. Please choose a different time.",
	KindDoubleBooked:        "That time has just been booked by someone else. Please choose a different time.",
	KindSlotUnavailable:     "That time slot is no longer available. Please choose a different time.",
	KindClientNotFound:      "We couldn't find your client record. Please check your details and try again.",
	KindServiceNotFound:     "The selected service could not be found. Please choose another service.",
	KindProviderUnavailable: "The booking system is temporarily unavailable. Please try again shortly.",
	KindUnknownOutcome:      "We couldn't confirm whether your booking was created. Please check your existing bookings before trying again.",
	KindUnknown:             "We couldn't complete your booking. Please try again or contact the clinic.",
}

func newError(kind Kind, err error) *Error {
	return &Error{
		Kind:    kind,
		Status:  kindStatus[kind],
		Message: kindMessage[kind],
		Err:     err,
	}
}
