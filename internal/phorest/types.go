// Package phorest is a client for the Phorest third-party salon API: branches,
// staff, services, clients, open slots and bookings.
package phorest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api-gateway-eu.phorest.com/third-party-api-server/api"

	// WireTimeLayout is the UTC timestamp format Phorest accepts and returns.
	WireTimeLayout = "2006-01-02T15:04:05.000Z"
)

// ErrQualifiedStaffUnsupported is returned when the qualification-aware staff
// endpoint is not available for the business.
var ErrQualifiedStaffUnsupported = errors.New("phorest: qualified staff lookup not supported")

// ErrUndecodableResponse is returned when Phorest answered 2xx but the body
// could not be read or decoded. The request may still have taken effect.
var ErrUndecodableResponse = errors.New("phorest: undecodable success response")

// Branch is a physical clinic location.
type Branch struct {
	ID       string `json:"branchId"`
	Name     string `json:"name"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Staff is a practitioner record as exposed by Phorest.
type Staff struct {
	ID                     string   `json:"staffId"`
	FirstName              string   `json:"firstName"`
	LastName               string   `json:"lastName"`
	BranchID               string   `json:"branchId"`
	Archived               bool     `json:"archived"`
	HideFromOnlineBookings bool     `json:"hideFromOnlineBookings"`
	JobTitle               string   `json:"staffCategoryName,omitempty"`
	QualifiedServiceIDs    []string `json:"qualifiedServiceIds,omitempty"`
	DisqualifiedServiceIDs []string `json:"disqualifiedServiceIds,omitempty"`
}

// FullName joins first and last name.
func (s Staff) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Service is a bookable treatment.
type Service struct {
	ID          string  `json:"serviceId"`
	Name        string  `json:"name"`
	DurationMin int     `json:"duration"`
	Price       float64 `json:"price"`
	CategoryID  string  `json:"categoryId,omitempty"`
	Archived    bool    `json:"archived"`
}

// Client is a customer record.
type Client struct {
	ID        string `json:"clientId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
}

// Slot is one open start time for a staff member, in UTC.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

// CreateBookingRequest is the input for a single-service booking.
type CreateBookingRequest struct {
	ClientID  string
	ServiceID string
	StaffID   string
	StartTime time.Time
	Notes     string
}

// Booking is the provider's acknowledgement of a created booking.
type Booking struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// APIError is a non-2xx response from Phorest.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("phorest: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("phorest: status %d: %s", e.StatusCode, e.Code)
	case e.Message != "":
		return fmt.Sprintf("phorest: status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("phorest: status %d: %s", e.StatusCode, e.Body)
	}
}

// FormatWireTime renders t in the provider's UTC wire format.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(WireTimeLayout)
}

// ParseWireTime accepts the provider wire format and plain RFC3339 variants.
func ParseWireTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{WireTimeLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("phorest: unrecognised timestamp %q", s)
}

type pageInfo struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

type branchesResponse struct {
	Embedded struct {
		Branches []Branch `json:"branches"`
	} `json:"_embedded"`
	Page pageInfo `json:"page"`
}

type staffResponse struct {
	Embedded struct {
		Staffs []Staff `json:"staffs"`
	} `json:"_embedded"`
	Page pageInfo `json:"page"`
}

type servicesResponse struct {
	Embedded struct {
		Services []Service `json:"services"`
	} `json:"_embedded"`
	Page pageInfo `json:"page"`
}

type slotsResponse struct {
	Slots []struct {
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
		Available *bool  `json:"available"`
	} `json:"slots"`
}

type serviceSchedule struct {
	ServiceID string `json:"serviceId"`
	StaffID   string `json:"staffId"`
	StartTime string `json:"startTime"`
}

type clientAppointmentSchedule struct {
	ClientID         string            `json:"clientId"`
	ServiceSchedules []serviceSchedule `json:"serviceSchedules"`
}

type createBookingPayload struct {
	ClientID                   string                      `json:"clientId"`
	ClientAppointmentSchedules []clientAppointmentSchedule `json:"clientAppointmentSchedules"`
	BookingStatus              string                      `json:"bookingStatus"`
	Note                       string                      `json:"note,omitempty"`
}

type createBookingResponse struct {
	BookingID     string `json:"bookingId"`
	ID            string `json:"id"`
	BookingStatus string `json:"bookingStatus"`
	Status        string `json:"status"`
}

type errorEnvelope struct {
	ErrorCode string `json:"errorCode"`
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}
