// Package booking submits appointment bookings to the salon provider and
// normalises the outcome.
package booking

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/skinclinic-api/internal/notify"
	"github.com/wolfman30/skinclinic-api/internal/observability/metrics"
	"github.com/wolfman30/skinclinic-api/internal/phorest"
	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

var bookingTracer = otel.Tracer("skinclinic.internal.booking")

const (
	defaultBookingTimeout = 15 * time.Second
	notifyTimeout         = 30 * time.Second
)

// State is a step in a booking request's lifecycle.
type State string

const (
	StateReceived       State = "received"
	StateValidated      State = "validated"
	StateSubmitted      State = "submitted"
	StateConfirmed      State = "confirmed"
	StateRejected       State = "rejected"
	StateProviderError  State = "provider_error"
	StateUnknownOutcome State = "unknown_outcome"
)

// Provider creates bookings. *phorest.PhorestClient satisfies it.
type Provider interface {
	CreateBooking(ctx context.Context, branchID string, req phorest.CreateBookingRequest) (*phorest.Booking, error)
}

// ClientDirectory looks up client contact details when the request carries none.
type ClientDirectory interface {
	GetClient(ctx context.Context, clientID string) (*phorest.Client, error)
}

// Notifier is told about confirmed bookings.
type Notifier interface {
	NotifyBooked(ctx context.Context, c notify.Confirmation) error
}

// Request is a booking attempt. StartTime is business-local wall time.
type Request struct {
	ClientID   string `json:"clientId" validate:"required"`
	ServiceID  string `json:"serviceId" validate:"required"`
	StaffID    string `json:"staffId" validate:"required"`
	BranchID   string `json:"branchId,omitempty"`
	StartTime  string `json:"startTime" validate:"required"`
	Notes      string `json:"notes,omitempty" validate:"max=1000"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	ClientName string `json:"clientName,omitempty"`
}

// Outcome is the normalised result. BookingID and Status are the provider's
// values, unmodified.
type Outcome struct {
	Success           bool   `json:"success"`
	State             State  `json:"state"`
	BookingID         string `json:"id,omitempty"`
	Status            string `json:"status,omitempty"`
	StartTime         string `json:"startTime,omitempty"`
	ProviderStartTime string `json:"providerStartTime,omitempty"`
	Kind              Kind   `json:"kind,omitempty"`
}

// Options configures the submitter.
type Options struct {
	DefaultBranchID string
	Timeout         time.Duration
	Location        *time.Location
}

// Submitter validates, converts and submits bookings. It never retries.
type Submitter struct {
	provider  Provider
	directory ClientDirectory
	notifier  Notifier
	opts      Options
	validate  *validator.Validate
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	wg        sync.WaitGroup
}

// NewSubmitter builds a Submitter. directory, notifier and m may be nil.
func NewSubmitter(provider Provider, directory ClientDirectory, notifier Notifier, opts Options, m *metrics.BookingMetrics, logger *logging.Logger) *Submitter {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultBookingTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Submitter{
		provider:  provider,
		directory: directory,
		notifier:  notifier,
		opts:      opts,
		validate:  v,
		metrics:   m,
		logger:    logger,
	}
}

// Submit runs one booking attempt. On failure the returned error is an
// *Error and the outcome records the terminal state.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{State: StateReceived}

	ctx, span := bookingTracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("skinclinic.staff_id", req.StaffID),
		attribute.String("skinclinic.service_id", req.ServiceID),
	)

	if err := s.validateRequest(req); err != nil {
		out.Kind = KindValidation
		return out, err
	}
	startUTC, err := ToProviderTime(req.StartTime, s.opts.Location)
	if err != nil {
		out.Kind = KindValidation
		return out, &Error{Kind: KindValidation, Status: kindStatus[KindValidation], Message: "startTime must be YYYY-MM-DDTHH:MM in clinic local time", Err: err}
	}
	branchID := strings.TrimSpace(req.BranchID)
	if branchID == "" {
		branchID = s.opts.DefaultBranchID
	}
	if branchID == "" {
		out.Kind = KindValidation
		return out, &Error{Kind: KindValidation, Status: kindStatus[KindValidation], Message: "branchId is required"}
	}
	out.State = StateValidated
	out.StartTime = FromProviderTime(startUTC, s.opts.Location)
	out.ProviderStartTime = phorest.FormatWireTime(startUTC)
	span.SetAttributes(attribute.String("skinclinic.start_utc", out.ProviderStartTime))

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out.State = StateSubmitted
	booking, err := s.provider.CreateBooking(callCtx, branchID, phorest.CreateBookingRequest{
		ClientID:  req.ClientID,
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		StartTime: startUTC,
		Notes:     req.Notes,
	})
	if err != nil {
		be, matched := Classify(err)
		out.Kind = be.Kind
		out.State = stateFor(be.Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(be.Kind))
		if !matched {
			var apiErr *phorest.APIError
			raw := err.Error()
			if errors.As(err, &apiErr) {
				raw = apiErr.Body
			}
			s.logger.Warn("unclassified booking rejection", "staff_id", req.StaffID, "service_id", req.ServiceID, "error", err, "raw", raw)
		} else {
			s.logger.Info("booking not created", "kind", be.Kind, "state", out.State, "staff_id", req.StaffID, "error", err)
		}
		s.metrics.ObserveOutcome(string(out.State), string(be.Kind), time.Since(start).Seconds())
		return out, be
	}

	out.Success = true
	out.State = StateConfirmed
	out.BookingID = booking.ID
	out.Status = booking.Status
	s.metrics.ObserveOutcome(string(out.State), "", time.Since(start).Seconds())
	s.logger.Info("booking confirmed", "booking_id", booking.ID, "staff_id", req.StaffID, "branch_id", branchID)

	s.notifyAsync(req, branchID, startUTC, booking)
	return out, nil
}

func (s *Submitter) validateRequest(req Request) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Status: kindStatus[KindValidation], Message: "invalid booking request", Err: err}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email address")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return &Error{Kind: KindValidation, Status: kindStatus[KindValidation], Message: strings.Join(msgs, ", "), Err: err}
}

// notifyAsync sends confirmations on a detached context.
func (s *Submitter) notifyAsync(req Request, branchID string, startUTC time.Time, booking *phorest.Booking) {
	if s.notifier == nil {
		return
	}
	if req.Email == "" && s.directory == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		email, name := req.Email, req.ClientName
		if email == "" {
			client, err := s.directory.GetClient(ctx, req.ClientID)
			if err != nil {
				s.logger.Warn("client lookup for confirmation failed", "client_id", req.ClientID, "error", err)
				return
			}
			email = client.Email
			if name == "" {
				name = strings.TrimSpace(client.FirstName + " " + client.LastName)
			}
		}
		if email == "" {
			return
		}

		err := s.notifier.NotifyBooked(ctx, notify.Confirmation{
			BookingID:   booking.ID,
			Status:      booking.Status,
			ClientName:  name,
			ClientEmail: email,
			ServiceID:   req.ServiceID,
			StaffID:     req.StaffID,
			BranchID:    branchID,
			StartLocal:  startUTC.In(s.opts.Location),
			Notes:       req.Notes,
		})
		if err != nil {
			s.logger.Error("booking notification failed", "booking_id", booking.ID, "error", err)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *Submitter) Wait() {
	s.wg.Wait()
}

func stateFor(kind Kind) State {
	switch kind {
	case KindUnknownOutcome:
		return StateUnknownOutcome
	case KindProviderUnavailable, KindUnknown:
		return StateProviderError
	default:
		return StateRejected
	}
}
