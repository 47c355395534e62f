package availability

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/skinclinic-api/internal/observability/metrics"
	"github.com/wolfman30/skinclinic-api/internal/phorest"
	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

var availabilityTracer = otel.Tracer("skinclinic.internal.availability")

const (
	defaultDuration     = 60
	defaultFetchTimeout = 8 * time.Second
	defaultConcurrency  = 8
	dateLayout          = "2006-01-02"
	slotTimeLayout      = "15:04"
)

// Provider is the subset of the salon API the aggregator depends on.
type Provider interface {
	ListStaff(ctx context.Context, branchID string) ([]phorest.Staff, error)
	ListQualifiedStaff(ctx context.Context, branchID, serviceID string) ([]phorest.Staff, error)
	GetOpenSlots(ctx context.Context, branchID, staffID string, dayStart, dayEnd time.Time, durationMins int) ([]phorest.Slot, error)
}

// Request asks for every qualified staff member's open slots on one date.
type Request struct {
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	ServiceID     string `json:"serviceId" validate:"required"`
	BranchID      string `json:"branchId" validate:"required"`
	Duration      int    `json:"duration,omitempty" validate:"omitempty,min=1,max=480"`
	OnlyAvailable bool   `json:"onlyAvailable,omitempty"`
}

// TimeSlot is one start time for one staff member, rendered in business-local "HH:MM".
type TimeSlot struct {
	Time      string `json:"time"`
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
	Available bool   `json:"available"`
}

// StaffAvailability is the per-staff breakdown. Error is set when that
// staff member's slot fetch failed, in which case Slots is empty. Details
// carries the provider's raw error text and is stripped in production.
type StaffAvailability struct {
	StaffID   string     `json:"staffId"`
	StaffName string     `json:"staffName"`
	JobTitle  string     `json:"jobTitle,omitempty"`
	Slots     []TimeSlot `json:"slots"`
	Error     string     `json:"error,omitempty"`
	Details   string     `json:"details,omitempty"`
}

// Result is the merged availability for a date.
type Result struct {
	Date  string              `json:"date"`
	Slots []TimeSlot          `json:"slots"`
	Staff []StaffAvailability `json:"staff"`
}

// Options tunes the aggregator. Zero values fall back to defaults.
type Options struct {
	QualifiedStaffEnabled bool
	FetchTimeout          time.Duration
	Concurrency           int
	DefaultDuration       int
	Location              *time.Location
	TestAccountMarkers    []string
}

// Aggregator resolves qualified staff and merges their open slots.
type Aggregator struct {
	provider Provider
	opts     Options
	validate *validator.Validate
	metrics  *metrics.AvailabilityMetrics
	logger   *logging.Logger
}

// NewAggregator builds an Aggregator. m may be nil.
func NewAggregator(provider Provider, opts Options, m *metrics.AvailabilityMetrics, logger *logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = defaultDuration
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.TestAccountMarkers == nil {
		opts.TestAccountMarkers = DefaultTestAccountMarkers
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return &Aggregator{
		provider: provider,
		opts:     opts,
		validate: v,
		metrics:  m,
		logger:   logger,
	}
}

// Validate checks the request without touching the provider.
func (a *Aggregator) Validate(req Request) error {
	err := a.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []string{err.Error()}}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields = append(fields, fe.Field()+" is required")
		case "datetime":
			fields = append(fields, fe.Field()+" must be YYYY-MM-DD")
		default:
			fields = append(fields, fe.Field()+" must be between 1 and 480")
		}
	}
	return &ValidationError{Fields: fields}
}

// Aggregate returns merged open slots for every qualified staff member.
// One staff member's failed fetch is reported on their entry and never
// removes other staff members' slots.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveRequest(outcomeLabel(err), time.Since(start).Seconds())
	}()

	if err := a.Validate(req); err != nil {
		return nil, err
	}
	if req.Duration == 0 {
		req.Duration = a.opts.DefaultDuration
	}

	ctx, span := availabilityTracer.Start(ctx, "availability.aggregate")
	defer span.End()
	span.SetAttributes(
		attribute.String("skinclinic.branch_id", req.BranchID),
		attribute.String("skinclinic.service_id", req.ServiceID),
		attribute.String("skinclinic.date", req.Date),
	)

	day, err := time.ParseInLocation(dateLayout, req.Date, a.opts.Location)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"date must be YYYY-MM-DD"}}
	}

	staff, err := a.resolveStaff(ctx, req.BranchID, req.ServiceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("skinclinic.staff_count", len(staff)))

	breakdown := a.fetchAll(ctx, req, staff, day, day.AddDate(0, 0, 1))

	res = &Result{
		Date:  req.Date,
		Slots: make([]TimeSlot, 0),
		Staff: breakdown,
	}
	for _, sa := range breakdown {
		for _, slot := range sa.Slots {
			if req.OnlyAvailable && !slot.Available {
				continue
			}
			res.Slots = append(res.Slots, slot)
		}
	}
	sort.SliceStable(res.Slots, func(i, j int) bool {
		return res.Slots[i].Time < res.Slots[j].Time
	})
	return res, nil
}

func (a *Aggregator) resolveStaff(ctx context.Context, branchID, serviceID string) ([]phorest.Staff, error) {
	var (
		staff []phorest.Staff
		err   error
	)
	if a.opts.QualifiedStaffEnabled {
		staff, err = a.provider.ListQualifiedStaff(ctx, branchID, serviceID)
		if errors.Is(err, phorest.ErrQualifiedStaffUnsupported) {
			a.logger.Debug("qualified staff endpoint unsupported, filtering locally", "branch_id", branchID)
			staff, err = a.provider.ListStaff(ctx, branchID)
		}
	} else {
		staff, err = a.provider.ListStaff(ctx, branchID)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.Error("staff lookup failed", "branch_id", branchID, "service_id", serviceID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	qualified := FilterQualified(staff, branchID, serviceID, a.opts.TestAccountMarkers)
	if len(qualified) == 0 {
		return nil, ErrNoQualifiedStaff
	}
	return qualified, nil
}

func (a *Aggregator) fetchAll(ctx context.Context, req Request, staff []phorest.Staff, dayStart, dayEnd time.Time) []StaffAvailability {
	out := make([]StaffAvailability, len(staff))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, s := range staff {
		g.Go(func() error {
			out[i] = a.fetchOne(ctx, req, s, dayStart, dayEnd)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *Aggregator) fetchOne(ctx context.Context, req Request, s phorest.Staff, dayStart, dayEnd time.Time) StaffAvailability {
	name := s.FullName()
	entry := StaffAvailability{
		StaffID:   s.ID,
		StaffName: name,
		JobTitle:  s.JobTitle,
		Slots:     make([]TimeSlot, 0),
	}

	ctx, span := availabilityTracer.Start(ctx, "availability.fetch_staff_slots")
	defer span.End()
	span.SetAttributes(attribute.String("skinclinic.staff_id", s.ID))

	callCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	slots, err := a.provider.GetOpenSlots(callCtx, req.BranchID, s.ID, dayStart.UTC(), dayEnd.UTC(), req.Duration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.metrics.ObserveStaffFetch("error")
		a.logger.Warn("staff slot fetch failed", "staff_id", s.ID, "branch_id", req.BranchID, "error", err)
		entry.Error = fetchErrorMessage(err)
		entry.Details = err.Error()
		return entry
	}
	a.metrics.ObserveStaffFetch("ok")

	for _, slot := range slots {
		local := slot.StartTime.In(a.opts.Location)
		if local.Before(dayStart) || !local.Before(dayEnd) {
			continue
		}
		entry.Slots = append(entry.Slots, TimeSlot{
			Time:      local.Format(slotTimeLayout),
			StaffID:   s.ID,
			StaffName: name,
			Available: slot.Available,
		})
	}
	sort.SliceStable(entry.Slots, func(i, j int) bool {
		return entry.Slots[i].Time < entry.Slots[j].Time
	})
	return entry
}

// fetchErrorMessage never echoes provider text; that goes to Details.
func fetchErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out fetching availability"
	}
	return "availability could not be loaded for this practitioner"
}

func outcomeLabel(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrNoQualifiedStaff):
		return "no_staff"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "error"
	}
}
