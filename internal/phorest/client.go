package phorest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultPageSize = 100
	maxPages        = 50
)

// CallObserver records provider call latency. metrics.ProviderMetrics satisfies it.
type CallObserver interface {
	ObserveProviderCall(operation, status string, seconds float64)
}

// Config holds credentials and endpoint settings.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	BusinessID string
	Timeout    time.Duration
}

// PhorestClient wraps the Phorest REST API. It is safe for concurrent use and
// is meant to be built once at startup and shared.
type PhorestClient struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	businessID string
	logger     *logging.Logger
	observer   CallObserver
}

// NewPhorestClient constructs a Phorest client.
func NewPhorestClient(cfg Config, logger *logging.Logger) *PhorestClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PhorestClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		businessID: cfg.BusinessID,
		logger:     logger,
	}
}

// WithObserver attaches a latency observer.
func (c *PhorestClient) WithObserver(o CallObserver) *PhorestClient {
	c.observer = o
	return c
}

// ListBranches returns every branch of the business.
func (c *PhorestClient) ListBranches(ctx context.Context) ([]Branch, error) {
	var out branchesResponse
	if err := c.doJSON(ctx, "list_branches", http.MethodGet, c.businessPath("branch"), nil, &out); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return out.Embedded.Branches, nil
}

// ListStaff returns all staff at a branch, following pagination.
func (c *PhorestClient) ListStaff(ctx context.Context, branchID string) ([]Staff, error) {
	staff, err := c.listStaff(ctx, "list_staff", branchID, nil)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// ListQualifiedStaff returns staff the provider considers qualified for the
// service. ErrQualifiedStaffUnsupported signals the caller to fall back to
// ListStaff plus local filtering.
func (c *PhorestClient) ListQualifiedStaff(ctx context.Context, branchID, serviceID string) ([]Staff, error) {
	q := url.Values{}
	q.Set("service_id", serviceID)
	staff, err := c.listStaff(ctx, "list_qualified_staff", branchID, q)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
				return nil, ErrQualifiedStaffUnsupported
			}
		}
		return nil, fmt.Errorf("list qualified staff: %w", err)
	}
	return staff, nil
}

func (c *PhorestClient) listStaff(ctx context.Context, op, branchID string, extra url.Values) ([]Staff, error) {
	var all []Staff
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		for k, v := range extra {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("size", strconv.Itoa(defaultPageSize))

		var out staffResponse
		path := c.branchPath(branchID, "staff") + "?" + q.Encode()
		if err := c.doJSON(ctx, op, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}
		for _, s := range out.Embedded.Staffs {
			if s.BranchID == "" {
				s.BranchID = branchID
			}
			all = append(all, s)
		}
		if out.Page.TotalPages <= page+1 {
			break
		}
	}
	return all, nil
}

// ListServices returns the branch service menu.
func (c *PhorestClient) ListServices(ctx context.Context, branchID string) ([]Service, error) {
	var out servicesResponse
	path := c.branchPath(branchID, "service") + "?size=" + strconv.Itoa(defaultPageSize)
	if err := c.doJSON(ctx, "list_services", http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out.Embedded.Services, nil
}

// GetClient fetches a client record.
func (c *PhorestClient) GetClient(ctx context.Context, clientID string) (*Client, error) {
	var out Client
	path := c.businessPath("client/" + url.PathEscape(clientID))
	if err := c.doJSON(ctx, "get_client", http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &out, nil
}

// GetOpenSlots returns one staff member's start times for a service-length
// appointment on date. dayStart and dayEnd bound the business-local day in UTC.
func (c *PhorestClient) GetOpenSlots(ctx context.Context, branchID, staffID string, dayStart, dayEnd time.Time, durationMins int) ([]Slot, error) {
	q := url.Values{}
	q.Set("from", FormatWireTime(dayStart))
	q.Set("to", FormatWireTime(dayEnd))
	q.Set("duration", strconv.Itoa(durationMins))
	path := c.branchPath(branchID, "staff/"+url.PathEscape(staffID)+"/availability") + "?" + q.Encode()

	var out slotsResponse
	if err := c.doJSON(ctx, "get_open_slots", http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("get open slots: %w", err)
	}

	slots := make([]Slot, 0, len(out.Slots))
	for _, raw := range out.Slots {
		start, err := ParseWireTime(raw.StartTime)
		if err != nil {
			c.logger.Warn("phorest: skipping slot with bad start time", "staff_id", staffID, "start", raw.StartTime)
			continue
		}
		slot := Slot{StartTime: start, Available: true}
		if raw.Available != nil {
			slot.Available = *raw.Available
		}
		if end, err := ParseWireTime(raw.EndTime); err == nil {
			slot.EndTime = end
		} else {
			slot.EndTime = start.Add(time.Duration(durationMins) * time.Minute)
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// CreateBooking submits a single-service booking. StartTime must already be
// the intended instant; it is sent in UTC.
func (c *PhorestClient) CreateBooking(ctx context.Context, branchID string, req CreateBookingRequest) (*Booking, error) {
	payload := createBookingPayload{
		ClientID: req.ClientID,
		ClientAppointmentSchedules: []clientAppointmentSchedule{{
			ClientID: req.ClientID,
			ServiceSchedules: []serviceSchedule{{
				ServiceID: req.ServiceID,
				StaffID:   req.StaffID,
				StartTime: FormatWireTime(req.StartTime),
			}},
		}},
		BookingStatus: "ACTIVE",
		Note:          req.Notes,
	}

	var out createBookingResponse
	if err := c.doJSON(ctx, "create_booking", http.MethodPost, c.branchPath(branchID, "booking"), payload, &out); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	booking := &Booking{ID: out.BookingID, Status: out.BookingStatus}
	if booking.ID == "" {
		booking.ID = out.ID
	}
	if booking.Status == "" {
		booking.Status = out.Status
	}
	return booking, nil
}

func (c *PhorestClient) businessPath(suffix string) string {
	return fmt.Sprintf("/business/%s/%s", url.PathEscape(c.businessID), suffix)
}

func (c *PhorestClient) branchPath(branchID, suffix string) string {
	return fmt.Sprintf("/business/%s/branch/%s/%s", url.PathEscape(c.businessID), url.PathEscape(branchID), suffix)
}

func (c *PhorestClient) doJSON(ctx context.Context, op, method, path string, body interface{}, out interface{}) (err error) {
	if strings.TrimSpace(c.businessID) == "" {
		return fmt.Errorf("phorest: missing business id")
	}

	start := time.Now()
	status := "ok"
	defer func() {
		if c.observer != nil {
			if err != nil {
				status = "error"
			}
			c.observer.ObserveProviderCall(op, status, time.Since(start).Seconds())
		}
	}()

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("phorest: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("phorest: build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("phorest: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return fmt.Errorf("%w: read response: %w", ErrUndecodableResponse, err)
		}
		return fmt.Errorf("phorest: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp.StatusCode, respBody)
		c.logger.Warn("phorest API non-2xx response", "status", resp.StatusCode, "operation", op, "code", apiErr.Code, "body", apiErr.Body)
		return apiErr
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.Warn("phorest 2xx response not decodable", "status", resp.StatusCode, "operation", op)
		return fmt.Errorf("%w: status %d: %w", ErrUndecodableResponse, resp.StatusCode, err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	msg := string(body)
	if len(msg) > 300 {
		msg = msg[:300]
	}
	apiErr := &APIError{StatusCode: status, Body: msg}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = firstNonEmpty(env.ErrorCode, env.Code)
		apiErr.Message = firstNonEmpty(env.Detail, env.Message, env.Error)
	}
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
