package phorest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/wolfman30/skinclinic-api/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *PhorestClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewPhorestClient(Config{
		BaseURL:    ts.URL,
		Username:   "user",
		Password:   "pass",
		BusinessID: "biz-1",
	}, logging.New("error"))
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveProviderCall(operation, status string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, operation+":"+status)
}

func TestListStaff_FollowsPagination(t *testing.T) {
	var pages []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/business/biz-1/branch/br-1/staff" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			t.Fatalf("expected basic auth, got %q/%q", user, pass)
		}
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		id := "st-" + page
		number, _ := strconv.Atoi(page)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_embedded": map[string]any{"staffs": []map[string]any{{"staffId": id, "firstName": "Amy", "branchId": "br-1"}}},
			"page":      map[string]any{"totalPages": 2, "number": number},
		})
	})

	staff, err := client.ListStaff(context.Background(), "br-1")
	if err != nil {
		t.Fatalf("ListStaff() error = %v", err)
	}
	if len(staff) != 2 {
		t.Fatalf("len(staff) = %d, want 2", len(staff))
	}
	if len(pages) != 2 || pages[0] != "0" || pages[1] != "1" {
		t.Fatalf("unexpected pages requested: %v", pages)
	}
}

func TestListStaff_DefaultsMissingBranch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_embedded":{"staffs":[{"staffId":"st-1","firstName":"Amy","hideFromOnlineBookings":true,"disqualifiedServiceIds":["svc-2"]}]},"page":{"totalPages":1}}`))
	})

	staff, err := client.ListStaff(context.Background(), "br-9")
	if err != nil {
		t.Fatalf("ListStaff() error = %v", err)
	}
	if staff[0].BranchID != "br-9" {
		t.Fatalf("BranchID = %q, want br-9", staff[0].BranchID)
	}
	if !staff[0].HideFromOnlineBookings {
		t.Fatal("expected hideFromOnlineBookings to decode")
	}
	if len(staff[0].DisqualifiedServiceIDs) != 1 {
		t.Fatalf("expected disqualified services, got %v", staff[0].DisqualifiedServiceIDs)
	}
}

func TestListQualifiedStaff_Unsupported(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("service_id") != "svc-1" {
			t.Fatalf("service_id = %s", r.URL.Query().Get("service_id"))
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.ListQualifiedStaff(context.Background(), "br-1", "svc-1")
	if !errors.Is(err, ErrQualifiedStaffUnsupported) {
		t.Fatalf("expected ErrQualifiedStaffUnsupported, got %v", err)
	}
}

func TestListQualifiedStaff_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.ListQualifiedStaff(context.Background(), "br-1", "svc-1")
	if err == nil || errors.Is(err, ErrQualifiedStaffUnsupported) {
		t.Fatalf("expected a hard error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected wrapped APIError 502, got %v", err)
	}
}

func TestGetOpenSlots(t *testing.T) {
	obs := &recordingObserver{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/business/biz-1/branch/br-1/staff/st-1/availability" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "2026-03-01T16:00:00.000Z" {
			t.Fatalf("from = %s", got)
		}
		if got := r.URL.Query().Get("duration"); got != "60" {
			t.Fatalf("duration = %s", got)
		}
		_, _ = w.Write([]byte(`{"slots":[
			{"startTime":"2026-03-02T01:00:00.000Z","endTime":"2026-03-02T02:00:00.000Z","available":true},
			{"startTime":"2026-03-02T02:00:00.000Z","available":false},
			{"startTime":"garbage"}
		]}`))
	})
	client.WithObserver(obs)

	from := time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)
	slots, err := client.GetOpenSlots(context.Background(), "br-1", "st-1", from, from.Add(24*time.Hour), 60)
	if err != nil {
		t.Fatalf("GetOpenSlots() error = %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("len(slots) = %d, want 2 (malformed row skipped)", len(slots))
	}
	if !slots[0].Available || slots[1].Available {
		t.Fatalf("unexpected availability flags: %+v", slots)
	}
	if !slots[1].EndTime.Equal(slots[1].StartTime.Add(time.Hour)) {
		t.Fatalf("expected end time derived from duration, got %s", slots[1].EndTime)
	}
	if len(obs.calls) != 1 || obs.calls[0] != "get_open_slots:ok" {
		t.Fatalf("unexpected observer calls: %v", obs.calls)
	}
}

func TestCreateBooking_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		var payload createBookingPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got := payload.ClientAppointmentSchedules[0].ServiceSchedules[0]
		if got.StartTime != "2026-03-01T16:30:00.000Z" {
			t.Fatalf("startTime = %s", got.StartTime)
		}
		if got.StaffID != "st-1" || got.ServiceID != "svc-1" {
			t.Fatalf("unexpected schedule %+v", got)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"bookingId":"bk-1","bookingStatus":"ACTIVE"}`))
	})

	res, err := client.CreateBooking(context.Background(), "br-1", CreateBookingRequest{
		ClientID:  "cl-1",
		ServiceID: "svc-1",
		StaffID:   "st-1",
		StartTime: time.Date(2026, 3, 2, 0, 30, 0, 0, time.FixedZone("AWST", 8*3600)),
	})
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}
	if res.ID != "bk-1" || res.Status != "ACTIVE" {
		t.Fatalf("unexpected booking %+v", res)
	}
}

func TestCreateBooking_StructuredError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"STAFF_DOUBLE_BOOKED","detail":"Staff member already has an appointment"}`))
	})

	_, err := client.CreateBooking(context.Background(), "br-1", CreateBookingRequest{StartTime: time.Now()})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "STAFF_DOUBLE_BOOKED" {
		t.Fatalf("code = %q", apiErr.Code)
	}
	if apiErr.Message == "" {
		t.Fatal("expected detail message")
	}
}

func TestCreateBooking_UndecodableSuccessBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`<html>created</html>`))
	})

	_, err := client.CreateBooking(context.Background(), "br-1", CreateBookingRequest{StartTime: time.Now()})
	if !errors.Is(err, ErrUndecodableResponse) {
		t.Fatalf("expected ErrUndecodableResponse, got %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("2xx must not surface as APIError: %v", err)
	}
}

func TestMissingBusinessID(t *testing.T) {
	client := NewPhorestClient(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	if _, err := client.ListBranches(context.Background()); err == nil {
		t.Fatal("expected error without business id")
	}
}

func TestContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.ListBranches(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWireTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 12, 31, 23, 45, 0, 0, time.UTC)
	out, err := ParseWireTime(FormatWireTime(in))
	if err != nil {
		t.Fatalf("ParseWireTime() error = %v", err)
	}
	if !out.Equal(in) {
		t.Fatalf("round trip = %s, want %s", out, in)
	}
	if _, err := ParseWireTime("31/12/2026"); err == nil {
		t.Fatal("expected parse error")
	}
}
