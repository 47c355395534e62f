package availability

import (
	"testing"

	"github.com/wolfman30/skinclinic-api/internal/phorest"
)

func TestQualifies(t *testing.T) {
	tests := []struct {
		name  string
		staff phorest.Staff
		want  bool
	}{
		{"bookable", phorest.Staff{ID: "1", FirstName: "Amy", BranchID: "br-1"}, true},
		{"other branch", phorest.Staff{ID: "2", FirstName: "Amy", BranchID: "br-2"}, false},
		{"archived", phorest.Staff{ID: "3", FirstName: "Amy", BranchID: "br-1", Archived: true}, false},
		{"hidden online", phorest.Staff{ID: "4", FirstName: "Amy", BranchID: "br-1", HideFromOnlineBookings: true}, false},
		{"test account", phorest.Staff{ID: "5", FirstName: "TEST Therapist", BranchID: "br-1"}, false},
		{"led marker", phorest.Staff{ID: "6", FirstName: "LED Room", BranchID: "br-1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Qualifies(tt.staff, "br-1", DefaultTestAccountMarkers); got != tt.want {
				t.Fatalf("Qualifies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLooksLikeTestAccount(t *testing.T) {
	if !LooksLikeTestAccount("Tester", []string{"test"}) {
		t.Fatal("expected case-insensitive substring match")
	}
	if LooksLikeTestAccount("Amy", []string{"test", " "}) {
		t.Fatal("did not expect match")
	}
	if LooksLikeTestAccount("", DefaultTestAccountMarkers) {
		t.Fatal("empty name should not match")
	}
	if LooksLikeTestAccount("Tester", nil) {
		t.Fatal("no markers should never match")
	}
}

func TestQualifiedFor(t *testing.T) {
	if !QualifiedFor(phorest.Staff{}, "svc-1") {
		t.Fatal("staff without qualification data should pass")
	}
	if !QualifiedFor(phorest.Staff{QualifiedServiceIDs: []string{"svc-1"}}, "svc-1") {
		t.Fatal("expected qualified")
	}
	if QualifiedFor(phorest.Staff{QualifiedServiceIDs: []string{"svc-2"}}, "svc-1") {
		t.Fatal("service not in qualified list")
	}
	if QualifiedFor(phorest.Staff{DisqualifiedServiceIDs: []string{"svc-1"}}, "svc-1") {
		t.Fatal("disqualified service should fail")
	}
}

func TestFilterQualified_NeverReturnsOtherBranch(t *testing.T) {
	staff := []phorest.Staff{
		{ID: "a", FirstName: "Amy", BranchID: "br-1"},
		{ID: "b", FirstName: "Bea", BranchID: "br-2"},
		{ID: "c", FirstName: "Cat", BranchID: "br-1", QualifiedServiceIDs: []string{"svc-9"}},
		{ID: "d", FirstName: "Dee", BranchID: ""},
		{ID: "e", FirstName: "Eve", BranchID: "br-1", DisqualifiedServiceIDs: []string{"svc-2"}},
	}

	got := FilterQualified(staff, "br-1", "svc-1", DefaultTestAccountMarkers)
	for _, s := range got {
		if s.BranchID != "br-1" {
			t.Fatalf("returned staff %s from branch %q", s.ID, s.BranchID)
		}
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "e" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestFilterQualified_ProviderAndLocalPathsAgree(t *testing.T) {
	all := []phorest.Staff{
		{ID: "a", FirstName: "Amy", BranchID: "br-1", QualifiedServiceIDs: []string{"svc-1"}},
		{ID: "b", FirstName: "Bea", BranchID: "br-1", QualifiedServiceIDs: []string{"svc-2"}},
		{ID: "c", FirstName: "Cat", BranchID: "br-1", QualifiedServiceIDs: []string{"svc-1"}, Archived: true},
	}
	// What a qualification-aware endpoint would return for svc-1.
	providerFiltered := []phorest.Staff{all[0], all[2]}

	local := FilterQualified(all, "br-1", "svc-1", nil)
	remote := FilterQualified(providerFiltered, "br-1", "svc-1", nil)
	if len(local) != len(remote) || len(local) != 1 || local[0].ID != remote[0].ID {
		t.Fatalf("paths disagree: local=%v remote=%v", local, remote)
	}
}

func TestFilterQualified_DropsDuplicateStaffIDs(t *testing.T) {
	staff := []phorest.Staff{
		{ID: "a", FirstName: "Amy", BranchID: "br-1"},
		{ID: "b", FirstName: "Bea", BranchID: "br-1"},
		{ID: "a", FirstName: "Amy", BranchID: "br-1"},
	}

	got := FilterQualified(staff, "br-1", "svc-1", nil)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected result %+v", got)
	}
}
