package availability

import (
	"strings"

	"github.com/wolfman30/skinclinic-api/internal/phorest"
)

// DefaultTestAccountMarkers are the name fragments treated as placeholder
// staff when no markers are configured.
var DefaultTestAccountMarkers = []string{"test", "led"}

// LooksLikeTestAccount reports whether firstName contains any marker,
// case-insensitively. This is a name heuristic and can misfire in both
// directions; the provider has no authoritative test-account flag.
func LooksLikeTestAccount(firstName string, markers []string) bool {
	name := strings.ToLower(strings.TrimSpace(firstName))
	if name == "" {
		return false
	}
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" && strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Qualifies reports whether s may take online bookings at branchID.
func Qualifies(s phorest.Staff, branchID string, markers []string) bool {
	return s.BranchID == branchID &&
		!s.Archived &&
		!s.HideFromOnlineBookings &&
		!LooksLikeTestAccount(s.FirstName, markers)
}

// QualifiedFor checks the staff member's service qualification lists. Staff
// without qualification data are not excluded here.
func QualifiedFor(s phorest.Staff, serviceID string) bool {
	for _, id := range s.DisqualifiedServiceIDs {
		if id == serviceID {
			return false
		}
	}
	if len(s.QualifiedServiceIDs) == 0 {
		return true
	}
	for _, id := range s.QualifiedServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// FilterQualified returns the staff that pass both Qualifies and QualifiedFor,
// preserving input order. A staff ID listed more than once is kept once.
func FilterQualified(staff []phorest.Staff, branchID, serviceID string, markers []string) []phorest.Staff {
	out := make([]phorest.Staff, 0, len(staff))
	seen := make(map[string]struct{}, len(staff))
	for _, s := range staff {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		if Qualifies(s, branchID, markers) && QualifiedFor(s, serviceID) {
			seen[s.ID] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
