package tfnsync

import (
	"testing"

	"github.com/mmdatafocus/fleet_backend/models"
)

func TestNormalizeRegistration(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"CA 123-456", "CA123456"},
		{"ca123456", "CA123456"},
		{"CA-123 456", "CA123456"},
		{" nd 77 aa gp ", "ND77AAGP"},
		{"", ""},
		{"- -", ""},
	}
	for _, tc := range cases {
		if got := NormalizeRegistration(tc.in); got != tc.want {
			t.Errorf("NormalizeRegistration(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// Registrations differing only in dash/space placement and case must
// resolve to the same local vehicle.
func TestMatchVehicle_NormalizationInvariant(t *testing.T) {
	local := &models.Vehicle{ID: 7, RegistrationNumber: "CA123456"}
	index := indexVehiclesByRegistration([]*models.Vehicle{local})

	for _, remote := range []string{"CA 123-456", "ca 123 456", "CA-123-456", "CA123456"} {
		if got := matchVehicle(index, remote); got != local {
			t.Errorf("matchVehicle(%q) = %v, want vehicle 7", remote, got)
		}
	}

	if got := matchVehicle(index, "ZZ 999"); got != nil {
		t.Errorf("matchVehicle(unknown) = %v, want nil", got)
	}
	if got := matchVehicle(index, " - "); got != nil {
		t.Errorf("matchVehicle(empty normalized) = %v, want nil", got)
	}
}

func TestSplitFullName(t *testing.T) {
	cases := []struct {
		in        string
		wantFirst string
		wantLast  string
	}{
		{"John Smith", "John", "Smith"},
		{"John van der Merwe", "John", "van der Merwe"},
		{"Madonna", "Madonna", ""},
		{"", "Unknown", ""},
		{"   ", "Unknown", ""},
		{"  Thabo  Mbeki ", "Thabo", "Mbeki"},
		{"Jürgen Müller", "Jürgen", "Müller"},
	}
	for _, tc := range cases {
		first, last := SplitFullName(tc.in)
		if first != tc.wantFirst || last != tc.wantLast {
			t.Errorf("SplitFullName(%q) = (%q, %q), want (%q, %q)", tc.in, first, last, tc.wantFirst, tc.wantLast)
		}
	}
}

func TestNormalizePhone_EquivalentSpellings(t *testing.T) {
	a := NormalizePhone("082 555 1234")
	b := NormalizePhone("0825551234")
	if a == "" || b == "" {
		t.Fatalf("expected non-empty normalized phones, got %q and %q", a, b)
	}
	if a != b {
		t.Errorf("normalized phones differ: %q vs %q", a, b)
	}
	if got := NormalizePhone(""); got != "" {
		t.Errorf("NormalizePhone(\"\") = %q, want empty", got)
	}
}

func TestFirstActiveEntry(t *testing.T) {
	entries := []tfnOrderEntry{
		{Registration: "AA 1", Deleted: true},
		{Registration: "BB 2"},
		{Registration: "CC 3"},
	}
	entry := firstActiveEntry(entries)
	if entry == nil || entry.Registration != "BB 2" {
		t.Fatalf("firstActiveEntry = %+v, want BB 2", entry)
	}
	if firstActiveEntry([]tfnOrderEntry{{Deleted: true}}) != nil {
		t.Error("expected nil when all entries are deleted")
	}
	if firstActiveEntry(nil) != nil {
		t.Error("expected nil for no entries")
	}
}
