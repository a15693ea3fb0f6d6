package tfnsync

import (
	"strings"
	"unicode"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
)

// NormalizeRegistration strips dashes and spaces and upper-cases the rest,
// so "CA 123-456" and "ca123456" compare equal. Other punctuation is kept:
// the partner only varies spacing and dashes.
func NormalizeRegistration(registration string) string {
	var b strings.Builder
	for _, r := range registration {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// SplitFullName splits a free-text name at the first space: the first token
// becomes the first name, the remainder the last name. An empty name yields
// "Unknown" so a driver row can always be created.
func SplitFullName(fullName string) (string, string) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return "Unknown", ""
	}
	parts := strings.SplitN(fullName, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

// NormalizePhone canonicalizes a phone number for matching.
func NormalizePhone(phone string) string {
	return utils.NormalizePhoneNumber(phone)
}

// indexVehiclesByRegistration builds a normalized-registration index over
// the local fleet for the vehicle sync pass.
func indexVehiclesByRegistration(vehicles []*models.Vehicle) map[string]*models.Vehicle {
	index := make(map[string]*models.Vehicle, len(vehicles))
	for _, v := range vehicles {
		key := NormalizeRegistration(v.RegistrationNumber)
		if key == "" {
			continue
		}
		index[key] = v
	}
	return index
}

// matchVehicle resolves a remote registration against the index. An empty
// normalized registration never matches.
func matchVehicle(index map[string]*models.Vehicle, remoteRegistration string) *models.Vehicle {
	key := NormalizeRegistration(remoteRegistration)
	if key == "" {
		return nil
	}
	return index[key]
}

// firstActiveEntry returns the first non-deleted order entry, which
// supplies authoritative values when the order header omits them.
func firstActiveEntry(entries []tfnOrderEntry) *tfnOrderEntry {
	for i := range entries {
		if !entries[i].Deleted {
			return &entries[i]
		}
	}
	return nil
}
