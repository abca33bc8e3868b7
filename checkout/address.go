package checkout

import (
	"strings"

	"treadline/models"
)

// ValidationError lists the address fields that are missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "please fill in all required address fields: " + strings.Join(e.Missing, ", ")
}

// ValidateAddresses checks billing always and shipping unless sameAsBilling.
func ValidateAddresses(billing, shipping models.Address, sameAsBilling bool) error {
	missing := missingFields("billing", billing)
	if !sameAsBilling {
		missing = append(missing, missingFields("shipping", shipping)...)
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

func missingFields(prefix string, a models.Address) []string {
	fields := []struct {
		name, value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, prefix+"."+f.name)
		}
	}
	return out
}
