package enums

import "fmt"

// DisputeSender attributes a dispute thread message to a party.
type DisputeSender string

const (
	DisputeSenderBuyer  DisputeSender = "BUYER"
	DisputeSenderSeller DisputeSender = "SELLER"
	DisputeSenderAdmin  DisputeSender = "ADMIN"
)

var validDisputeSenders = []DisputeSender{
	DisputeSenderBuyer,
	DisputeSenderSeller,
	DisputeSenderAdmin,
}

// IsValid reports whether the value is a known DisputeSender.
func (s DisputeSender) IsValid() bool {
	for _, candidate := range validDisputeSenders {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDisputeSender converts raw input into a DisputeSender.
func ParseDisputeSender(value string) (DisputeSender, error) {
	for _, candidate := range validDisputeSenders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute sender %q", value)
}
