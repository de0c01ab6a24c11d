package enums

import "fmt"

// RiderStatus tracks the approval state of a rider account.
type RiderStatus string

const (
	RiderStatusPending   RiderStatus = "pending"
	RiderStatusApproved  RiderStatus = "approved"
	RiderStatusSuspended RiderStatus = "suspended"
)

var validRiderStatuses = []RiderStatus{
	RiderStatusPending,
	RiderStatusApproved,
	RiderStatusSuspended,
}

// String implements fmt.Stringer.
func (r RiderStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RiderStatus.
func (r RiderStatus) IsValid() bool {
	for _, candidate := range validRiderStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRiderStatus converts raw input into a RiderStatus.
func ParseRiderStatus(value string) (RiderStatus, error) {
	for _, candidate := range validRiderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rider status %q", value)
}
