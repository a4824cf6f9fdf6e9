package admission

import "time"

// DefaultLeadTime is the authoritative minimum time between now and a
// booking's date. Bookings closer than this are rejected.
const DefaultLeadTime = 24 * time.Hour

// DefaultMaxBookingsPerUser caps how many bookings a non-admin user may hold
// at once, across all dentists.
const DefaultMaxBookingsPerUser = 1

// Policy carries the tunable admission rules.
type Policy struct {
	// LeadTime is the minimum distance between now and the booking date.
	LeadTime time.Duration
	// MaxBookingsPerUser is the global cap for non-admin users. Zero or
	// negative disables the cap.
	MaxBookingsPerUser int
	// SlotExclusivity forbids two bookings on the same dentist and date
	// when a non-admin creates or moves a booking.
	SlotExclusivity bool
	// AdminBypassesLeadTime exempts admins from the lead time check.
	AdminBypassesLeadTime bool
}

// DefaultPolicy returns the canonical booking policy.
func DefaultPolicy() Policy {
	return Policy{
		LeadTime:              DefaultLeadTime,
		MaxBookingsPerUser:    DefaultMaxBookingsPerUser,
		SlotExclusivity:       true,
		AdminBypassesLeadTime: false,
	}
}
