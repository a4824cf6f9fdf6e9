// Package admission decides whether a booking may be created or moved.
//
// The controller is pure: callers pre-fetch counts and flags from the store
// and pass them in, so every decision is deterministic for a given clock.
package admission

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
)

type Controller struct {
	policy Policy
	now    func() time.Time
}

type Option func(*Controller)

// WithClock replaces time.Now as the controller's notion of the present.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func NewController(policy Policy, opts ...Option) *Controller {
	c := &Controller{policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Policy() Policy {
	return c.policy
}

// CreateRequest is a snapshot of the state relevant to a new booking.
type CreateRequest struct {
	Requester     models.Requester
	DentistID     primitive.ObjectID
	BookingDate   time.Time
	DentistExists bool
	// UserBookings is the number of bookings the requester currently holds.
	UserBookings int64
	// SlotBookings is the number of bookings on (DentistID, BookingDate).
	SlotBookings int64
}

// EvaluateCreate applies, in order: dentist existence, the per-user cap,
// slot exclusivity and the lead time. The first failing rule wins.
func (c *Controller) EvaluateCreate(req CreateRequest) Decision {
	if !req.DentistExists {
		return notFound("dentist", fmt.Sprintf("No dentist with the id of %s", req.DentistID.Hex()))
	}

	admin := req.Requester.IsAdmin()
	limit := c.policy.MaxBookingsPerUser
	if !admin && limit > 0 && req.UserBookings >= int64(limit) {
		return conflict(ReasonUserAlreadyBooked,
			fmt.Sprintf("The user with ID %s has already made %d booking(s)", req.Requester.ID.Hex(), req.UserBookings))
	}

	if d := c.checkSlot(admin, req.DentistID, req.BookingDate, req.SlotBookings); !d.Approved() {
		return d
	}

	return c.checkLeadTime(admin, req.Requester.ID, req.BookingDate)
}

// UpdateRequest is a snapshot of the state relevant to moving a booking.
// SlotBookings must not count Booking itself.
type UpdateRequest struct {
	Requester      models.Requester
	Booking        models.Booking
	NewBookingDate time.Time
	SlotBookings   int64
}

// EvaluateUpdate checks ownership first, then re-runs slot exclusivity and
// the lead time against the proposed date. Admins may move any booking and
// bypass slot exclusivity.
func (c *Controller) EvaluateUpdate(req UpdateRequest) Decision {
	admin := req.Requester.IsAdmin()
	if !admin && !req.Requester.Owns(req.Booking) {
		return unauthorized(fmt.Sprintf("User %s is not authorized to update booking %s",
			req.Requester.ID.Hex(), req.Booking.ID.Hex()))
	}

	if d := c.checkSlot(admin, req.Booking.DentistID, req.NewBookingDate, req.SlotBookings); !d.Approved() {
		return d
	}

	return c.checkLeadTime(admin, req.Booking.UserID, req.NewBookingDate)
}

func (c *Controller) checkSlot(admin bool, dentistID primitive.ObjectID, date time.Time, taken int64) Decision {
	if admin || !c.policy.SlotExclusivity || taken < 1 {
		return approve()
	}
	return conflict(ReasonSlotTaken, fmt.Sprintf("Dentist %s is already booked at %s",
		dentistID.Hex(), date.UTC().Format(time.RFC3339)))
}

func (c *Controller) checkLeadTime(admin bool, userID primitive.ObjectID, date time.Time) Decision {
	if admin && c.policy.AdminBypassesLeadTime {
		return approve()
	}
	earliest := c.now().Add(c.policy.LeadTime)
	if date.Before(earliest) {
		return invalidArgument(ReasonLeadTimeTooShort,
			fmt.Sprintf("bookingDate %s for user %s must be at least %s from now",
				date.UTC().Format(time.RFC3339), userID.Hex(), c.policy.LeadTime))
	}
	return approve()
}
