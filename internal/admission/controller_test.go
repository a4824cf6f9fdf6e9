package admission

import (
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestController(p Policy) *Controller {
	return NewController(p, WithClock(func() time.Time { return fixedNow }))
}

func user() models.Requester {
	return models.Requester{ID: primitive.NewObjectID(), Role: models.RoleUser}
}

func admin() models.Requester {
	return models.Requester{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
}

func TestEvaluateCreate(t *testing.T) {
	dentist := primitive.NewObjectID()
	ok := fixedNow.Add(48 * time.Hour)
	soon := fixedNow.Add(time.Hour)

	tests := []struct {
		name    string
		policy  Policy
		req     CreateRequest
		outcome Outcome
		reason  Reason
	}{
		{
			name:    "approved",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: ok, DentistExists: true},
			outcome: Approved,
		},
		{
			name:    "missing dentist wins over everything",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: soon, UserBookings: 3, SlotBookings: 2},
			outcome: NotFound,
		},
		{
			name:    "missing dentist for admin",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: admin(), DentistID: dentist, BookingDate: ok},
			outcome: NotFound,
		},
		{
			name:    "user cap",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: ok, DentistExists: true, UserBookings: 1},
			outcome: Conflict,
			reason:  ReasonUserAlreadyBooked,
		},
		{
			name:    "cap checked before slot",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: ok, DentistExists: true, UserBookings: 1, SlotBookings: 1},
			outcome: Conflict,
			reason:  ReasonUserAlreadyBooked,
		},
		{
			name:    "slot taken",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: ok, DentistExists: true, SlotBookings: 1},
			outcome: Conflict,
			reason:  ReasonSlotTaken,
		},
		{
			name:    "slot checked before lead time",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: soon, DentistExists: true, SlotBookings: 1},
			outcome: Conflict,
			reason:  ReasonSlotTaken,
		},
		{
			name:    "slot exclusivity disabled",
			policy:  Policy{LeadTime: DefaultLeadTime, MaxBookingsPerUser: 1},
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: ok, DentistExists: true, SlotBookings: 1},
			outcome: Approved,
		},
		{
			name:    "lead time too short",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: soon, DentistExists: true},
			outcome: InvalidArgument,
			reason:  ReasonLeadTimeTooShort,
		},
		{
			name:    "exactly at lead time",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: fixedNow.Add(DefaultLeadTime), DentistExists: true},
			outcome: Approved,
		},
		{
			name:    "admin bypasses cap and slot",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: admin(), DentistID: dentist, BookingDate: ok, DentistExists: true, UserBookings: 5, SlotBookings: 2},
			outcome: Approved,
		},
		{
			name:    "admin still subject to lead time by default",
			policy:  DefaultPolicy(),
			req:     CreateRequest{Requester: admin(), DentistID: dentist, BookingDate: soon, DentistExists: true},
			outcome: InvalidArgument,
			reason:  ReasonLeadTimeTooShort,
		},
		{
			name: "admin lead time bypass flag",
			policy: Policy{
				LeadTime:              DefaultLeadTime,
				MaxBookingsPerUser:    1,
				SlotExclusivity:       true,
				AdminBypassesLeadTime: true,
			},
			req:     CreateRequest{Requester: admin(), DentistID: dentist, BookingDate: soon, DentistExists: true},
			outcome: Approved,
		},
		{
			name:    "lead time bypass flag ignored for users",
			policy:  Policy{LeadTime: DefaultLeadTime, AdminBypassesLeadTime: true},
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: soon, DentistExists: true},
			outcome: InvalidArgument,
			reason:  ReasonLeadTimeTooShort,
		},
		{
			name:    "uncapped policy",
			policy:  Policy{LeadTime: 8 * time.Hour},
			req:     CreateRequest{Requester: user(), DentistID: dentist, BookingDate: fixedNow.Add(9 * time.Hour), DentistExists: true, UserBookings: 4},
			outcome: Approved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestController(tt.policy).EvaluateCreate(tt.req)
			if d.Outcome != tt.outcome {
				t.Fatalf("outcome = %s, want %s (message %q)", d.Outcome, tt.outcome, d.Message)
			}
			if d.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.reason)
			}
			if d.Outcome != Approved && d.Message == "" {
				t.Error("rejection without message")
			}
		})
	}
}

func TestEvaluateCreateMessagesCarryIDs(t *testing.T) {
	c := newTestController(DefaultPolicy())
	u := user()
	dentist := primitive.NewObjectID()

	d := c.EvaluateCreate(CreateRequest{Requester: u, DentistID: dentist})
	if d.Entity != "dentist" || !strings.Contains(d.Message, dentist.Hex()) {
		t.Errorf("not found decision = %+v", d)
	}

	d = c.EvaluateCreate(CreateRequest{Requester: u, DentistID: dentist, DentistExists: true, UserBookings: 1})
	if !strings.Contains(d.Message, u.ID.Hex()) {
		t.Errorf("cap message %q lacks user id", d.Message)
	}

	d = c.EvaluateCreate(CreateRequest{Requester: u, DentistID: dentist, DentistExists: true, SlotBookings: 1, BookingDate: fixedNow.Add(48 * time.Hour)})
	if !strings.Contains(d.Message, dentist.Hex()) {
		t.Errorf("slot message %q lacks dentist id", d.Message)
	}
}

func TestEvaluateUpdate(t *testing.T) {
	owner := user()
	booking := models.Booking{
		ID:          primitive.NewObjectID(),
		UserID:      owner.ID,
		DentistID:   primitive.NewObjectID(),
		BookingDate: fixedNow.Add(72 * time.Hour),
	}
	later := fixedNow.Add(96 * time.Hour)

	tests := []struct {
		name    string
		req     UpdateRequest
		outcome Outcome
		reason  Reason
	}{
		{
			name:    "owner moves booking",
			req:     UpdateRequest{Requester: owner, Booking: booking, NewBookingDate: later},
			outcome: Approved,
		},
		{
			name:    "non owner",
			req:     UpdateRequest{Requester: user(), Booking: booking, NewBookingDate: later},
			outcome: Unauthorized,
		},
		{
			name:    "non owner rejected before slot and lead time",
			req:     UpdateRequest{Requester: user(), Booking: booking, NewBookingDate: fixedNow, SlotBookings: 1},
			outcome: Unauthorized,
		},
		{
			name:    "admin moves any booking",
			req:     UpdateRequest{Requester: admin(), Booking: booking, NewBookingDate: later},
			outcome: Approved,
		},
		{
			name:    "owner into taken slot",
			req:     UpdateRequest{Requester: owner, Booking: booking, NewBookingDate: later, SlotBookings: 1},
			outcome: Conflict,
			reason:  ReasonSlotTaken,
		},
		{
			name:    "admin into taken slot",
			req:     UpdateRequest{Requester: admin(), Booking: booking, NewBookingDate: later, SlotBookings: 1},
			outcome: Approved,
		},
		{
			name:    "owner too soon",
			req:     UpdateRequest{Requester: owner, Booking: booking, NewBookingDate: fixedNow.Add(2 * time.Hour)},
			outcome: InvalidArgument,
			reason:  ReasonLeadTimeTooShort,
		},
		{
			name:    "admin too soon",
			req:     UpdateRequest{Requester: admin(), Booking: booking, NewBookingDate: fixedNow.Add(2 * time.Hour)},
			outcome: InvalidArgument,
			reason:  ReasonLeadTimeTooShort,
		},
	}

	c := newTestController(DefaultPolicy())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.EvaluateUpdate(tt.req)
			if d.Outcome != tt.outcome {
				t.Fatalf("outcome = %s, want %s (message %q)", d.Outcome, tt.outcome, d.Message)
			}
			if d.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluateUpdateNonOwnerAlwaysUnauthorized(t *testing.T) {
	c := newTestController(DefaultPolicy())
	booking := models.Booking{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID(), DentistID: primitive.NewObjectID()}

	for i := 0; i < 20; i++ {
		req := UpdateRequest{
			Requester:      user(),
			Booking:        booking,
			NewBookingDate: fixedNow.Add(time.Duration(i*6) * time.Hour),
			SlotBookings:   int64(i % 2),
		}
		if d := c.EvaluateUpdate(req); d.Outcome != Unauthorized {
			t.Fatalf("iteration %d: outcome = %s", i, d.Outcome)
		}
	}
}

func TestRequesterWithZeroIDOwnsNothing(t *testing.T) {
	c := newTestController(DefaultPolicy())
	booking := models.Booking{ID: primitive.NewObjectID(), DentistID: primitive.NewObjectID()}

	d := c.EvaluateUpdate(UpdateRequest{
		Requester:      models.Requester{Role: models.RoleUser},
		Booking:        booking,
		NewBookingDate: fixedNow.Add(48 * time.Hour),
	})
	if d.Outcome != Unauthorized {
		t.Fatalf("outcome = %s, want unauthorized", d.Outcome)
	}
}

func TestControllerReportsPolicy(t *testing.T) {
	p := Policy{LeadTime: 2 * time.Hour, MaxBookingsPerUser: 3, SlotExclusivity: true}
	if got := NewController(p).Policy(); got != p {
		t.Fatalf("Policy() = %+v, want %+v", got, p)
	}
}
