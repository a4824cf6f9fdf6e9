package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BookingDate time.Time          `bson:"bookingDate" json:"bookingDate"`
	UserID      primitive.ObjectID `bson:"user" json:"user"`
	DentistID   primitive.ObjectID `bson:"dentist" json:"dentist"`
	// AdminOverride marks bookings admitted past the per-user cap or slot
	// exclusivity. Such bookings are excluded from the partial unique indexes.
	AdminOverride bool      `bson:"adminOverride" json:"-"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}

// DentistSummary is the subset of a dentist embedded in booking responses.
type DentistSummary struct {
	ID                primitive.ObjectID `bson:"_id" json:"id"`
	Name              string             `bson:"name" json:"name"`
	YearsOfExperience int                `bson:"yearsOfExperience" json:"yearsOfExperience"`
	AreaOfExpertise   string             `bson:"areaOfExpertise" json:"areaOfExpertise"`
}

// BookingView is a booking with its dentist populated.
type BookingView struct {
	Booking     `bson:",inline"`
	DentistInfo *DentistSummary `bson:"dentistInfo,omitempty" json:"dentistInfo,omitempty"`
}

// Summary returns the embeddable view of d.
func (d Dentist) Summary() *DentistSummary {
	return &DentistSummary{
		ID:                d.ID,
		Name:              d.Name,
		YearsOfExperience: d.YearsOfExperience,
		AreaOfExpertise:   d.AreaOfExpertise,
	}
}

// NormalizeBookingDate converts t to UTC at millisecond precision, which is
// what MongoDB persists. Slot equality is evaluated on normalized values.
func NormalizeBookingDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
