package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// BookingFilter narrows booking queries. Zero fields are ignored.
type BookingFilter struct {
	UserID      primitive.ObjectID
	DentistID   primitive.ObjectID
	BookingDate *time.Time
	ExcludeID   primitive.ObjectID
}

// BookingUpdate is the mutable part of a booking.
type BookingUpdate struct {
	BookingDate   time.Time
	AdminOverride bool
}

type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
}

type DentistStore interface {
	ListDentists(ctx context.Context) ([]models.Dentist, error)
	FindDentist(ctx context.Context, id primitive.ObjectID) (models.Dentist, error)
	CreateDentist(ctx context.Context, dentist models.Dentist) (models.Dentist, error)
	UpdateDentist(ctx context.Context, id primitive.ObjectID, update models.DentistUpdate) (models.Dentist, error)
	DeleteDentist(ctx context.Context, id primitive.ObjectID) error
}

type BookingStore interface {
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.BookingView, error)
	FindBooking(ctx context.Context, id primitive.ObjectID) (models.BookingView, error)
	CountBookings(ctx context.Context, filter BookingFilter) (int64, error)
	CreateBooking(ctx context.Context, booking models.Booking) (models.Booking, error)
	UpdateBooking(ctx context.Context, id primitive.ObjectID, update BookingUpdate) (models.Booking, error)
	DeleteBooking(ctx context.Context, id primitive.ObjectID) error
	DeleteBookingsByDentist(ctx context.Context, dentistID primitive.ObjectID) (int64, error)
}

// Transactor runs fn atomically. Store calls made with the context handed to
// fn take part in the transaction; on error every write is rolled back.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	UserStore
	DentistStore
	BookingStore
	Transactor
	Ping(ctx context.Context) error
}
