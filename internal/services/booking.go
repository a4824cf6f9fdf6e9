package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/admission"
	"github.com/harentsoaR/dentist-booking-api/internal/locker"
	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/storage"
)

// BookingService runs every booking write through the admission controller.
// Check and write happen while holding the requester's user key and the
// target slot key, and the store's unique indexes back both rules.
type BookingService struct {
	store     storage.Store
	admission *admission.Controller
	locks     locker.Locker
	log       *logrus.Logger
	now       func() time.Time
}

func NewBookingService(store storage.Store, ctrl *admission.Controller, locks locker.Locker, log *logrus.Logger) *BookingService {
	return &BookingService{
		store:     store,
		admission: ctrl,
		locks:     locks,
		log:       log,
		now:       time.Now,
	}
}

// ListBookings returns the bookings visible to the requester. Non-admins only
// see their own bookings; admins see everything, narrowed to dentistID when
// it is set.
func (s *BookingService) ListBookings(ctx context.Context, requester models.Requester, dentistID primitive.ObjectID) ([]models.BookingView, error) {
	filter := storage.BookingFilter{UserID: requester.ID}
	if requester.IsAdmin() {
		filter = storage.BookingFilter{DentistID: dentistID}
	}

	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, internal("Cannot find bookings", err)
	}
	return bookings, nil
}

// GetBooking returns a booking to its owner or an admin.
func (s *BookingService) GetBooking(ctx context.Context, requester models.Requester, id primitive.ObjectID) (models.BookingView, error) {
	b, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return models.BookingView{}, bookingLookupError(id, err)
	}
	if !canManage(requester, b.Booking) {
		return models.BookingView{}, unauthorizedf("User %s is not authorized to view booking %s", requester.ID.Hex(), id.Hex())
	}
	return b, nil
}

// CreateBooking books dentistID at bookingDate for the requester.
func (s *BookingService) CreateBooking(ctx context.Context, requester models.Requester, dentistID primitive.ObjectID, bookingDate time.Time) (models.Booking, error) {
	if bookingDate.IsZero() {
		return models.Booking{}, invalidf("bookingDate is required for user %s", requester.ID.Hex())
	}
	date := models.NormalizeBookingDate(bookingDate)

	if _, err := s.store.FindUserByID(ctx, requester.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Booking{}, notFoundf("No user with the id of %s", requester.ID.Hex())
		}
		return models.Booking{}, internal("Cannot create booking", err)
	}

	var created models.Booking
	keys := []string{locker.UserKey(requester.ID), locker.SlotKey(dentistID, date)}
	err := s.locks.WithLock(ctx, keys, func(ctx context.Context) error {
		exists, err := s.dentistExists(ctx, dentistID)
		if err != nil {
			return internal("Cannot create booking", err)
		}
		userCount, err := s.store.CountBookings(ctx, storage.BookingFilter{UserID: requester.ID})
		if err != nil {
			return internal("Cannot create booking", err)
		}
		slotCount, err := s.store.CountBookings(ctx, storage.BookingFilter{DentistID: dentistID, BookingDate: &date})
		if err != nil {
			return internal("Cannot create booking", err)
		}

		decision := s.admission.EvaluateCreate(admission.CreateRequest{
			Requester:     requester,
			DentistID:     dentistID,
			BookingDate:   date,
			DentistExists: exists,
			UserBookings:  userCount,
			SlotBookings:  slotCount,
		})
		if !decision.Approved() {
			s.log.WithFields(logrus.Fields{
				"user":    requester.ID.Hex(),
				"dentist": dentistID.Hex(),
				"outcome": decision.Outcome.String(),
				"reason":  decision.Reason,
			}).Info("booking rejected")
			return rejection(decision)
		}

		created, err = s.store.CreateBooking(ctx, models.Booking{
			BookingDate:   date,
			UserID:        requester.ID,
			DentistID:     dentistID,
			AdminOverride: requester.IsAdmin(),
			CreatedAt:     s.now().UTC(),
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			return conflictf("Booking for user %s on dentist %s at %s conflicts with an existing booking",
				requester.ID.Hex(), dentistID.Hex(), date.Format(time.RFC3339))
		}
		if err != nil {
			return internal("Cannot create booking", err)
		}
		return s.verifyDentistStillExists(ctx, created)
	})
	if err != nil {
		return models.Booking{}, lockError(err, dentistID)
	}

	s.log.WithFields(logrus.Fields{
		"booking": created.ID.Hex(),
		"user":    requester.ID.Hex(),
		"dentist": dentistID.Hex(),
		"date":    date.Format(time.RFC3339),
	}).Info("booking created")
	return created, nil
}

// UpdateBooking moves a booking to newDate. The booking is re-read while
// holding the locks so ownership and slot checks run on fresh data.
func (s *BookingService) UpdateBooking(ctx context.Context, requester models.Requester, id primitive.ObjectID, newDate time.Time) (models.Booking, error) {
	if newDate.IsZero() {
		return models.Booking{}, invalidf("bookingDate is required to update booking %s", id.Hex())
	}
	date := models.NormalizeBookingDate(newDate)

	current, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return models.Booking{}, bookingLookupError(id, err)
	}

	var updated models.Booking
	keys := []string{locker.UserKey(current.UserID), locker.SlotKey(current.DentistID, date)}
	err = s.locks.WithLock(ctx, keys, func(ctx context.Context) error {
		fresh, err := s.store.FindBooking(ctx, id)
		if err != nil {
			return bookingLookupError(id, err)
		}
		slotCount, err := s.store.CountBookings(ctx, storage.BookingFilter{
			DentistID:   fresh.DentistID,
			BookingDate: &date,
			ExcludeID:   id,
		})
		if err != nil {
			return internal("Cannot update booking", err)
		}

		decision := s.admission.EvaluateUpdate(admission.UpdateRequest{
			Requester:      requester,
			Booking:        fresh.Booking,
			NewBookingDate: date,
			SlotBookings:   slotCount,
		})
		if !decision.Approved() {
			return rejection(decision)
		}

		override, err := s.needsOverride(ctx, requester, fresh.Booking, slotCount)
		if err != nil {
			return internal("Cannot update booking", err)
		}
		updated, err = s.store.UpdateBooking(ctx, id, storage.BookingUpdate{BookingDate: date, AdminOverride: override})
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return conflictf("Dentist %s is already booked at %s", fresh.DentistID.Hex(), date.Format(time.RFC3339))
		case err != nil:
			return bookingLookupError(id, err)
		}
		return nil
	})
	if err != nil {
		return models.Booking{}, lockError(err, current.DentistID)
	}

	s.log.WithFields(logrus.Fields{
		"booking": id.Hex(),
		"by":      requester.ID.Hex(),
		"date":    date.Format(time.RFC3339),
	}).Info("booking updated")
	return updated, nil
}

// DeleteBooking removes a booking. Owners and admins may always delete.
func (s *BookingService) DeleteBooking(ctx context.Context, requester models.Requester, id primitive.ObjectID) error {
	b, err := s.store.FindBooking(ctx, id)
	if err != nil {
		return bookingLookupError(id, err)
	}
	if !canManage(requester, b.Booking) {
		return unauthorizedf("User %s is not authorized to delete booking %s", requester.ID.Hex(), id.Hex())
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return bookingLookupError(id, err)
	}

	s.log.WithFields(logrus.Fields{"booking": id.Hex(), "by": requester.ID.Hex()}).Info("booking deleted")
	return nil
}

// DeleteDentist removes a dentist and every booking referencing it in one
// transaction. Nothing is deleted if either step fails.
func (s *BookingService) DeleteDentist(ctx context.Context, requester models.Requester, dentistID primitive.ObjectID) (int64, error) {
	if !requester.IsAdmin() {
		return 0, unauthorizedf("User %s is not authorized to delete dentist %s", requester.ID.Hex(), dentistID.Hex())
	}

	var removed int64
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.store.DeleteBookingsByDentist(ctx, dentistID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteDentist(ctx, dentistID); err != nil {
			return err
		}
		removed = n
		return nil
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return 0, notFoundf("No dentist with the id of %s", dentistID.Hex())
	case err != nil:
		return 0, internal("Cannot delete dentist", err)
	}

	s.log.WithFields(logrus.Fields{"dentist": dentistID.Hex(), "bookings": removed}).Info("dentist deleted with bookings")
	return removed, nil
}

// needsOverride reports whether the moved booking must stay outside the
// store's uniqueness constraints: an admin put it into an occupied slot, or
// its owner already holds other override bookings.
func (s *BookingService) needsOverride(ctx context.Context, requester models.Requester, b models.Booking, slotCount int64) (bool, error) {
	if requester.IsAdmin() && slotCount > 0 {
		return true, nil
	}
	if !b.AdminOverride {
		return false, nil
	}
	others, err := s.store.CountBookings(ctx, storage.BookingFilter{UserID: b.UserID, ExcludeID: b.ID})
	if err != nil {
		return false, err
	}
	return others > 0, nil
}

func (s *BookingService) dentistExists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	_, err := s.store.FindDentist(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// verifyDentistStillExists undoes a booking whose dentist was deleted between
// the admission check and the insert. If the dentist cannot be looked up the
// booking is removed as well and the failure is reported.
func (s *BookingService) verifyDentistStillExists(ctx context.Context, b models.Booking) error {
	exists, lookupErr := s.dentistExists(ctx, b.DentistID)
	if lookupErr == nil && exists {
		return nil
	}
	if err := s.store.DeleteBooking(ctx, b.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.WithError(err).WithField("booking", b.ID.Hex()).Error("failed to remove unverified booking")
	}
	if lookupErr != nil {
		s.log.WithError(lookupErr).WithFields(logrus.Fields{
			"booking": b.ID.Hex(),
			"dentist": b.DentistID.Hex(),
		}).Error("dentist re-check failed after insert")
		return internal("Cannot create booking", lookupErr)
	}
	return notFoundf("No dentist with the id of %s", b.DentistID.Hex())
}

func canManage(requester models.Requester, b models.Booking) bool {
	return requester.IsAdmin() || requester.Owns(b)
}

func bookingLookupError(id primitive.ObjectID, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, storage.ErrNotFound) {
		return notFoundf("No booking with the id of %s", id.Hex())
	}
	return internal("Cannot find booking", err)
}

func lockError(err error, dentistID primitive.ObjectID) error {
	var se *Error
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, locker.ErrLockNotAcquired):
		return conflictf("A booking for dentist %s is being processed, please retry shortly", dentistID.Hex())
	default:
		return internal("Cannot process booking", err)
	}
}
