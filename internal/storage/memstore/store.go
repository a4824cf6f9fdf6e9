// Package memstore is an in-memory storage.Store. It enforces the same
// uniqueness rules as the MongoDB indexes and is used by tests and by
// STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/storage"
)

// Constraints mirrors mongostore.IndexOptions.
type Constraints struct {
	UniqueUserBooking bool
	UniqueSlot        bool
}

type Store struct {
	constraints Constraints

	// txMu is held for the whole of a transaction and by every write made
	// outside one, so a rollback never races a concurrent commit.
	txMu sync.Mutex

	mu       sync.RWMutex
	users    map[primitive.ObjectID]models.User
	dentists map[primitive.ObjectID]models.Dentist
	bookings map[primitive.ObjectID]models.Booking
}

var _ storage.Store = (*Store)(nil)

// New returns a store enforcing both booking constraints.
func New() *Store {
	return NewWithConstraints(Constraints{UniqueUserBooking: true, UniqueSlot: true})
}

func NewWithConstraints(c Constraints) *Store {
	return &Store{
		constraints: c,
		users:       make(map[primitive.ObjectID]models.User),
		dentists:    make(map[primitive.ObjectID]models.Dentist),
		bookings:    make(map[primitive.ObjectID]models.Booking),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

type txKey struct{}

// prior is the value a key held before a transaction first wrote it.
type prior[V any] struct {
	value   V
	present bool
}

// undoLog records the keys a transaction wrote and their prior values.
type undoLog struct {
	users    map[primitive.ObjectID]prior[models.User]
	dentists map[primitive.ObjectID]prior[models.Dentist]
	bookings map[primitive.ObjectID]prior[models.Booking]
}

func newUndoLog() *undoLog {
	return &undoLog{
		users:    make(map[primitive.ObjectID]prior[models.User]),
		dentists: make(map[primitive.ObjectID]prior[models.Dentist]),
		bookings: make(map[primitive.ObjectID]prior[models.Booking]),
	}
}

func remember[V any](log map[primitive.ObjectID]prior[V], m map[primitive.ObjectID]V, id primitive.ObjectID) {
	if _, seen := log[id]; seen {
		return
	}
	v, ok := m[id]
	log[id] = prior[V]{value: v, present: ok}
}

func restore[V any](m map[primitive.ObjectID]V, log map[primitive.ObjectID]prior[V]) {
	for id, p := range log {
		if p.present {
			m[id] = p.value
		} else {
			delete(m, id)
		}
	}
}

func (u *undoLog) user(s *Store, id primitive.ObjectID) {
	if u != nil {
		remember(u.users, s.users, id)
	}
}

func (u *undoLog) dentist(s *Store, id primitive.ObjectID) {
	if u != nil {
		remember(u.dentists, s.dentists, id)
	}
}

func (u *undoLog) booking(s *Store, id primitive.ObjectID) {
	if u != nil {
		remember(u.bookings, s.bookings, id)
	}
}

// WithTransaction runs fn and, if it fails, restores every key fn wrote.
// Writes inside fn must use the ctx it is given; writes from other callers
// wait until the transaction ends.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txKey{}).(*undoLog); nested {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := newUndoLog()
	if err := fn(context.WithValue(ctx, txKey{}, undo)); err != nil {
		s.mu.Lock()
		restore(s.users, undo.users)
		restore(s.dentists, undo.dentists)
		restore(s.bookings, undo.bookings)
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite takes the write lock. Outside a transaction it also waits for
// any running transaction; inside one it returns the transaction's undo log.
func (s *Store) lockWrite(ctx context.Context) (*undoLog, func()) {
	undo, _ := ctx.Value(txKey{}).(*undoLog)
	if undo == nil {
		s.txMu.Lock()
	}
	s.mu.Lock()
	return undo, func() {
		s.mu.Unlock()
		if undo == nil {
			s.txMu.Unlock()
		}
	}
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	email := strings.ToLower(user.Email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	undo.user(s, user.ID)
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) FindUserByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// --- dentists ---

func (s *Store) ListDentists(context.Context) ([]models.Dentist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Dentist, 0, len(s.dentists))
	for _, d := range s.dentists {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) FindDentist(_ context.Context, id primitive.ObjectID) (models.Dentist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dentists[id]
	if !ok {
		return models.Dentist{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) CreateDentist(ctx context.Context, dentist models.Dentist) (models.Dentist, error) {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	if s.nameTaken(dentist.Name, primitive.NilObjectID) {
		return models.Dentist{}, storage.ErrAlreadyExists
	}
	if dentist.ID.IsZero() {
		dentist.ID = primitive.NewObjectID()
	}
	undo.dentist(s, dentist.ID)
	s.dentists[dentist.ID] = dentist
	return dentist, nil
}

func (s *Store) UpdateDentist(ctx context.Context, id primitive.ObjectID, update models.DentistUpdate) (models.Dentist, error) {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	d, ok := s.dentists[id]
	if !ok {
		return models.Dentist{}, storage.ErrNotFound
	}
	if update.Name != nil {
		if s.nameTaken(*update.Name, id) {
			return models.Dentist{}, storage.ErrAlreadyExists
		}
		d.Name = *update.Name
	}
	if update.YearsOfExperience != nil {
		d.YearsOfExperience = *update.YearsOfExperience
	}
	if update.AreaOfExpertise != nil {
		d.AreaOfExpertise = *update.AreaOfExpertise
	}
	undo.dentist(s, id)
	s.dentists[id] = d
	return d, nil
}

func (s *Store) DeleteDentist(ctx context.Context, id primitive.ObjectID) error {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	if _, ok := s.dentists[id]; !ok {
		return storage.ErrNotFound
	}
	undo.dentist(s, id)
	delete(s.dentists, id)
	return nil
}

func (s *Store) nameTaken(name string, except primitive.ObjectID) bool {
	for id, d := range s.dentists {
		if id != except && d.Name == name {
			return true
		}
	}
	return false
}

// --- bookings ---

func (s *Store) ListBookings(_ context.Context, filter storage.BookingFilter) ([]models.BookingView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BookingView, 0)
	for _, b := range s.bookings {
		if matches(b, filter) {
			out = append(out, s.view(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].BookingDate.Before(out[j].BookingDate)
	})
	return out, nil
}

func (s *Store) FindBooking(_ context.Context, id primitive.ObjectID) (models.BookingView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return models.BookingView{}, storage.ErrNotFound
	}
	return s.view(b), nil
}

func (s *Store) CountBookings(_ context.Context, filter storage.BookingFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, b := range s.bookings {
		if matches(b, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking models.Booking) (models.Booking, error) {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	if s.violatesUnique(booking) {
		return models.Booking{}, storage.ErrAlreadyExists
	}
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	undo.booking(s, booking.ID)
	s.bookings[booking.ID] = booking
	return booking, nil
}

func (s *Store) UpdateBooking(ctx context.Context, id primitive.ObjectID, update storage.BookingUpdate) (models.Booking, error) {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, storage.ErrNotFound
	}
	b.BookingDate = update.BookingDate
	b.AdminOverride = update.AdminOverride
	if s.violatesUnique(b) {
		return models.Booking{}, storage.ErrAlreadyExists
	}
	undo.booking(s, id)
	s.bookings[id] = b
	return b, nil
}

func (s *Store) DeleteBooking(ctx context.Context, id primitive.ObjectID) error {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	if _, ok := s.bookings[id]; !ok {
		return storage.ErrNotFound
	}
	undo.booking(s, id)
	delete(s.bookings, id)
	return nil
}

func (s *Store) DeleteBookingsByDentist(ctx context.Context, dentistID primitive.ObjectID) (int64, error) {
	undo, unlock := s.lockWrite(ctx)
	defer unlock()

	var n int64
	for id, b := range s.bookings {
		if b.DentistID == dentistID {
			undo.booking(s, id)
			delete(s.bookings, id)
			n++
		}
	}
	return n, nil
}

// violatesUnique mirrors the partial unique indexes on {user} and
// {dentist, bookingDate}, which only cover bookings without AdminOverride.
func (s *Store) violatesUnique(b models.Booking) bool {
	if b.AdminOverride {
		return false
	}
	for id, other := range s.bookings {
		if id == b.ID || other.AdminOverride {
			continue
		}
		if s.constraints.UniqueUserBooking && other.UserID == b.UserID {
			return true
		}
		if s.constraints.UniqueSlot && other.DentistID == b.DentistID && other.BookingDate.Equal(b.BookingDate) {
			return true
		}
	}
	return false
}

func (s *Store) view(b models.Booking) models.BookingView {
	v := models.BookingView{Booking: b}
	if d, ok := s.dentists[b.DentistID]; ok {
		v.DentistInfo = d.Summary()
	}
	return v
}

func matches(b models.Booking, f storage.BookingFilter) bool {
	if !f.UserID.IsZero() && b.UserID != f.UserID {
		return false
	}
	if !f.DentistID.IsZero() && b.DentistID != f.DentistID {
		return false
	}
	if f.BookingDate != nil && !b.BookingDate.Equal(*f.BookingDate) {
		return false
	}
	if !f.ExcludeID.IsZero() && b.ID == f.ExcludeID {
		return false
	}
	return true
}
