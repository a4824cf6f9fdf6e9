package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/storage"
)

const (
	usersCollection    = "users"
	dentistsCollection = "dentists"
	bookingsCollection = "bookings"
)

// ErrTransactionsUnsupported is returned by WithTransaction on a standalone
// server. Multi-document transactions need a replica set or sharded cluster.
var ErrTransactionsUnsupported = errors.New("mongodb deployment does not support transactions, run a replica set")

type Store struct {
	client       *mongo.Client
	users        *mongo.Collection
	dentists     *mongo.Collection
	bookings     *mongo.Collection
	transactions bool
}

var _ storage.Store = (*Store)(nil)

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string, indexes IndexOptions) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client, client.Database(database))
	if err := s.detectTransactions(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.EnsureIndexes(connectCtx, indexes); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an established client. It assumes the deployment supports
// transactions; Connect checks instead.
func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:       client,
		users:        db.Collection(usersCollection),
		dentists:     db.Collection(dentistsCollection),
		bookings:     db.Collection(bookingsCollection),
		transactions: true,
	}
}

// helloReply holds the fields of the hello command that identify the
// deployment topology.
type helloReply struct {
	SetName string `bson:"setName"`
	Msg     string `bson:"msg"`
}

// supportsTransactions is true for replica set members and mongos routers.
func (h helloReply) supportsTransactions() bool {
	return h.SetName != "" || h.Msg == "isdbgrid"
}

func (s *Store) detectTransactions(ctx context.Context) error {
	var reply helloReply
	if err := s.client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&reply); err != nil {
		return fmt.Errorf("mongo hello: %w", err)
	}
	s.transactions = reply.supportsTransactions()
	return nil
}

// SupportsTransactions reports whether WithTransaction can succeed.
func (s *Store) SupportsTransactions() bool {
	return s.transactions
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// WithTransaction runs fn in a multi-document transaction. It requires a
// replica set or sharded cluster.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return ErrTransactionsUnsupported
	}
	return s.client.UseSession(ctx, func(sc mongo.SessionContext) error {
		_, err := sc.WithTransaction(sc, func(txCtx mongo.SessionContext) (interface{}, error) {
			return nil, fn(txCtx)
		})
		return err
	})
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return models.User{}, translate(err, "insert user")
	}
	return user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return models.User{}, translate(err, "find user")
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return models.User{}, translate(err, "find user by email")
	}
	return u, nil
}

// --- dentists ---

func (s *Store) ListDentists(ctx context.Context) ([]models.Dentist, error) {
	cursor, err := s.dentists.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find dentists: %w", err)
	}
	defer cursor.Close(ctx)

	dentists := make([]models.Dentist, 0)
	if err := cursor.All(ctx, &dentists); err != nil {
		return nil, fmt.Errorf("decode dentists: %w", err)
	}
	return dentists, nil
}

func (s *Store) FindDentist(ctx context.Context, id primitive.ObjectID) (models.Dentist, error) {
	var d models.Dentist
	if err := s.dentists.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return models.Dentist{}, translate(err, "find dentist")
	}
	return d, nil
}

func (s *Store) CreateDentist(ctx context.Context, dentist models.Dentist) (models.Dentist, error) {
	if dentist.ID.IsZero() {
		dentist.ID = primitive.NewObjectID()
	}
	if _, err := s.dentists.InsertOne(ctx, dentist); err != nil {
		return models.Dentist{}, translate(err, "insert dentist")
	}
	return dentist, nil
}

func (s *Store) UpdateDentist(ctx context.Context, id primitive.ObjectID, update models.DentistUpdate) (models.Dentist, error) {
	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.YearsOfExperience != nil {
		set["yearsOfExperience"] = *update.YearsOfExperience
	}
	if update.AreaOfExpertise != nil {
		set["areaOfExpertise"] = *update.AreaOfExpertise
	}
	if len(set) == 0 {
		return s.FindDentist(ctx, id)
	}

	var d models.Dentist
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.dentists.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&d); err != nil {
		return models.Dentist{}, translate(err, "update dentist")
	}
	return d, nil
}

func (s *Store) DeleteDentist(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.dentists.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete dentist: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- bookings ---

func (s *Store) ListBookings(ctx context.Context, filter storage.BookingFilter) ([]models.BookingView, error) {
	pipeline := populatedBookings(bookingQuery(filter))
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "bookingDate", Value: 1}, {Key: "_id", Value: 1}}}})

	cursor, err := s.bookings.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate bookings: %w", err)
	}
	defer cursor.Close(ctx)

	views := make([]models.BookingView, 0)
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	return views, nil
}

func (s *Store) FindBooking(ctx context.Context, id primitive.ObjectID) (models.BookingView, error) {
	pipeline := populatedBookings(bson.M{"_id": id})
	pipeline = append(pipeline, bson.D{{Key: "$limit", Value: 1}})

	cursor, err := s.bookings.Aggregate(ctx, pipeline)
	if err != nil {
		return models.BookingView{}, fmt.Errorf("aggregate booking: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return models.BookingView{}, fmt.Errorf("read booking: %w", err)
		}
		return models.BookingView{}, storage.ErrNotFound
	}
	var v models.BookingView
	if err := cursor.Decode(&v); err != nil {
		return models.BookingView{}, fmt.Errorf("decode booking: %w", err)
	}
	return v, nil
}

func (s *Store) CountBookings(ctx context.Context, filter storage.BookingFilter) (int64, error) {
	n, err := s.bookings.CountDocuments(ctx, bookingQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return n, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking models.Booking) (models.Booking, error) {
	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	if _, err := s.bookings.InsertOne(ctx, booking); err != nil {
		return models.Booking{}, translate(err, "insert booking")
	}
	return booking, nil
}

func (s *Store) UpdateBooking(ctx context.Context, id primitive.ObjectID, update storage.BookingUpdate) (models.Booking, error) {
	set := bson.M{
		"bookingDate":   update.BookingDate,
		"adminOverride": update.AdminOverride,
	}

	var b models.Booking
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.bookings.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&b); err != nil {
		return models.Booking{}, translate(err, "update booking")
	}
	return b, nil
}

func (s *Store) DeleteBooking(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.bookings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBookingsByDentist(ctx context.Context, dentistID primitive.ObjectID) (int64, error) {
	res, err := s.bookings.DeleteMany(ctx, bson.M{"dentist": dentistID})
	if err != nil {
		return 0, fmt.Errorf("delete dentist bookings: %w", err)
	}
	return res.DeletedCount, nil
}

func bookingQuery(f storage.BookingFilter) bson.M {
	q := bson.M{}
	if !f.UserID.IsZero() {
		q["user"] = f.UserID
	}
	if !f.DentistID.IsZero() {
		q["dentist"] = f.DentistID
	}
	if f.BookingDate != nil {
		q["bookingDate"] = *f.BookingDate
	}
	if !f.ExcludeID.IsZero() {
		q["_id"] = bson.M{"$ne": f.ExcludeID}
	}
	return q
}

// populatedBookings matches bookings and joins each with its dentist as
// dentistInfo.
func populatedBookings(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: dentistsCollection},
			{Key: "localField", Value: "dentist"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "dentistInfo"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$dentistInfo"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return storage.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return storage.ErrAlreadyExists
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
