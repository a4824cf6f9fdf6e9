package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// nonAdminBookings restricts the booking indexes to bookings that were not
// admitted through an admin override.
var nonAdminBookings = bson.M{"adminOverride": false}

// IndexOptions selects the booking uniqueness constraints to enforce. They
// must match the admission policy: a per-user cap above one or disabled slot
// exclusivity cannot be backed by a unique index.
type IndexOptions struct {
	UniqueUserBooking bool
	UniqueSlot        bool
}

// EnsureIndexes creates the uniqueness constraints the booking rules rely on.
// The partial indexes close the race between the admission check and the
// insert: concurrent writers that both pass admission cannot both persist.
func (s *Store) EnsureIndexes(ctx context.Context, opts IndexOptions) error {
	var bookingIndexes []mongo.IndexModel
	if opts.UniqueUserBooking {
		bookingIndexes = append(bookingIndexes, mongo.IndexModel{
			Keys: bson.D{{Key: "user", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(nonAdminBookings).
				SetName("one_booking_per_user"),
		})
	}
	if opts.UniqueSlot {
		bookingIndexes = append(bookingIndexes, mongo.IndexModel{
			Keys: bson.D{{Key: "dentist", Value: 1}, {Key: "bookingDate", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(nonAdminBookings).
				SetName("one_booking_per_slot"),
		})
	}
	bookingIndexes = append(bookingIndexes,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "dentist", Value: 1}},
			Options: options.Index().SetName("by_dentist"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "bookingDate", Value: 1}},
			Options: options.Index().SetName("by_user_date"),
		},
	)

	sets := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.users, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		}}},
		{s.dentists, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("name_unique"),
		}}},
		{s.bookings, bookingIndexes},
	}

	for _, set := range sets {
		if _, err := set.coll.Indexes().CreateMany(ctx, set.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", set.coll.Name(), err)
		}
	}
	return nil
}
