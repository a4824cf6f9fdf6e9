package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the access level carried in a user's token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash, never serialized
	Role      Role               `bson:"role" json:"role"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Requester is the authenticated actor of the current call. It is always
// passed explicitly to services, never read from ambient state.
type Requester struct {
	ID   primitive.ObjectID
	Role Role
}

func (r Requester) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// Owns reports whether the requester is the owner of the given booking.
func (r Requester) Owns(b Booking) bool {
	return !r.ID.IsZero() && r.ID == b.UserID
}
