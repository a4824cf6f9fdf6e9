package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// MaxDentistNameLength bounds Dentist.Name.
const MaxDentistNameLength = 50

type Dentist struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name              string             `bson:"name" json:"name"`
	YearsOfExperience int                `bson:"yearsOfExperience" json:"yearsOfExperience"`
	AreaOfExpertise   string             `bson:"areaOfExpertise" json:"areaOfExpertise"`
}

// DentistUpdate holds the optional fields of a partial dentist update.
type DentistUpdate struct {
	Name              *string
	YearsOfExperience *int
	AreaOfExpertise   *string
}

// Empty reports whether the update would change nothing.
func (u DentistUpdate) Empty() bool {
	return u.Name == nil && u.YearsOfExperience == nil && u.AreaOfExpertise == nil
}
