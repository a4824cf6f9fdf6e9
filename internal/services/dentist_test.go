package services

import (
	"context"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/storage/memstore"
)

func TestCreateDentistValidation(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewDentistService(store, quietLogger())
	admin := mustUser(t, store, models.RoleAdmin)
	user := mustUser(t, store, models.RoleUser)

	if _, err := svc.CreateDentist(ctx, admin, models.Dentist{Name: "Dr. Taken", AreaOfExpertise: "Surgery"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		requester models.Requester
		dentist   models.Dentist
		want      Kind
	}{
		{"not admin", user, models.Dentist{Name: "Dr. Ok", AreaOfExpertise: "Surgery"}, KindUnauthorized},
		{"blank name", admin, models.Dentist{Name: "   ", AreaOfExpertise: "Surgery"}, KindInvalidArgument},
		{"long name", admin, models.Dentist{Name: strings.Repeat("x", models.MaxDentistNameLength+1), AreaOfExpertise: "Surgery"}, KindInvalidArgument},
		{"negative experience", admin, models.Dentist{Name: "Dr. Neg", YearsOfExperience: -2, AreaOfExpertise: "Surgery"}, KindInvalidArgument},
		{"missing expertise", admin, models.Dentist{Name: "Dr. None"}, KindInvalidArgument},
		{"duplicate", admin, models.Dentist{Name: " Dr. Taken ", AreaOfExpertise: "Surgery"}, KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateDentist(ctx, tt.requester, tt.dentist)
			requireKind(t, err, tt.want)
		})
	}
}

func TestUpdateDentist(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewDentistService(store, quietLogger())
	admin := mustUser(t, store, models.RoleAdmin)

	d, err := svc.CreateDentist(ctx, admin, models.Dentist{Name: "Dr. Before", YearsOfExperience: 3, AreaOfExpertise: "Surgery"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateDentist(ctx, admin, models.Dentist{Name: "Dr. Other", AreaOfExpertise: "Surgery"}); err != nil {
		t.Fatal(err)
	}

	name := "  Dr. After "
	updated, err := svc.UpdateDentist(ctx, admin, d.ID, models.DentistUpdate{Name: &name})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Dr. After" || updated.YearsOfExperience != 3 {
		t.Fatalf("updated = %+v", updated)
	}

	_, err = svc.UpdateDentist(ctx, admin, d.ID, models.DentistUpdate{})
	requireKind(t, err, KindInvalidArgument)

	taken := "Dr. Other"
	_, err = svc.UpdateDentist(ctx, admin, d.ID, models.DentistUpdate{Name: &taken})
	requireKind(t, err, KindConflict)

	years := -1
	_, err = svc.UpdateDentist(ctx, admin, d.ID, models.DentistUpdate{YearsOfExperience: &years})
	requireKind(t, err, KindInvalidArgument)

	_, err = svc.UpdateDentist(ctx, admin, primitive.NewObjectID(), models.DentistUpdate{Name: &name})
	requireKind(t, err, KindNotFound)

	_, err = svc.GetDentist(ctx, primitive.NewObjectID())
	requireKind(t, err, KindNotFound)
}
