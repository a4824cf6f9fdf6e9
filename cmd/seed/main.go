package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/services"
	"github.com/harentsoaR/dentist-booking-api/internal/storage/mongostore"
	"github.com/harentsoaR/dentist-booking-api/internal/utils"
)

var expertise = []string{
	"General Dentistry",
	"Orthodontics",
	"Endodontics",
	"Periodontics",
	"Prosthodontics",
	"Pediatric Dentistry",
	"Oral Surgery",
	"Cosmetic Dentistry",
}

func main() {
	dentists := flag.Int("dentists", 20, "number of dentists to create")
	users := flag.Int("users", 50, "number of user accounts to create")
	flag.Parse()

	log := logrus.New()
	_ = godotenv.Load()

	uri, db := os.Getenv("MONGO_URI"), os.Getenv("MONGO_DATABASE")
	if uri == "" || db == "" {
		log.Fatal("MONGO_URI and MONGO_DATABASE are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := mongostore.Connect(ctx, uri, db, mongostore.IndexOptions{UniqueUserBooking: true, UniqueSlot: true})
	if err != nil {
		log.WithError(err).Fatal("connect mongo")
	}
	defer store.Close(context.Background())

	gofakeit.Seed(time.Now().UnixNano())

	userSvc := services.NewUserService(store, utils.NewTokenManager("seed", "seed", time.Minute), log)
	dentistSvc := services.NewDentistService(store, log)

	admin, err := seedAdmin(ctx, userSvc)
	if err != nil {
		log.WithError(err).Fatal("seed admin")
	}
	if err := seedDentists(ctx, dentistSvc, admin, *dentists); err != nil {
		log.WithError(err).Fatal("seed dentists")
	}
	if err := seedUsers(ctx, userSvc, *users); err != nil {
		log.WithError(err).Fatal("seed users")
	}
	log.Info("seed complete")
}

func seedAdmin(ctx context.Context, svc *services.UserService) (models.Requester, error) {
	email := os.Getenv("SEED_ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = gofakeit.Password(true, true, true, false, false, 16)
		fmt.Printf("admin password: %s\n", password)
	}

	admin, err := svc.CreateAdmin(ctx, "Administrator", email, password)
	if services.KindOf(err) == services.KindConflict {
		return models.Requester{}, fmt.Errorf("admin %s already exists, set SEED_ADMIN_EMAIL to seed again", email)
	}
	if err != nil {
		return models.Requester{}, err
	}
	return models.Requester{ID: admin.ID, Role: admin.Role}, nil
}

func seedDentists(ctx context.Context, svc *services.DentistService, admin models.Requester, count int) error {
	for created := 0; created < count; {
		_, err := svc.CreateDentist(ctx, admin, models.Dentist{
			Name:              "Dr. " + gofakeit.LastName() + " " + gofakeit.FirstName(),
			YearsOfExperience: gofakeit.Number(1, 40),
			AreaOfExpertise:   expertise[gofakeit.Number(0, len(expertise)-1)],
		})
		switch {
		case services.KindOf(err) == services.KindConflict:
			continue
		case err != nil:
			return err
		}
		created++
	}
	return nil
}

func seedUsers(ctx context.Context, svc *services.UserService, count int) error {
	for created := 0; created < count; {
		_, err := svc.Register(ctx, gofakeit.Name(), gofakeit.Email(), "password123", gofakeit.Phone())
		switch {
		case services.KindOf(err) == services.KindConflict:
			continue
		case err != nil:
			return err
		}
		created++
	}
	return nil
}
