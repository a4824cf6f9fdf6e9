package handlers

import (
	"context"

	"github.com/harentsoaR/dentist-booking-api/internal/services"
)

// HealthCheck is a named dependency checked by the readiness endpoint.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler groups the services the HTTP routes call into.
type Handler struct {
	Bookings *services.BookingService
	Dentists *services.DentistService
	Users    *services.UserService
	Checks   []HealthCheck
	Version  string
}

func NewHandler(bookings *services.BookingService, dentists *services.DentistService, users *services.UserService, checks ...HealthCheck) *Handler {
	return &Handler{
		Bookings: bookings,
		Dentists: dentists,
		Users:    users,
		Checks:   checks,
	}
}
