package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type bookingRequest struct {
	BookingDate string `json:"bookingDate" binding:"required"`
}

func parseBookingDate(c *gin.Context, raw string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid bookingDate "+raw+", use RFC3339")
		return time.Time{}, false
	}
	return t, true
}

// GetBookings lists bookings visible to the requester. Under
// /dentists/:id/bookings admins get that dentist's bookings only.
func (h *Handler) GetBookings(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}

	var dentistID primitive.ObjectID
	if c.Param("id") != "" {
		id, valid := objectIDParam(c, "id", "dentist")
		if !valid {
			return
		}
		dentistID = id
	}

	bookings, err := h.Bookings.ListBookings(c.Request.Context(), r, dentistID)
	if err != nil {
		respondError(c, err)
		return
	}
	okList(c, bookings)
}

func (h *Handler) GetBooking(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}
	id, valid := objectIDParam(c, "id", "booking")
	if !valid {
		return
	}

	booking, err := h.Bookings.GetBooking(c.Request.Context(), r, id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, booking)
}

// CreateBooking handles POST /dentists/:id/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}
	dentistID, valid := objectIDParam(c, "id", "dentist")
	if !valid {
		return
	}
	var req bookingRequest
	if !bindJSON(c, &req) {
		return
	}
	date, valid := parseBookingDate(c, req.BookingDate)
	if !valid {
		return
	}

	booking, err := h.Bookings.CreateBooking(c.Request.Context(), r, dentistID, date)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, booking)
}

func (h *Handler) UpdateBooking(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}
	id, valid := objectIDParam(c, "id", "booking")
	if !valid {
		return
	}
	var req bookingRequest
	if !bindJSON(c, &req) {
		return
	}
	date, valid := parseBookingDate(c, req.BookingDate)
	if !valid {
		return
	}

	booking, err := h.Bookings.UpdateBooking(c.Request.Context(), r, id, date)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, booking)
}

func (h *Handler) DeleteBooking(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}
	id, valid := objectIDParam(c, "id", "booking")
	if !valid {
		return
	}

	if err := h.Bookings.DeleteBooking(c.Request.Context(), r, id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}
