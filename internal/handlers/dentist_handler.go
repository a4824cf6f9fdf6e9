package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
)

type createDentistRequest struct {
	Name              string `json:"name" binding:"required,max=50"`
	YearsOfExperience *int   `json:"yearsOfExperience" binding:"required,gte=0"`
	AreaOfExpertise   string `json:"areaOfExpertise" binding:"required"`
}

type updateDentistRequest struct {
	Name              *string `json:"name" binding:"omitempty,max=50"`
	YearsOfExperience *int    `json:"yearsOfExperience" binding:"omitempty,gte=0"`
	AreaOfExpertise   *string `json:"areaOfExpertise"`
}

func (h *Handler) GetDentists(c *gin.Context) {
	dentists, err := h.Dentists.ListDentists(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	okList(c, dentists)
}

func (h *Handler) GetDentist(c *gin.Context) {
	id, valid := objectIDParam(c, "id", "dentist")
	if !valid {
		return
	}
	d, err := h.Dentists.GetDentist(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

func (h *Handler) CreateDentist(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}
	var req createDentistRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.Dentists.CreateDentist(c.Request.Context(), r, models.Dentist{
		Name:              req.Name,
		YearsOfExperience: *req.YearsOfExperience,
		AreaOfExpertise:   req.AreaOfExpertise,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

func (h *Handler) UpdateDentist(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}
	id, valid := objectIDParam(c, "id", "dentist")
	if !valid {
		return
	}
	var req updateDentistRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.Dentists.UpdateDentist(c.Request.Context(), r, id, models.DentistUpdate{
		Name:              req.Name,
		YearsOfExperience: req.YearsOfExperience,
		AreaOfExpertise:   req.AreaOfExpertise,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteDentist removes the dentist and cascades to its bookings.
func (h *Handler) DeleteDentist(c *gin.Context) {
	r, found := requester(c)
	if !found {
		return
	}
	id, valid := objectIDParam(c, "id", "dentist")
	if !valid {
		return
	}

	removed, err := h.Bookings.DeleteDentist(c.Request.Context(), r, id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deletedBookings": removed})
}
