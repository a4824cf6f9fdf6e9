package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/middleware"
	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/services"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Count   *int              `json:"count,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func okList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = make([]T, 0)
	}
	n := len(items)
	c.JSON(http.StatusOK, Response{Success: true, Count: &n, Data: items})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}

// respondError maps a service error to its HTTP status. Internal causes are
// recorded on the context for the request logger and never sent.
func respondError(c *gin.Context, err error) {
	var se *services.Error
	if !errors.As(err, &se) {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	switch se.Kind {
	case services.KindNotFound:
		fail(c, http.StatusNotFound, se.Message)
	case services.KindUnauthorized:
		fail(c, http.StatusUnauthorized, se.Message)
	case services.KindConflict, services.KindInvalidArgument:
		fail(c, http.StatusBadRequest, se.Message)
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, se.Message)
	}
}

func requester(c *gin.Context) (models.Requester, bool) {
	r, found := middleware.RequesterFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, "Not authorized to access this route")
	}
	return r, found
}

func objectIDParam(c *gin.Context, name, entity string) (primitive.ObjectID, bool) {
	raw := c.Param(name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid "+entity+" id "+raw)
		return primitive.NilObjectID, false
	}
	return id, true
}
