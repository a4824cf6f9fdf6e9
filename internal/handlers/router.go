package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dentist-booking-api/internal/middleware"
	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/utils"
)

type RouterConfig struct {
	Tokens      *utils.TokenManager
	CORSOrigins []string
	Log         *logrus.Logger
}

// NewRouter wires middleware and routes onto a fresh gin engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(cfg.Log))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/health/live", h.Liveness)
	r.GET("/health/ready", h.Readiness)

	authenticated := middleware.AuthMiddleware(cfg.Tokens)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	v1 := r.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", h.Register)
		authRoutes.POST("/login", h.Login)
		authRoutes.GET("/me", authenticated, h.GetMe)
	}

	dentistRoutes := v1.Group("/dentists")
	{
		dentistRoutes.GET("", h.GetDentists)
		dentistRoutes.GET("/:id", h.GetDentist)
		dentistRoutes.POST("", authenticated, adminOnly, h.CreateDentist)
		dentistRoutes.PUT("/:id", authenticated, adminOnly, h.UpdateDentist)
		dentistRoutes.DELETE("/:id", authenticated, adminOnly, h.DeleteDentist)

		dentistRoutes.GET("/:id/bookings", authenticated, h.GetBookings)
		dentistRoutes.POST("/:id/bookings", authenticated, h.CreateBooking)
	}

	bookingRoutes := v1.Group("/bookings", authenticated)
	{
		bookingRoutes.GET("", h.GetBookings)
		bookingRoutes.GET("/:id", h.GetBooking)
		bookingRoutes.PUT("/:id", h.UpdateBooking)
		bookingRoutes.DELETE("/:id", h.DeleteBooking)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
