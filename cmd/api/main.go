package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dentist-booking-api/internal/admission"
	"github.com/harentsoaR/dentist-booking-api/internal/config"
	"github.com/harentsoaR/dentist-booking-api/internal/handlers"
	"github.com/harentsoaR/dentist-booking-api/internal/locker"
	"github.com/harentsoaR/dentist-booking-api/internal/services"
	"github.com/harentsoaR/dentist-booking-api/internal/storage"
	"github.com/harentsoaR/dentist-booking-api/internal/storage/memstore"
	"github.com/harentsoaR/dentist-booking-api/internal/storage/mongostore"
	"github.com/harentsoaR/dentist-booking-api/internal/utils"
)

var version = "dev"

func main() {
	log := logrus.New()
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, relying on environment variables.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	configureLogger(log, cfg)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func configureLogger(log *logrus.Logger, cfg config.Config) {
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []handlers.HealthCheck

	var store storage.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = memstore.NewWithConstraints(memstore.Constraints{
			UniqueUserBooking: cfg.Booking.MaxBookingsPerUser == 1,
			UniqueSlot:        cfg.Booking.SlotExclusivity,
		})
		log.Warn("using in-memory store, data is lost on restart")
	default:
		ms, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, mongostore.IndexOptions{
			UniqueUserBooking: cfg.Booking.MaxBookingsPerUser == 1,
			UniqueSlot:        cfg.Booking.SlotExclusivity,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := ms.Close(context.Background()); err != nil {
				log.WithError(err).Error("failed to disconnect from MongoDB")
			}
		}()
		store = ms
		log.WithField("database", cfg.MongoDatabase).Info("connected to MongoDB")
		if !ms.SupportsTransactions() {
			log.Warn("MongoDB is a standalone server without transactions, deleting a dentist will fail until it runs as a replica set")
		}
	}
	checks = append(checks, handlers.HealthCheck{Name: cfg.StoreDriver, Ping: store.Ping})

	var locks locker.Locker = locker.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rdb, err := locker.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
		redisLocks := locker.NewRedis(rdb, cfg.LockTTL)
		locks = redisLocks
		checks = append(checks, handlers.HealthCheck{Name: "redis", Ping: redisLocks.Ping})
		log.WithField("addr", cfg.RedisAddr).Info("using Redis booking locks")
	} else {
		log.Info("using in-process booking locks, run a single instance only")
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	ctrl := admission.NewController(cfg.Booking)
	h := handlers.NewHandler(
		services.NewBookingService(store, ctrl, locks, log),
		services.NewDentistService(store, log),
		services.NewUserService(store, tokens, log),
		checks...,
	)
	h.Version = version

	srv := &http.Server{
		Addr: cfg.HTTPAddress(),
		Handler: handlers.NewRouter(h, handlers.RouterConfig{
			Tokens:      tokens,
			CORSOrigins: cfg.CORSOrigins,
			Log:         log,
		}),
	}

	policy := ctrl.Policy()
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":                     srv.Addr,
			"lead_time":                policy.LeadTime.String(),
			"max_per_user":             policy.MaxBookingsPerUser,
			"slot_exclusive":           policy.SlotExclusivity,
			"admin_bypasses_lead_time": policy.AdminBypassesLeadTime,
		}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
