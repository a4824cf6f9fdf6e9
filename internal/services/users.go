package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/storage"
	"github.com/harentsoaR/dentist-booking-api/internal/utils"
)

type UserService struct {
	store  storage.UserStore
	tokens *utils.TokenManager
	log    *logrus.Logger
}

func NewUserService(store storage.UserStore, tokens *utils.TokenManager, log *logrus.Logger) *UserService {
	return &UserService{store: store, tokens: tokens, log: log}
}

// Register creates a user account. Self-registered accounts always get the
// user role.
func (s *UserService) Register(ctx context.Context, name, email, password, phone string) (models.User, error) {
	return s.create(ctx, name, email, password, phone, models.RoleUser)
}

// CreateAdmin creates an account with the admin role. It is not reachable
// over HTTP.
func (s *UserService) CreateAdmin(ctx context.Context, name, email, password string) (models.User, error) {
	return s.create(ctx, name, email, password, "", models.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, name, email, password, phone string, role models.Role) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, internal("Failed to hash password", err)
	}

	user, err := s.store.CreateUser(ctx, models.User{
		Name:      strings.TrimSpace(name),
		Email:     email,
		Password:  hash,
		Role:      role,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return models.User{}, conflictf("An account with email %s already exists", email)
	}
	if err != nil {
		return models.User{}, internal("Failed to create user", err)
	}
	s.log.WithFields(logrus.Fields{"user": user.ID.Hex(), "role": role}).Info("user registered")
	return user, nil
}

// Login checks credentials and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", models.User{}, unauthorizedf("Invalid credentials for %s", email)
		}
		return "", models.User{}, internal("Login failed", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return "", models.User{}, unauthorizedf("Invalid credentials for %s", email)
	}

	token, err := s.tokens.Generate(user.ID.Hex(), user.Role)
	if err != nil {
		return "", models.User{}, internal("Could not generate token", err)
	}
	return token, user, nil
}

func (s *UserService) Me(ctx context.Context, requester models.Requester) (models.User, error) {
	user, err := s.store.FindUserByID(ctx, requester.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, notFoundf("No user with the id of %s", requester.ID.Hex())
		}
		return models.User{}, internal("Cannot find user", err)
	}
	return user, nil
}
