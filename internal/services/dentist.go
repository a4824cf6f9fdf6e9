package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/storage"
)

type DentistService struct {
	store storage.DentistStore
	log   *logrus.Logger
}

func NewDentistService(store storage.DentistStore, log *logrus.Logger) *DentistService {
	return &DentistService{store: store, log: log}
}

func (s *DentistService) ListDentists(ctx context.Context) ([]models.Dentist, error) {
	dentists, err := s.store.ListDentists(ctx)
	if err != nil {
		return nil, internal("Cannot find dentists", err)
	}
	return dentists, nil
}

func (s *DentistService) GetDentist(ctx context.Context, id primitive.ObjectID) (models.Dentist, error) {
	d, err := s.store.FindDentist(ctx, id)
	if err != nil {
		return models.Dentist{}, dentistError(id, err)
	}
	return d, nil
}

func (s *DentistService) CreateDentist(ctx context.Context, requester models.Requester, d models.Dentist) (models.Dentist, error) {
	if !requester.IsAdmin() {
		return models.Dentist{}, unauthorizedf("User %s is not authorized to create dentists", requester.ID.Hex())
	}
	d.Name = strings.TrimSpace(d.Name)
	d.AreaOfExpertise = strings.TrimSpace(d.AreaOfExpertise)
	if err := validateDentist(d.Name, d.YearsOfExperience, d.AreaOfExpertise); err != nil {
		return models.Dentist{}, err
	}

	created, err := s.store.CreateDentist(ctx, d)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return models.Dentist{}, conflictf("A dentist named %q already exists", d.Name)
	}
	if err != nil {
		return models.Dentist{}, internal("Cannot create dentist", err)
	}
	s.log.WithField("dentist", created.ID.Hex()).Info("dentist created")
	return created, nil
}

func (s *DentistService) UpdateDentist(ctx context.Context, requester models.Requester, id primitive.ObjectID, update models.DentistUpdate) (models.Dentist, error) {
	if !requester.IsAdmin() {
		return models.Dentist{}, unauthorizedf("User %s is not authorized to update dentist %s", requester.ID.Hex(), id.Hex())
	}
	if update.Empty() {
		return models.Dentist{}, invalidf("No fields to update on dentist %s", id.Hex())
	}

	current, err := s.store.FindDentist(ctx, id)
	if err != nil {
		return models.Dentist{}, dentistError(id, err)
	}
	name, years, area := current.Name, current.YearsOfExperience, current.AreaOfExpertise
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		update.Name = &trimmed
		name = trimmed
	}
	if update.YearsOfExperience != nil {
		years = *update.YearsOfExperience
	}
	if update.AreaOfExpertise != nil {
		trimmed := strings.TrimSpace(*update.AreaOfExpertise)
		update.AreaOfExpertise = &trimmed
		area = trimmed
	}
	if err := validateDentist(name, years, area); err != nil {
		return models.Dentist{}, err
	}

	d, err := s.store.UpdateDentist(ctx, id, update)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return models.Dentist{}, conflictf("A dentist named %q already exists", name)
	}
	if err != nil {
		return models.Dentist{}, dentistError(id, err)
	}
	return d, nil
}

func validateDentist(name string, years int, area string) error {
	switch {
	case name == "":
		return invalidf("Please add a name")
	case utf8.RuneCountInString(name) > models.MaxDentistNameLength:
		return invalidf("Name %q can not be more than %d characters", name, models.MaxDentistNameLength)
	case years < 0:
		return invalidf("Years of experience for %q can not be negative", name)
	case area == "":
		return invalidf("Please add an area of expertise for %q", name)
	}
	return nil
}

func dentistError(id primitive.ObjectID, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFoundf("No dentist with the id of %s", id.Hex())
	}
	return internal("Cannot find dentist", err)
}
