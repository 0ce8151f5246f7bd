package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost     = bcrypt.DefaultCost
	minPassword    = 6
	cpfTakenMsg    = "CPF já cadastrado"
	unknownUnitMsg = "unidade não encontrada"
)

// UserService manages back-office users.
type UserService struct {
	store    port.UserStore
	estStore port.EstablishmentStore
	logger   *zap.Logger
}

// NewUserService creates a user service.
func NewUserService(store port.UserStore, estStore port.EstablishmentStore, logger *zap.Logger) *UserService {
	return &UserService{store: store, estStore: estStore, logger: logger}
}

// List returns every user ordered by name.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.List")
	defer span.End()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	return s.store.GetUser(ctx, id)
}

// Create validates in, hashes the password and stores a new user.
func (s *UserService) Create(ctx context.Context, in *domain.UserInput) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Create")
	defer span.End()

	switch {
	case in.Name == nil:
		return nil, required("nome")
	case in.CPF == nil:
		return nil, required("cpf")
	case in.Password == nil:
		return nil, required("senha")
	case in.Type == nil:
		return nil, required("tipo")
	}

	u := &domain.User{Active: true}
	if err := s.apply(ctx, u, in); err != nil {
		return nil, err
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created", zap.Int64("user_id", u.ID), zap.Int("type", u.Type))
	return u, nil
}

// Update applies the fields present in in. An absent password keeps the current one.
func (s *UserService) Update(ctx context.Context, id int64, in *domain.UserInput) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, u, in); err != nil {
		return nil, err
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("user updated", zap.Int64("user_id", u.ID))
	return u, nil
}

// Delete removes a user and, by cascade, their access tokens.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "UserService.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Int64("user_id", id))
	return nil
}

func (s *UserService) apply(ctx context.Context, u *domain.User, in *domain.UserInput) error {
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if err := checkLength("nome", u.Name, minText, maxText); err != nil {
		return err
	}

	if in.CPF != nil {
		raw := strings.TrimSpace(*in.CPF)
		if n := len(raw); n < 11 || n > 14 || !domain.ValidCPF(raw) {
			return &domain.ErrValidation{Field: "cpf", Message: "CPF inválido"}
		}
		u.CPF = domain.OnlyDigits(raw)
		if err := s.checkCPF(ctx, u); err != nil {
			return err
		}
	}

	if in.Password != nil {
		if len(*in.Password) < minPassword {
			return &domain.ErrValidation{Field: "senha", Message: fmt.Sprintf("deve ter no mínimo %d caracteres", minPassword)}
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	if in.Type != nil {
		u.Type = *in.Type
	}
	if err := checkRange("tipo", u.Type, domain.UserAdmin, domain.UserUseOnly); err != nil {
		return err
	}

	if in.Active != nil {
		u.Active = *in.Active
	}

	if in.Units != nil {
		units := *in.Units
		if units != nil {
			units = dedupe(units)
			if err := s.checkUnits(ctx, units); err != nil {
				return err
			}
		}
		u.Units = units
	}
	return nil
}

func (s *UserService) checkCPF(ctx context.Context, u *domain.User) error {
	existing, err := s.store.GetUserByCPF(ctx, u.CPF)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("check cpf: %w", err)
	}
	if existing.ID != u.ID {
		return &domain.ErrConflict{Message: cpfTakenMsg}
	}
	return nil
}

func (s *UserService) checkUnits(ctx context.Context, units []int64) error {
	if len(units) == 0 {
		return nil
	}
	ests, err := s.estStore.ListEstablishments(ctx, domain.EstablishmentFilter{IDs: units})
	if err != nil {
		return fmt.Errorf("check units: %w", err)
	}
	if len(ests) != len(units) {
		return &domain.ErrValidation{Field: "unidades", Message: unknownUnitMsg}
	}
	return nil
}
