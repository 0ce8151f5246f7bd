package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const taxIDTakenMsg = "CNPJ já cadastrado para este tipo e identificador"

// EstablishmentService manages establishment records.
type EstablishmentService struct {
	store  port.EstablishmentStore
	logger *zap.Logger
}

// NewEstablishmentService creates an establishment service.
func NewEstablishmentService(store port.EstablishmentStore, logger *zap.Logger) *EstablishmentService {
	return &EstablishmentService{store: store, logger: logger}
}

// List returns establishments matching filter, ordered by name.
func (s *EstablishmentService) List(ctx context.Context, filter domain.EstablishmentFilter) ([]domain.Establishment, error) {
	ctx, span := tracer.Start(ctx, "EstablishmentService.List")
	defer span.End()

	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, &domain.ErrValidation{Field: "tipos", Message: "tipo inválido"}
		}
	}
	ests, err := s.store.ListEstablishments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	return ests, nil
}

// Get returns one establishment.
func (s *EstablishmentService) Get(ctx context.Context, id int64) (*domain.Establishment, error) {
	ctx, span := tracer.Start(ctx, "EstablishmentService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", id))

	return s.store.GetEstablishment(ctx, id)
}

// Create validates in and stores a new establishment.
func (s *EstablishmentService) Create(ctx context.Context, in *domain.EstablishmentInput) (*domain.Establishment, error) {
	ctx, span := tracer.Start(ctx, "EstablishmentService.Create")
	defer span.End()

	switch {
	case in.Name == nil:
		return nil, required("nome")
	case in.TaxID == nil:
		return nil, required("cnpj")
	case in.Type == nil:
		return nil, required("tipo")
	case in.Key == nil || strings.TrimSpace(*in.Key) == "":
		return nil, required("chave")
	case in.Identifier == nil || strings.TrimSpace(*in.Identifier) == "":
		return nil, required("identificador")
	case in.Region == nil:
		return nil, required("regiao")
	}

	est := &domain.Establishment{}
	if err := applyEstablishment(est, in); err != nil {
		return nil, err
	}
	if err := validateEstablishment(est); err != nil {
		return nil, err
	}
	if err := s.checkTaxID(ctx, est); err != nil {
		return nil, err
	}

	if err := s.store.CreateEstablishment(ctx, est); err != nil {
		return nil, fmt.Errorf("create establishment: %w", err)
	}
	s.logger.Info("establishment created", zap.Int64("establishment_id", est.ID), zap.Int("type", int(est.Type)))
	return est, nil
}

// Update applies the fields present in in. Switching to provider type 3
// clears the seller.
func (s *EstablishmentService) Update(ctx context.Context, id int64, in *domain.EstablishmentInput) (*domain.Establishment, error) {
	ctx, span := tracer.Start(ctx, "EstablishmentService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", id))

	est, err := s.store.GetEstablishment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyEstablishment(est, in); err != nil {
		return nil, err
	}
	if err := validateEstablishment(est); err != nil {
		return nil, err
	}
	if err := s.checkTaxID(ctx, est); err != nil {
		return nil, err
	}

	if err := s.store.UpdateEstablishment(ctx, est); err != nil {
		return nil, fmt.Errorf("update establishment: %w", err)
	}
	s.logger.Info("establishment updated", zap.Int64("establishment_id", est.ID))
	return est, nil
}

// Delete removes an establishment and, by cascade, its terminals.
func (s *EstablishmentService) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "EstablishmentService.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", id))

	if err := s.store.DeleteEstablishment(ctx, id); err != nil {
		return err
	}
	s.logger.Info("establishment deleted", zap.Int64("establishment_id", id))
	return nil
}

func (s *EstablishmentService) checkTaxID(ctx context.Context, est *domain.Establishment) error {
	taken, err := s.store.TaxIDTaken(ctx, est.TaxID, est.Type, est.Identifier, est.ID)
	if err != nil {
		return fmt.Errorf("check cnpj: %w", err)
	}
	if taken {
		return &domain.ErrConflict{Message: taxIDTakenMsg}
	}
	return nil
}

func applyEstablishment(est *domain.Establishment, in *domain.EstablishmentInput) error {
	if in.Name != nil {
		est.Name = strings.TrimSpace(*in.Name)
	}
	if in.TaxID != nil {
		if !domain.HasCNPJMask(*in.TaxID) || !domain.ValidCNPJ(*in.TaxID) {
			return &domain.ErrValidation{Field: "cnpj", Message: "CNPJ inválido, use o formato XX.XXX.XXX/XXXX-XX"}
		}
		est.TaxID = domain.OnlyDigits(*in.TaxID)
	}
	if in.Payout != nil {
		est.Payout = *in.Payout
	}
	if in.Type != nil {
		est.Type = *in.Type
	}
	if in.Key != nil {
		est.Key = strings.TrimSpace(*in.Key)
	}
	if in.Identifier != nil {
		est.Identifier = strings.TrimSpace(*in.Identifier)
	}
	if in.Seller != nil {
		est.Seller = strings.TrimSpace(*in.Seller)
	}
	if in.Region != nil {
		est.Region = *in.Region
	}
	if est.Type == domain.ProviderUse {
		est.Seller = ""
	}
	return nil
}

func validateEstablishment(est *domain.Establishment) error {
	if err := checkLength("nome", est.Name, minText, maxText); err != nil {
		return err
	}
	if !est.Type.Valid() {
		return &domain.ErrValidation{Field: "tipo", Message: "deve ser 1, 2 ou 3"}
	}
	if est.Type.UsesZoopAPI() && est.Seller == "" {
		return &domain.ErrValidation{Field: "seller", Message: "obrigatório para estabelecimentos dos tipos 1 e 2"}
	}
	if est.Key == "" {
		return required("chave")
	}
	if est.Identifier == "" {
		return required("identificador")
	}
	return checkRange("regiao", est.Region, domain.MinRegion, domain.MaxRegion)
}
