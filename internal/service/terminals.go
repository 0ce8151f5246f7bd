package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	serialTakenMsg      = "Serial já cadastrado"
	remoteTerminalNFMsg = "Terminal não encontrado"
)

// TerminalService manages registered card terminals. New serials are
// confirmed against the provider before being stored.
type TerminalService struct {
	store    port.TerminalStore
	estStore port.EstablishmentStore
	search   port.TerminalSearcher
	logger   *zap.Logger
}

// NewTerminalService creates a terminal service.
func NewTerminalService(store port.TerminalStore, estStore port.EstablishmentStore, search port.TerminalSearcher, logger *zap.Logger) *TerminalService {
	return &TerminalService{store: store, estStore: estStore, search: search, logger: logger}
}

// List returns every terminal, or only those of establishmentID when it is non-zero.
func (s *TerminalService) List(ctx context.Context, establishmentID int64) ([]domain.Terminal, error) {
	ctx, span := tracer.Start(ctx, "TerminalService.List")
	defer span.End()

	var (
		terms []domain.Terminal
		err   error
	)
	if establishmentID > 0 {
		terms, err = s.store.ListTerminalsByEstablishment(ctx, establishmentID)
	} else {
		terms, err = s.store.ListTerminals(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list terminals: %w", err)
	}
	return terms, nil
}

// Get returns one terminal.
func (s *TerminalService) Get(ctx context.Context, id int64) (*domain.Terminal, error) {
	ctx, span := tracer.Start(ctx, "TerminalService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("terminal.id", id))

	return s.store.GetTerminal(ctx, id)
}

// Create registers a terminal after finding its serial at the provider.
func (s *TerminalService) Create(ctx context.Context, in *domain.TerminalInput) (*domain.Terminal, error) {
	ctx, span := tracer.Start(ctx, "TerminalService.Create")
	defer span.End()

	switch {
	case in.Serial == nil:
		return nil, required("serial")
	case in.Type == nil:
		return nil, required("tipo")
	case in.EstablishmentID == nil:
		return nil, required("unidade_id")
	}

	t := &domain.Terminal{}
	applyTerminal(t, in)
	if err := validateTerminal(t); err != nil {
		return nil, err
	}
	if err := s.bindRemote(ctx, t); err != nil {
		return nil, err
	}

	if err := s.store.CreateTerminal(ctx, t); err != nil {
		return nil, fmt.Errorf("create terminal: %w", err)
	}
	s.logger.Info("terminal created",
		zap.Int64("terminal_id", t.ID),
		zap.Int64("establishment_id", t.EstablishmentID),
		zap.String("serial", t.Serial),
	)
	return t, nil
}

// Update applies the fields present in in. A new serial or establishment is
// looked up at the provider again.
func (s *TerminalService) Update(ctx context.Context, id int64, in *domain.TerminalInput) (*domain.Terminal, error) {
	ctx, span := tracer.Start(ctx, "TerminalService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("terminal.id", id))

	t, err := s.store.GetTerminal(ctx, id)
	if err != nil {
		return nil, err
	}
	prevSerial, prevEst := t.Serial, t.EstablishmentID

	applyTerminal(t, in)
	if err := validateTerminal(t); err != nil {
		return nil, err
	}
	if t.Serial != prevSerial || t.EstablishmentID != prevEst {
		if err := s.bindRemote(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateTerminal(ctx, t); err != nil {
		return nil, fmt.Errorf("update terminal: %w", err)
	}
	s.logger.Info("terminal updated", zap.Int64("terminal_id", t.ID))
	return t, nil
}

// Delete removes a terminal.
func (s *TerminalService) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "TerminalService.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("terminal.id", id))

	if err := s.store.DeleteTerminal(ctx, id); err != nil {
		return err
	}
	s.logger.Info("terminal deleted", zap.Int64("terminal_id", id))
	return nil
}

// bindRemote checks the owning establishment, finds the serial at the
// provider and copies the provider's serial and id into t.
func (s *TerminalService) bindRemote(ctx context.Context, t *domain.Terminal) error {
	est, err := s.estStore.GetEstablishment(ctx, t.EstablishmentID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return &domain.ErrValidation{Field: "unidade_id", Message: "unidade não encontrada"}
		}
		return fmt.Errorf("get establishment: %w", err)
	}

	remote, err := s.search.SearchTerminal(ctx, est, t.Serial)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return &domain.ErrNotFound{Resource: "terminal", ID: t.Serial, Message: remoteTerminalNFMsg}
		}
		return err
	}
	if remote == nil || remote.ID == "" {
		return &domain.ErrNotFound{Resource: "terminal", ID: t.Serial, Message: remoteTerminalNFMsg}
	}
	if remote.SerialNumber != "" {
		t.Serial = remote.SerialNumber
	}
	t.Identifier = remote.ID

	taken, err := s.store.SerialTaken(ctx, t.Serial, t.ID)
	if err != nil {
		return fmt.Errorf("check serial: %w", err)
	}
	if taken {
		return &domain.ErrConflict{Message: serialTakenMsg}
	}
	return nil
}

func applyTerminal(t *domain.Terminal, in *domain.TerminalInput) {
	if in.Serial != nil {
		t.Serial = strings.TrimSpace(*in.Serial)
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		t.Description = &d
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.EstablishmentID != nil {
		t.EstablishmentID = *in.EstablishmentID
	}
}

func validateTerminal(t *domain.Terminal) error {
	if err := checkLength("serial", t.Serial, minText, maxText); err != nil {
		return err
	}
	if t.Description != nil {
		if err := checkLength("descricao", *t.Description, minText, maxText); err != nil {
			return err
		}
	}
	return checkRange("tipo", t.Type, 1, 2)
}
