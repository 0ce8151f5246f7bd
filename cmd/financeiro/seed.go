package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/meshfin/financeiro-api/internal/config"
	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/observability"
	"github.com/meshfin/financeiro-api/internal/infra/sqlstore"
	"github.com/meshfin/financeiro-api/internal/port"
	"github.com/meshfin/financeiro-api/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ============================================================
// Fixture file
// ============================================================

type seedFile struct {
	Establishments []seedEstablishment `yaml:"estabelecimentos"`
	Terminals      []seedTerminal      `yaml:"terminais"`
	Users          []seedUser          `yaml:"usuarios"`
}

// seedEstablishment is referenced from terminals and users by Ref.
type seedEstablishment struct {
	Ref        string `yaml:"ref"`
	Name       string `yaml:"nome"`
	TaxID      string `yaml:"cnpj"`
	Payout     bool   `yaml:"repasse"`
	Type       int    `yaml:"tipo"`
	Key        string `yaml:"chave"`
	Identifier string `yaml:"identificador"`
	Seller     string `yaml:"seller"`
	Region     int    `yaml:"regiao"`
}

type seedTerminal struct {
	Serial        string `yaml:"serial"`
	Description   string `yaml:"descricao"`
	Type          int    `yaml:"tipo"`
	Identifier    string `yaml:"identificador"`
	Establishment string `yaml:"estabelecimento"`
}

// seedUser.Units is nil when the key is absent, which leaves the user unrestricted.
type seedUser struct {
	Name     string    `yaml:"nome"`
	CPF      string    `yaml:"cpf"`
	Password string    `yaml:"senha"`
	Type     int       `yaml:"tipo"`
	Active   *bool     `yaml:"status"`
	Units    *[]string `yaml:"unidades"`
}

func loadSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// ============================================================
// Seeder
// ============================================================

type seedReport struct {
	Establishments int
	Terminals      int
	Users          int
	Skipped        int
}

type seeder struct {
	ests     *service.EstablishmentService
	users    *service.UserService
	estStore port.EstablishmentStore
	terms    port.TerminalStore
	logger   *zap.Logger
}

// apply inserts every fixture. Records that already exist are skipped, so a
// seed file can be applied more than once.
func (s *seeder) apply(ctx context.Context, f *seedFile) (seedReport, error) {
	var rep seedReport
	refs := make(map[string]int64, len(f.Establishments))

	for _, e := range f.Establishments {
		id, created, err := s.establishment(ctx, e)
		if err != nil {
			return rep, fmt.Errorf("estabelecimento %q: %w", e.Name, err)
		}
		if created {
			rep.Establishments++
		} else {
			rep.Skipped++
		}
		if e.Ref != "" {
			refs[e.Ref] = id
		}
	}

	for _, t := range f.Terminals {
		estID, ok := refs[t.Establishment]
		if !ok {
			return rep, fmt.Errorf("terminal %q: estabelecimento %q não declarado", t.Serial, t.Establishment)
		}
		created, err := s.terminal(ctx, t, estID)
		if err != nil {
			return rep, fmt.Errorf("terminal %q: %w", t.Serial, err)
		}
		if created {
			rep.Terminals++
		} else {
			rep.Skipped++
		}
	}

	for _, u := range f.Users {
		created, err := s.user(ctx, u, refs)
		if err != nil {
			return rep, fmt.Errorf("usuário %q: %w", u.Name, err)
		}
		if created {
			rep.Users++
		} else {
			rep.Skipped++
		}
	}
	return rep, nil
}

func (s *seeder) establishment(ctx context.Context, e seedEstablishment) (int64, bool, error) {
	typ := domain.ProviderType(e.Type)
	in := &domain.EstablishmentInput{
		Name: &e.Name, TaxID: &e.TaxID, Payout: &e.Payout, Type: &typ,
		Key: &e.Key, Identifier: &e.Identifier, Region: &e.Region,
	}
	if e.Seller != "" {
		in.Seller = &e.Seller
	}

	est, err := s.ests.Create(ctx, in)
	if err == nil {
		return est.ID, true, nil
	}
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		return 0, false, err
	}

	existing, err := s.estStore.ListEstablishments(ctx, domain.EstablishmentFilter{Types: []domain.ProviderType{typ}})
	if err != nil {
		return 0, false, err
	}
	digits := domain.OnlyDigits(e.TaxID)
	for _, x := range existing {
		if x.TaxID == digits && x.Identifier == e.Identifier {
			s.logger.Debug("establishment already seeded", zap.Int64("id", x.ID), zap.String("name", x.Name))
			return x.ID, false, nil
		}
	}
	return 0, false, conflict
}

// terminal writes straight to the store: fixtures carry the provider id, so no
// remote lookup is needed.
func (s *seeder) terminal(ctx context.Context, t seedTerminal, estID int64) (bool, error) {
	serial := strings.ToUpper(strings.TrimSpace(t.Serial))
	if serial == "" || t.Identifier == "" {
		return false, &domain.ErrValidation{Field: "serial", Message: "serial e identificador são obrigatórios"}
	}
	taken, err := s.terms.SerialTaken(ctx, serial, 0)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	term := &domain.Terminal{Serial: serial, Type: t.Type, Identifier: t.Identifier, EstablishmentID: estID}
	if t.Description != "" {
		term.Description = &t.Description
	}
	if term.Type == 0 {
		term.Type = 1
	}
	return true, s.terms.CreateTerminal(ctx, term)
}

func (s *seeder) user(ctx context.Context, u seedUser, refs map[string]int64) (bool, error) {
	in := &domain.UserInput{Name: &u.Name, CPF: &u.CPF, Password: &u.Password, Type: &u.Type, Active: u.Active}
	if u.Units != nil {
		ids := make([]int64, 0, len(*u.Units))
		for _, ref := range *u.Units {
			id, ok := refs[ref]
			if !ok {
				return false, fmt.Errorf("estabelecimento %q não declarado", ref)
			}
			ids = append(ids, id)
		}
		in.Units = &ids
	}

	if _, err := s.users.Create(ctx, in); err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ============================================================
// Command
// ============================================================

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Carrega estabelecimentos, terminais e usuários de um arquivo YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if file == "" {
				file = cfg.SeedFile
			}

			logger := observability.NewLogger(cfg.LogLevel)
			defer logger.Sync()

			f, err := loadSeedFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := sqlstore.Open(ctx, cfg.DatabaseDSN, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			s := &seeder{
				ests:     service.NewEstablishmentService(store, logger),
				users:    service.NewUserService(store, store, logger),
				estStore: store,
				terms:    store,
				logger:   logger,
			}
			rep, err := s.apply(ctx, f)
			if err != nil {
				return err
			}
			logger.Info("seed applied",
				zap.String("file", file),
				zap.Int("establishments", rep.Establishments),
				zap.Int("terminals", rep.Terminals),
				zap.Int("users", rep.Users),
				zap.Int("skipped", rep.Skipped),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "arquivo YAML (padrão: SEED_FILE)")
	return cmd
}
