package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const establishmentColumns = `id, nome, cnpj, repasse, tipo, chave, identificador, seller, regiao, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEstablishment(row rowScanner) (*domain.Establishment, error) {
	var (
		e                    domain.Establishment
		payout               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.TaxID, &payout, &e.Type, &e.Key, &e.Identifier,
		&e.Seller, &e.Region, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Payout = payout != 0
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// ListEstablishments returns the establishments matching filter, ordered by name.
// Empty IDs or Types slices do not restrict the result.
func (s *Store) ListEstablishments(ctx context.Context, filter domain.EstablishmentFilter) ([]domain.Establishment, error) {
	ctx, span := tracer.Start(ctx, "Store.ListEstablishments")
	defer span.End()

	var (
		where []string
		args  []any
	)
	if len(filter.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	if len(filter.Types) > 0 {
		where = append(where, "tipo IN ("+placeholders(len(filter.Types))+")")
		for _, t := range filter.Types {
			args = append(args, int(t))
		}
	}
	if filter.ExcludeType != 0 {
		where = append(where, "tipo <> ?")
		args = append(args, int(filter.ExcludeType))
	}

	query := "SELECT " + establishmentColumns + " FROM estabelecimento"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY nome ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list establishments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Establishment, 0)
	for rows.Next() {
		e, err := scanEstablishment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan establishment: %w", err)
		}
		out = append(out, *e)
	}
	span.SetAttributes(attribute.Int("establishments.count", len(out)))
	return out, rows.Err()
}

// GetEstablishment returns one establishment or domain.ErrNotFound.
func (s *Store) GetEstablishment(ctx context.Context, id int64) (*domain.Establishment, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+establishmentColumns+" FROM estabelecimento WHERE id = ?", id)
	e, err := scanEstablishment(row)
	if err != nil {
		return nil, notFoundOr(err, "establishment", id)
	}
	return e, nil
}

// CreateEstablishment inserts est and fills its id and timestamps.
func (s *Store) CreateEstablishment(ctx context.Context, est *domain.Establishment) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO estabelecimento (nome, cnpj, repasse, tipo, chave, identificador, seller, regiao, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		est.Name, est.TaxID, boolToInt(est.Payout), int(est.Type), est.Key, est.Identifier,
		est.Seller, est.Region, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "CNPJ já cadastrado para este tipo e identificador"}
		}
		return fmt.Errorf("insert establishment: %w", err)
	}

	est.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	est.CreatedAt, est.UpdatedAt = now, now
	s.logger.Debug("establishment created", zap.Int64("establishment_id", est.ID))
	return nil
}

// UpdateEstablishment overwrites every column of est.
func (s *Store) UpdateEstablishment(ctx context.Context, est *domain.Establishment) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE estabelecimento SET nome = ?, cnpj = ?, repasse = ?, tipo = ?, chave = ?,
			identificador = ?, seller = ?, regiao = ?, updated_at = ?
		WHERE id = ?`,
		est.Name, est.TaxID, boolToInt(est.Payout), int(est.Type), est.Key, est.Identifier,
		est.Seller, est.Region, formatTime(now), est.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "CNPJ já cadastrado para este tipo e identificador"}
		}
		return fmt.Errorf("update establishment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "establishment", ID: fmt.Sprint(est.ID)}
	}
	est.UpdatedAt = now
	return nil
}

// DeleteEstablishment removes the establishment and, by cascade, its terminals.
func (s *Store) DeleteEstablishment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM estabelecimento WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete establishment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "establishment", ID: fmt.Sprint(id)}
	}
	return nil
}

// TaxIDTaken reports whether another establishment already uses the tax id
// under the same provider type and account identifier.
func (s *Store) TaxIDTaken(ctx context.Context, taxID string, typ domain.ProviderType, identifier string, exceptID int64) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM estabelecimento WHERE cnpj = ? AND tipo = ? AND identificador = ? AND id <> ? LIMIT 1",
		taxID, int(typ), identifier, exceptID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check cnpj: %w", err)
	}
	return true, nil
}
