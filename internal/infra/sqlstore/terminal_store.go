package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
)

const terminalColumns = `id, serial, descricao, tipo, identificador, unidade_id, created_at, updated_at`

func scanTerminal(row rowScanner) (*domain.Terminal, error) {
	var (
		t                    domain.Terminal
		desc                 sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Serial, &desc, &t.Type, &t.Identifier, &t.EstablishmentID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func (s *Store) queryTerminals(ctx context.Context, query string, args ...any) ([]domain.Terminal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list terminals: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Terminal, 0)
	for rows.Next() {
		t, err := scanTerminal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan terminal: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListTerminals returns every terminal.
func (s *Store) ListTerminals(ctx context.Context) ([]domain.Terminal, error) {
	return s.queryTerminals(ctx, "SELECT "+terminalColumns+" FROM terminal ORDER BY id")
}

// ListTerminalsByEstablishment returns the terminals owned by one establishment.
func (s *Store) ListTerminalsByEstablishment(ctx context.Context, establishmentID int64) ([]domain.Terminal, error) {
	ctx, span := tracer.Start(ctx, "Store.ListTerminalsByEstablishment")
	defer span.End()
	return s.queryTerminals(ctx, "SELECT "+terminalColumns+" FROM terminal WHERE unidade_id = ? ORDER BY id", establishmentID)
}

// GetTerminal returns one terminal or domain.ErrNotFound.
func (s *Store) GetTerminal(ctx context.Context, id int64) (*domain.Terminal, error) {
	t, err := scanTerminal(s.db.QueryRowContext(ctx, "SELECT "+terminalColumns+" FROM terminal WHERE id = ?", id))
	if err != nil {
		return nil, notFoundOr(err, "terminal", id)
	}
	return t, nil
}

// SerialTaken reports whether a terminal other than exceptID uses serial.
func (s *Store) SerialTaken(ctx context.Context, serial string, exceptID int64) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM terminal WHERE serial = ? AND id <> ?", serial, exceptID).Scan(&n); err != nil {
		return false, fmt.Errorf("check serial: %w", err)
	}
	return n > 0, nil
}

// CreateTerminal inserts t and fills its id and timestamps.
func (s *Store) CreateTerminal(ctx context.Context, t *domain.Terminal) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO terminal (serial, descricao, tipo, identificador, unidade_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		t.Serial, t.Description, t.Type, t.Identifier, t.EstablishmentID, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "Serial já cadastrado"}
		}
		return fmt.Errorf("insert terminal: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

// UpdateTerminal overwrites every column of t.
func (s *Store) UpdateTerminal(ctx context.Context, t *domain.Terminal) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE terminal SET serial = ?, descricao = ?, tipo = ?, identificador = ?, unidade_id = ?, updated_at = ?
		WHERE id = ?`,
		t.Serial, t.Description, t.Type, t.Identifier, t.EstablishmentID, formatTime(now), t.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "Serial já cadastrado"}
		}
		return fmt.Errorf("update terminal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "terminal", ID: fmt.Sprint(t.ID)}
	}
	t.UpdatedAt = now
	return nil
}

// DeleteTerminal removes one terminal.
func (s *Store) DeleteTerminal(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM terminal WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete terminal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "terminal", ID: fmt.Sprint(id)}
	}
	return nil
}
