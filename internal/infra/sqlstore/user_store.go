package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
)

const userColumns = `id, nome, cpf, senha, tipo, status, unidades, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                    domain.User
		active               int
		units                sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.CPF, &u.PasswordHash, &u.Type, &active, &units, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Active = active != 0
	if units.Valid {
		u.Units = make([]int64, 0)
		if err := json.Unmarshal([]byte(units.String), &u.Units); err != nil {
			return nil, fmt.Errorf("decode unidades of user %d: %w", u.ID, err)
		}
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// encodeUnits keeps the nil / empty distinction: nil is stored as NULL.
func encodeUnits(units []int64) (any, error) {
	if units == nil {
		return nil, nil
	}
	b, err := json.Marshal(units)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ListUsers returns every user ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM usuario ORDER BY nome, id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// GetUser returns one user or domain.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM usuario WHERE id = ?", id))
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return u, nil
}

// GetUserByCPF looks a user up by digits-only CPF.
func (s *Store) GetUserByCPF(ctx context.Context, cpf string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM usuario WHERE cpf = ?", cpf))
	if err != nil {
		return nil, notFoundOr(err, "user", cpf)
	}
	return u, nil
}

// CreateUser inserts u and fills its id and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	units, err := encodeUnits(u.Units)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO usuario (nome, cpf, senha, tipo, status, unidades, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		u.Name, u.CPF, u.PasswordHash, u.Type, boolToInt(u.Active), units, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "CPF já cadastrado"}
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// UpdateUser overwrites every column of u, password hash included.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	units, err := encodeUnits(u.Units)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE usuario SET nome = ?, cpf = ?, senha = ?, tipo = ?, status = ?, unidades = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.CPF, u.PasswordHash, u.Type, boolToInt(u.Active), units, formatTime(now), u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "CPF já cadastrado"}
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: fmt.Sprint(u.ID)}
	}
	u.UpdatedAt = now
	return nil
}

// DeleteUser removes the user and, by cascade, their access tokens.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM usuario WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: fmt.Sprint(id)}
	}
	return nil
}
