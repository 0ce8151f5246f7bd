package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"

	"go.uber.org/zap"
)

// StoreToken persists an issued access token.
func (s *Store) StoreToken(ctx context.Context, tok *domain.AccessToken) error {
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_token (id, usuario_id, hash, expires_at, created_at) VALUES (?,?,?,?,?)`,
		tok.ID, tok.UserID, tok.Hash, formatTime(tok.ExpiresAt), formatTime(tok.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert access token: %w", err)
	}
	return nil
}

// GetToken returns the token row or domain.ErrNotFound.
func (s *Store) GetToken(ctx context.Context, id string) (*domain.AccessToken, error) {
	var (
		tok                  domain.AccessToken
		expiresAt, createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, usuario_id, hash, expires_at, created_at FROM access_token WHERE id = ?", id,
	).Scan(&tok.ID, &tok.UserID, &tok.Hash, &expiresAt, &createdAt)
	if err != nil {
		return nil, notFoundOr(err, "access token", id)
	}
	tok.ExpiresAt = parseTime(expiresAt)
	tok.CreatedAt = parseTime(createdAt)
	return &tok, nil
}

// DeleteToken revokes one token. Deleting an unknown token is not an error.
func (s *Store) DeleteToken(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM access_token WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete access token: %w", err)
	}
	return nil
}

// DeleteExpiredTokens purges tokens whose expiry is before now.
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM access_token WHERE expires_at < ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("purge access tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("expired access tokens purged", zap.Int64("count", n))
	}
	return n, nil
}
