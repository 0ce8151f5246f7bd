// Package sqlstore is the SQLite persistence layer for establishments,
// terminals, users and access tokens.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("sqlstore")

// Fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements every persistence port on top of one *sql.DB.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) a SQLite database at dsn and ensures all tables
// exist. Pass ":memory:" for an in-memory database.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("dsn", dsn))
	return &Store{db: db, logger: logger}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS estabelecimento (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nome TEXT NOT NULL,
			cnpj TEXT NOT NULL,
			repasse INTEGER NOT NULL DEFAULT 0,
			tipo INTEGER NOT NULL,
			chave TEXT NOT NULL DEFAULT '',
			identificador TEXT NOT NULL DEFAULT '',
			seller TEXT NOT NULL DEFAULT '',
			regiao INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_estabelecimento_cnpj ON estabelecimento(cnpj, tipo, identificador)`,
		`CREATE INDEX IF NOT EXISTS idx_estabelecimento_nome ON estabelecimento(nome)`,

		`CREATE TABLE IF NOT EXISTS terminal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			serial TEXT NOT NULL UNIQUE,
			descricao TEXT,
			tipo INTEGER NOT NULL,
			identificador TEXT NOT NULL DEFAULT '',
			unidade_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (unidade_id) REFERENCES estabelecimento(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_terminal_identificador ON terminal(identificador)`,
		`CREATE INDEX IF NOT EXISTS idx_terminal_unidade ON terminal(unidade_id)`,

		`CREATE TABLE IF NOT EXISTS usuario (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nome TEXT NOT NULL,
			cpf TEXT NOT NULL UNIQUE,
			senha TEXT NOT NULL,
			tipo INTEGER NOT NULL,
			status INTEGER NOT NULL DEFAULT 1,
			unidades TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS access_token (
			id TEXT PRIMARY KEY,
			usuario_id INTEGER NOT NULL,
			hash TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (usuario_id) REFERENCES usuario(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_token_usuario ON access_token(usuario_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// withPragmas enables foreign keys on every pooled connection of a file database.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// ============================================================
// Scan / mapping helpers
// ============================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ErrNotFound{Resource: resource, ID: fmt.Sprint(id)}
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
