// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
)

// ZoopGateway talks to the card/PIX processor used by provider types 1 and 2.
type ZoopGateway interface {
	FetchTransactions(ctx context.Context, est *domain.Establishment, start, end time.Time) ([]domain.ZoopTransaction, error)
	FetchBalance(ctx context.Context, est *domain.Establishment) (domain.Money, error)
}

// TerminalLookup resolves a remote terminal by its processor id.
type TerminalLookup interface {
	GetTerminal(ctx context.Context, est *domain.Establishment, terminalID string) (*domain.RemoteTerminal, error)
}

// TerminalSearcher finds a remote terminal by serial number.
type TerminalSearcher interface {
	SearchTerminal(ctx context.Context, est *domain.Establishment, serial string) (*domain.RemoteTerminal, error)
}

// UseGateway talks to the boleto/PIX processor used by provider type 3.
type UseGateway interface {
	FetchReceivables(ctx context.Context, est *domain.Establishment, startDate, endDate string) ([]domain.UseReceivable, error)
	FetchBalance(ctx context.Context, est *domain.Establishment) (domain.Money, error)
	RequestPayout(ctx context.Context, est *domain.Establishment) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	SetUntil(key string, value T, until time.Time)
	Delete(key string)
}

// EstablishmentStore persists establishments.
// List results are ordered by name ascending.
type EstablishmentStore interface {
	ListEstablishments(ctx context.Context, filter domain.EstablishmentFilter) ([]domain.Establishment, error)
	GetEstablishment(ctx context.Context, id int64) (*domain.Establishment, error)
	CreateEstablishment(ctx context.Context, est *domain.Establishment) error
	UpdateEstablishment(ctx context.Context, est *domain.Establishment) error
	DeleteEstablishment(ctx context.Context, id int64) error
	// TaxIDTaken reports whether another establishment (id != exceptID) already
	// uses taxID under the same provider type and account identifier.
	TaxIDTaken(ctx context.Context, taxID string, typ domain.ProviderType, identifier string, exceptID int64) (bool, error)
}

// TerminalStore persists card terminals.
type TerminalStore interface {
	ListTerminals(ctx context.Context) ([]domain.Terminal, error)
	ListTerminalsByEstablishment(ctx context.Context, establishmentID int64) ([]domain.Terminal, error)
	GetTerminal(ctx context.Context, id int64) (*domain.Terminal, error)
	SerialTaken(ctx context.Context, serial string, exceptID int64) (bool, error)
	CreateTerminal(ctx context.Context, t *domain.Terminal) error
	UpdateTerminal(ctx context.Context, t *domain.Terminal) error
	DeleteTerminal(ctx context.Context, id int64) error
}

// UserStore persists users.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByCPF(ctx context.Context, cpf string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
	DeleteUser(ctx context.Context, id int64) error
}

// TokenStore persists issued access tokens by hash.
type TokenStore interface {
	StoreToken(ctx context.Context, tok *domain.AccessToken) error
	GetToken(ctx context.Context, id string) (*domain.AccessToken, error)
	DeleteToken(ctx context.Context, id string) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
