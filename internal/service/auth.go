package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/observability"
	"github.com/meshfin/financeiro-api/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	tokenIssuer     = "financeiro-api"
	tokenCacheName  = "token"
	invalidLoginMsg = "Credenciais inválidas"
	inactiveUserMsg = "Usuário inativo"
	invalidTokenMsg = "Token inválido ou expirado"
)

// AuthService issues and validates access tokens.
type AuthService struct {
	users     port.UserStore
	tokens    port.TokenStore
	ests      port.EstablishmentStore
	cache     port.Cache[*domain.User]
	metrics   *observability.Metrics
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates an auth service. Validated tokens are kept in cache
// keyed by token hash.
func NewAuthService(
	users port.UserStore,
	tokens port.TokenStore,
	ests port.EstablishmentStore,
	cache port.Cache[*domain.User],
	metrics *observability.Metrics,
	jwtSecret string,
	accessTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		ests:      ests,
		cache:     cache,
		metrics:   metrics,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// ============================================================
// Login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	cpf := domain.OnlyDigits(req.CPF)
	if cpf == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Message: "Informe cpf e senha"}
	}

	user, err := s.users.GetUserByCPF(ctx, cpf)
	if err != nil {
		if isNotFound(err) {
			return nil, &domain.ErrUnauthorized{Message: invalidLoginMsg}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	if !user.Active {
		s.logger.Warn("login: inactive user", zap.Int64("user_id", user.ID))
		return nil, &domain.ErrUnauthorized{Message: inactiveUserMsg}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login: wrong password", zap.Int64("user_id", user.ID))
		return nil, &domain.ErrUnauthorized{Message: invalidLoginMsg}
	}

	now := time.Now()
	jti := uuid.NewString()
	token, err := s.signAccessToken(user.ID, jti, now)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	if err := s.tokens.StoreToken(ctx, &domain.AccessToken{
		ID:        jti,
		UserID:    user.ID,
		Hash:      hashToken(token),
		ExpiresAt: now.Add(s.accessTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}

	units, err := s.visibleUnits(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))

	return &domain.LoginResponse{
		ID:    user.ID,
		Name:  user.Name,
		Type:  user.Type,
		Token: token,
		Units: units,
	}, nil
}

// visibleUnits lists the establishments shown at login: the user's own list,
// every establishment for a never-restricted user, or the type 1
// establishments when the list is empty.
func (s *AuthService) visibleUnits(ctx context.Context, user *domain.User) ([]domain.UnitRef, error) {
	var filter domain.EstablishmentFilter
	switch {
	case user.Units == nil:
	case len(user.Units) == 0:
		filter.Types = []domain.ProviderType{domain.ProviderZoop}
	default:
		filter.IDs = user.Units
	}

	ests, err := s.ests.ListEstablishments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	units := make([]domain.UnitRef, 0, len(ests))
	for _, e := range ests {
		units = append(units, domain.UnitRef{ID: e.ID, Name: e.Name, Type: e.Type, Region: e.Region})
	}
	return units, nil
}

// ============================================================
// Logout
// ============================================================

func (s *AuthService) Logout(ctx context.Context, raw string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	claims, err := s.parse(raw)
	if err != nil {
		return err
	}
	s.cache.Delete(hashToken(raw))
	if err := s.tokens.DeleteToken(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete access token: %w", err)
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.Subject))
	return nil
}

// ============================================================
// Token validation
// ============================================================

// ValidateToken resolves a bearer token to its user. The token must carry a
// valid signature, be persisted with a matching hash and be unexpired, and the
// user must still be active.
func (s *AuthService) ValidateToken(ctx context.Context, raw string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ValidateToken")
	defer span.End()

	hash := hashToken(raw)
	if user, ok := s.cache.Get(hash); ok {
		s.metrics.IncrCacheHit(tokenCacheName)
		return user, nil
	}
	s.metrics.IncrCacheMiss(tokenCacheName)

	claims, err := s.parse(raw)
	if err != nil {
		return nil, err
	}

	stored, err := s.tokens.GetToken(ctx, claims.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, &domain.ErrUnauthorized{Message: invalidTokenMsg}
		}
		return nil, fmt.Errorf("get access token: %w", err)
	}
	if stored.Hash != hash || !stored.ExpiresAt.After(time.Now()) {
		return nil, &domain.ErrUnauthorized{Message: invalidTokenMsg}
	}

	user, err := s.users.GetUser(ctx, stored.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, &domain.ErrUnauthorized{Message: invalidTokenMsg}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.Active {
		return nil, &domain.ErrUnauthorized{Message: inactiveUserMsg}
	}

	s.cache.SetUntil(hash, user, stored.ExpiresAt)
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return user, nil
}

// PurgeExpired removes persisted tokens that are past their expiry.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.PurgeExpired")
	defer span.End()

	return s.tokens.DeleteExpiredTokens(ctx, time.Now())
}

// ============================================================
// Internal JWT helpers
// ============================================================

func (s *AuthService) signAccessToken(userID int64, jti string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) parse(raw string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: invalidTokenMsg}
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, &domain.ErrUnauthorized{Message: invalidTokenMsg}
	}
	return claims, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
