package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// AuthMiddleware validates Bearer tokens and injects the authenticated user into context.
func AuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Formato de token inválido")
				return
			}

			user, err := authSvc.ValidateToken(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the authenticated user, or nil.
func PrincipalFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(principalKey).(*domain.User)
	return u
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
