package handler

import (
	"net/http"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Autenticação
// ============================================================

func loginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/v1/login")
		defer span.End()

		var req domain.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeData(w, http.StatusOK, "Login realizado com sucesso", resp)
	}
}

func logoutHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/v1/logout")
		defer span.End()

		if err := authSvc.Logout(ctx, bearerToken(r)); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeData(w, http.StatusOK, "Logout realizado com sucesso", struct{}{})
	}
}
