package handler

import (
	"net/http"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Estabelecimentos
// ============================================================

func listEstablishmentsHandler(svc *service.EstablishmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/v1/estabelecimentos")
		defer span.End()

		ids, err := queryInts(r, "ids")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		types, err := queryInts(r, "tipos")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		filter := domain.EstablishmentFilter{IDs: ids}
		for _, t := range types {
			filter.Types = append(filter.Types, domain.ProviderType(t))
		}

		ests, err := svc.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Estabelecimentos listados com sucesso", ests)
	}
}

func getEstablishmentHandler(svc *service.EstablishmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/v1/estabelecimentos/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		span.SetAttributes(attribute.Int64("establishment.id", id))

		est, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Estabelecimento encontrado", est)
	}
}

func createEstablishmentHandler(svc *service.EstablishmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/v1/estabelecimentos")
		defer span.End()

		var in domain.EstablishmentInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}

		est, err := svc.Create(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusCreated, "Estabelecimento criado com sucesso", est)
	}
}

func updateEstablishmentHandler(svc *service.EstablishmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/v1/estabelecimentos/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		var in domain.EstablishmentInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}

		est, err := svc.Update(ctx, id, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Estabelecimento atualizado com sucesso", est)
	}
}

func deleteEstablishmentHandler(svc *service.EstablishmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/v1/estabelecimentos/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		if err := svc.Delete(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Estabelecimento removido com sucesso", struct{}{})
	}
}

// ============================================================
// Terminais
// ============================================================

func listTerminalsHandler(svc *service.TerminalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/v1/terminais")
		defer span.End()

		units, err := queryInts(r, "unidade_id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		var estID int64
		if len(units) > 0 {
			estID = units[0]
		}

		terms, err := svc.List(ctx, estID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Terminais listados com sucesso", terms)
	}
}

func getTerminalHandler(svc *service.TerminalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/v1/terminais/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		term, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Terminal encontrado", term)
	}
}

func createTerminalHandler(svc *service.TerminalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/v1/terminais")
		defer span.End()

		var in domain.TerminalInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}
		term, err := svc.Create(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusCreated, "Terminal criado com sucesso", term)
	}
}

func updateTerminalHandler(svc *service.TerminalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/v1/terminais/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		var in domain.TerminalInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}
		term, err := svc.Update(ctx, id, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Terminal atualizado com sucesso", term)
	}
}

func deleteTerminalHandler(svc *service.TerminalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/v1/terminais/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		if err := svc.Delete(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Terminal removido com sucesso", struct{}{})
	}
}

// ============================================================
// Usuários
// ============================================================

func listUsersHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/v1/usuarios")
		defer span.End()

		users, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Usuários listados com sucesso", users)
	}
}

func getUserHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/v1/usuarios/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		u, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Usuário encontrado", u)
	}
}

func createUserHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/v1/usuarios")
		defer span.End()

		var in domain.UserInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}
		u, err := svc.Create(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusCreated, "Usuário criado com sucesso", u)
	}
}

func updateUserHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/v1/usuarios/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		var in domain.UserInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}
		u, err := svc.Update(ctx, id, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Usuário atualizado com sucesso", u)
	}
}

func deleteUserHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/v1/usuarios/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, invalidIDMsg)
			return
		}
		if err := svc.Delete(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Usuário removido com sucesso", struct{}{})
	}
}
