package handler

import (
	"context"
	"net/http"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transações (mesh / use) e repasse
// ============================================================

type transactionsBody struct {
	Units []int64 `json:"unidades"`
}

type aggregateFunc func(ctx context.Context, req domain.AggregationRequest) (*domain.AggregationResult, error)

func transactionsHandler(route string, aggregate aggregateFunc, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), route)
		defer span.End()

		var body transactionsBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, invalidBodyMsg)
			return
		}
		page, perPage := parsePagination(r)

		req := domain.AggregationRequest{
			StartDate:        chi.URLParam(r, "startDate"),
			EndDate:          chi.URLParam(r, "endDate"),
			EstablishmentIDs: body.Units,
			Page:             page,
			PerPage:          perPage,
			Principal:        PrincipalFromContext(ctx),
		}
		span.SetAttributes(
			attribute.String("date.start", req.StartDate),
			attribute.String("date.end", req.EndDate),
			attribute.Int("page", page),
		)

		res, err := aggregate(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		meta := res.Meta
		writeJSON(w, http.StatusOK, domain.Envelope{
			Status:  true,
			Message: "Transações listadas com sucesso",
			Data:    res.Data,
			Meta:    &meta,
			Errors:  res.Errors,
		})
	}
}

func payoutHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/v1/use/repasse/{id}")
		defer span.End()

		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusNotFound, "Estabelecimento não encontrado")
			return
		}
		if err := svc.RequestPayout(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeData(w, http.StatusOK, "Repasse solicitado com sucesso", struct{}{})
	}
}
