package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var tracer = otel.Tracer("service")

// Default pagination over establishment summaries.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
)

// BuildFunc produces the summary of one establishment.
type BuildFunc func(ctx context.Context, est *domain.Establishment) (*domain.EstablishmentSummary, error)

// Aggregator runs a BuildFunc over establishments one at a time, isolating
// failures per establishment, and paginates the summaries.
type Aggregator struct {
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(metrics *observability.Metrics, logger *zap.Logger) *Aggregator {
	return &Aggregator{metrics: metrics, logger: logger}
}

// Aggregate builds a summary per establishment, sequentially. A failing or
// panicking build becomes an AggregationError and processing continues.
// Only cancellation of ctx aborts the whole run.
func (a *Aggregator) Aggregate(ctx context.Context, ests []domain.Establishment, build BuildFunc, page, perPage int) (*domain.AggregationResult, error) {
	ctx, span := tracer.Start(ctx, "Aggregator.Aggregate")
	defer span.End()
	span.SetAttributes(attribute.Int("establishments.count", len(ests)))

	summaries := make([]domain.EstablishmentSummary, 0, len(ests))
	var failures []domain.AggregationError

	for i := range ests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		est := &ests[i]
		start := time.Now()
		summary, err := a.safeBuild(ctx, est, build)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.logger.Warn("establishment aggregation failed",
				zap.Int64("establishment_id", est.ID),
				zap.String("establishment", est.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			a.metrics.IncrEstablishment(observability.OutcomeError)
			failures = append(failures, domain.AggregationError{
				EstablishmentID: est.ID,
				Message:         fmt.Sprintf("Erro ao processar o estabelecimento %s: %v", est.Name, err),
			})
			continue
		}

		a.metrics.IncrEstablishment(observability.OutcomeOK)
		a.logger.Debug("establishment aggregated",
			zap.Int64("establishment_id", est.ID),
			zap.Int("transactions", summary.Balance.Count),
			zap.Duration("elapsed", time.Since(start)),
		)
		summaries = append(summaries, *summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})

	data, meta := paginate(summaries, page, perPage)
	span.SetAttributes(attribute.Int("errors.count", len(failures)))

	return &domain.AggregationResult{Data: data, Meta: meta, Errors: failures}, nil
}

func (a *Aggregator) safeBuild(ctx context.Context, est *domain.Establishment, build BuildFunc) (summary *domain.EstablishmentSummary, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("establishment aggregation panicked",
				zap.Int64("establishment_id", est.ID),
				zap.Any("panic", rec),
			)
			summary, err = nil, fmt.Errorf("%v", rec)
		}
	}()

	summary, err = build(ctx, est)
	if err == nil && summary == nil {
		err = fmt.Errorf("resumo vazio")
	}
	return summary, err
}

// guarded converts a panic in fn into its error result.
func guarded(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%v", rec)
			}
		}()
		return fn()
	}
}

// paginate slices 1-indexed pages out of items; out-of-range pages are empty.
func paginate[T any](items []T, page, perPage int) ([]T, domain.PageMeta) {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}

	total := len(items)
	meta := domain.PageMeta{
		CurrentPage: page,
		TotalPages:  (total + perPage - 1) / perPage,
		TotalItems:  total,
	}

	from := (page - 1) * perPage
	if from >= total {
		return make([]T, 0), meta
	}
	to := from + perPage
	if to > total {
		to = total
	}
	return items[from:to], meta
}

// summarize sorts txs and computes the establishment totals.
func summarize(est *domain.Establishment, txs []domain.NormalizedTransaction, balance domain.Money) *domain.EstablishmentSummary {
	sortTransactions(txs)
	return &domain.EstablishmentSummary{
		ID:     est.ID,
		Name:   est.Name,
		Region: est.Region,
		TaxID:  est.TaxID,
		Payout: est.Payout,
		Balance: domain.SummaryBalance{
			Count:        len(txs),
			Total:        domain.SumMoney(txs, func(t domain.NormalizedTransaction) domain.Money { return t.Total }).Round2(),
			Fee:          domain.SumMoney(txs, func(t domain.NormalizedTransaction) domain.Money { return t.Fee }).Round2(),
			Balance:      balance,
			Transactions: txs,
		},
	}
}

// sortTransactions orders by payment date, then customer name in Brazilian
// Portuguese collation. Time of day is not a sort key.
func sortTransactions(txs []domain.NormalizedTransaction) {
	names := collate.New(language.BrazilianPortuguese)
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.PaymentDate != b.PaymentDate {
			return a.PaymentDate < b.PaymentDate
		}
		return names.CompareString(a.Customer, b.Customer) < 0
	})
}
