package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/observability"
	"github.com/meshfin/financeiro-api/internal/infra/resilience"
	"github.com/meshfin/financeiro-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	cardDigitsFallback = "0000"
	timeLayout         = "15:04"
)

// ReconciliationService builds per-establishment transaction reports for both
// provider families.
type ReconciliationService struct {
	zoop        port.ZoopGateway
	use         port.UseGateway
	estStore    port.EstablishmentStore
	termStore   port.TerminalStore
	eligibility *EligibilityResolver
	terminals   *TerminalResolver
	aggregator  *Aggregator
	bulkhead    *resilience.Bulkhead
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewReconciliationService wires the reconciliation flow.
func NewReconciliationService(
	zoop port.ZoopGateway,
	use port.UseGateway,
	estStore port.EstablishmentStore,
	termStore port.TerminalStore,
	terminals *TerminalResolver,
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		zoop:        zoop,
		use:         use,
		estStore:    estStore,
		termStore:   termStore,
		eligibility: NewEligibilityResolver(estStore),
		terminals:   terminals,
		aggregator:  NewAggregator(metrics, logger),
		bulkhead:    bulkhead,
		metrics:     metrics,
		logger:      logger,
	}
}

// MeshTransactions aggregates Zoop transactions of provider types 1 and 2.
func (s *ReconciliationService) MeshTransactions(ctx context.Context, req domain.AggregationRequest) (*domain.AggregationResult, error) {
	ctx, span := tracer.Start(ctx, "ReconciliationService.MeshTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("date.start", req.StartDate), attribute.String("date.end", req.EndDate))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("mesh_transactions", time.Since(start)) }()

	startDate, endDate, err := ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	from, to := zoopWindow(startDate, endDate)

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ests, err := s.eligibility.ResolveEligible(ctx, req.EstablishmentIDs, req.Principal, FamilyMesh)
	if err != nil {
		return nil, err
	}

	local, err := s.termStore.ListTerminals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list terminals: %w", err)
	}

	build := func(ctx context.Context, est *domain.Establishment) (*domain.EstablishmentSummary, error) {
		var (
			txs     []domain.ZoopTransaction
			balance domain.Money
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(guarded(func() error {
			var err error
			txs, err = s.zoop.FetchTransactions(gctx, est, from, to)
			return err
		}))
		g.Go(guarded(func() error {
			var err error
			balance, err = s.zoop.FetchBalance(gctx, est)
			return err
		}))
		if err := g.Wait(); err != nil {
			return nil, err
		}

		session := s.terminals.session(est, local)
		normalized := make([]domain.NormalizedTransaction, 0, len(txs))
		for _, tx := range txs {
			normalized = append(normalized, normalizeZoop(ctx, tx, session))
		}
		return summarize(est, normalized, balance), nil
	}

	s.logger.Info("mesh aggregation started",
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
		zap.Int("establishments", len(ests)),
	)
	return s.aggregator.Aggregate(ctx, ests, build, req.Page, req.PerPage)
}

// UseTransactions aggregates Use receivables of provider type 3.
func (s *ReconciliationService) UseTransactions(ctx context.Context, req domain.AggregationRequest) (*domain.AggregationResult, error) {
	ctx, span := tracer.Start(ctx, "ReconciliationService.UseTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("date.start", req.StartDate), attribute.String("date.end", req.EndDate))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("use_transactions", time.Since(start)) }()

	if _, _, err := ParseDateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ests, err := s.eligibility.ResolveEligible(ctx, req.EstablishmentIDs, req.Principal, FamilyUse)
	if err != nil {
		return nil, err
	}

	build := func(ctx context.Context, est *domain.Establishment) (*domain.EstablishmentSummary, error) {
		var (
			receivables []domain.UseReceivable
			balance     domain.Money
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(guarded(func() error {
			var err error
			receivables, err = s.use.FetchReceivables(gctx, est, req.StartDate, req.EndDate)
			return err
		}))
		g.Go(guarded(func() error {
			var err error
			balance, err = s.use.FetchBalance(gctx, est)
			return err
		}))
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return summarize(est, normalizeUse(receivables), balance), nil
	}

	s.logger.Info("use aggregation started",
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
		zap.Int("establishments", len(ests)),
	)
	return s.aggregator.Aggregate(ctx, ests, build, req.Page, req.PerPage)
}

// RequestPayout asks Use to transfer the establishment's balance.
func (s *ReconciliationService) RequestPayout(ctx context.Context, establishmentID int64) error {
	ctx, span := tracer.Start(ctx, "ReconciliationService.RequestPayout")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", establishmentID))

	est, err := s.estStore.GetEstablishment(ctx, establishmentID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return &domain.ErrNotFound{Resource: "establishment", ID: fmt.Sprint(establishmentID), Message: "Estabelecimento não encontrado"}
		}
		return fmt.Errorf("get establishment: %w", err)
	}
	if est.Type != domain.ProviderUse {
		return &domain.ErrValidation{Field: "tipo", Message: "Repasse disponível apenas para estabelecimentos do tipo 3"}
	}

	if err := s.use.RequestPayout(ctx, est); err != nil {
		return err
	}
	s.logger.Info("payout requested", zap.Int64("establishment_id", est.ID))
	return nil
}

func (s *ReconciliationService) acquire(ctx context.Context) (func(), error) {
	if s.bulkhead == nil {
		return func() {}, nil
	}
	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	return s.bulkhead.Release, nil
}

func normalizeZoop(ctx context.Context, tx domain.ZoopTransaction, session *terminalSession) domain.NormalizedTransaction {
	paidAt, _ := parseInstant(tx.UpdatedAt)

	out := domain.NormalizedTransaction{
		ID:            tx.ID,
		Status:        ClassifyZoopStatus(tx.Status),
		PaymentMethod: ClassifyZoopPayment(tx.PaymentType),
		FirstDigits:   cardDigitsFallback,
		LastDigits:    cardDigitsFallback,
		Terminal:      session.label(ctx, tx),
		Total:         tx.Amount,
		Fee:           tx.Fees,
		PaidAt:        paidAt,
	}
	if pm := tx.PaymentMethod; pm != nil {
		out.Customer = pm.HolderName
		if pm.First4Digits != "" {
			out.FirstDigits = pm.First4Digits
		}
		if pm.Last4Digits != "" {
			out.LastDigits = pm.Last4Digits
		}
	}
	if !paidAt.IsZero() {
		local := paidAt.In(businessZone)
		out.PaymentDate = local.Format(dateLayout)
		out.PaymentTime = local.Format(timeLayout)
	}
	return out
}

// normalizeUse flattens receivables into one transaction per payment.
func normalizeUse(receivables []domain.UseReceivable) []domain.NormalizedTransaction {
	out := make([]domain.NormalizedTransaction, 0, len(receivables))
	for _, r := range receivables {
		for _, p := range r.Payments {
			paidAt, _ := parseInstant(p.SettledAt)
			charge := r.ChargeAmount
			out = append(out, domain.NormalizedTransaction{
				Customer:      r.PayerName,
				ChargeAmount:  &charge,
				Order:         r.OrderNumber,
				Note:          r.Note,
				Origin:        r.ChargeType,
				PaymentMethod: ClassifyUsePayment(p.PaymentOrigin, r.ChargeType),
				DocumentDate:  calendarDate(r.DocumentDate),
				DueDate:       calendarDate(r.DueDate),
				PaymentDate:   calendarDate(p.SettledAt),
				Total:         p.AmountPaid,
				Fee:           p.MerchantFee,
				PaidAt:        paidAt,
			})
		}
	}
	return out
}
