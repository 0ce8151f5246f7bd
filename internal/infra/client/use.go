package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// UseClient fetches paid charges and balances from the Use API and requests payouts.
type UseClient struct {
	httpClient *http.Client
	baseURL    string
	breakers   *resilience.Breakers
	cfg        resilience.Config
	opts       Options
}

// NewUseClient creates a new UseClient.
func NewUseClient(httpClient *http.Client, baseURL string, breakers *resilience.Breakers, cfg resilience.Config, opts Options) *UseClient {
	return &UseClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		breakers:   breakers,
		cfg:        cfg,
		opts:       opts,
	}
}

func (c *UseClient) endpoint(est *domain.Establishment, suffix string) string {
	return fmt.Sprintf("%s/credenciados/v1/%s/%s", c.baseURL, url.PathEscape(est.Identifier), suffix)
}

func (c *UseClient) headers(est *domain.Establishment) map[string]string {
	return map[string]string{
		"Content-Type":        "application/json",
		"X-Credenciado-Chave": est.Key,
	}
}

// FetchReceivables returns the charges paid between startDate and endDate (YYYY-MM-DD).
func (c *UseClient) FetchReceivables(ctx context.Context, est *domain.Establishment, startDate, endDate string) ([]domain.UseReceivable, error) {
	ctx, span := tracer.Start(ctx, "UseClient.FetchReceivables")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", est.ID))

	q := url.Values{}
	q.Set("data_inicio", startDate)
	q.Set("data_fim", endDate)
	target := c.endpoint(est, "cobrancas-pagas") + "?" + q.Encode()

	result, err := c.breakers.For(breakerKey(est)).Execute(func() (any, error) {
		var receivables []domain.UseReceivable
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			if c.opts.Metrics != nil {
				c.opts.Metrics.IncrFetchAttempt("use")
			}
			receivables = nil
			return call(ctx, c.httpClient, c.opts.CallTimeout, http.MethodPost, target, c.headers(est), &receivables)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		if receivables == nil {
			receivables = []domain.UseReceivable{}
		}
		return receivables, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, wrapProviderError("use", c.opts.Metrics, err)
	}

	receivables := result.([]domain.UseReceivable)
	span.SetAttributes(attribute.Int("receivables.count", len(receivables)))
	return receivables, nil
}

// FetchBalance returns saldo_atual as sent by the provider, without unit conversion.
func (c *UseClient) FetchBalance(ctx context.Context, est *domain.Establishment) (domain.Money, error) {
	ctx, span := tracer.Start(ctx, "UseClient.FetchBalance")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", est.ID))

	result, err := c.breakers.For(breakerKey(est)).Execute(func() (any, error) {
		var b domain.UseBalance
		if err := call(ctx, c.httpClient, c.opts.CallTimeout, http.MethodGet, c.endpoint(est, "saldo"), c.headers(est), &b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Money{}, wrapProviderError("use", c.opts.Metrics, err)
	}
	return result.(domain.UseBalance).CurrentBalance, nil
}

// RequestPayout asks Use to transfer the available balance. The response body is ignored.
func (c *UseClient) RequestPayout(ctx context.Context, est *domain.Establishment) error {
	ctx, span := tracer.Start(ctx, "UseClient.RequestPayout")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", est.ID))

	_, err := c.breakers.For(breakerKey(est)).Execute(func() (any, error) {
		return nil, call(ctx, c.httpClient, c.opts.CallTimeout, http.MethodPost, c.endpoint(est, "repasse"), c.headers(est), nil)
	})
	if err != nil {
		span.RecordError(err)
		return wrapProviderError("use", c.opts.Metrics, err)
	}
	return nil
}
