package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const zoopTimeLayout = "2006-01-02T15:04:05.000Z"

// ZoopClient fetches transactions, balances and terminals from the Zoop API.
type ZoopClient struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	breakers   *resilience.Breakers
	cfg        resilience.Config
	opts       Options
}

// NewZoopClient creates a new ZoopClient.
func NewZoopClient(httpClient *http.Client, baseURL string, pageSize int, breakers *resilience.Breakers, cfg resilience.Config, opts Options) *ZoopClient {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &ZoopClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		pageSize:   pageSize,
		breakers:   breakers,
		cfg:        cfg,
		opts:       opts,
	}
}

func (c *ZoopClient) headers(est *domain.Establishment) map[string]string {
	return map[string]string{"Authorization": "Basic " + est.Key}
}

// FetchTransactions returns every succeeded or canceled transaction of the
// seller in [start, end], in server order. A failure on any page restarts the
// whole walk from page 1, up to the configured number of attempts.
func (c *ZoopClient) FetchTransactions(ctx context.Context, est *domain.Establishment, start, end time.Time) ([]domain.ZoopTransaction, error) {
	ctx, span := tracer.Start(ctx, "ZoopClient.FetchTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", est.ID))

	result, err := c.breakers.For(breakerKey(est)).Execute(func() (any, error) {
		var items []domain.ZoopTransaction
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			if c.opts.Metrics != nil {
				c.opts.Metrics.IncrFetchAttempt("zoop")
			}
			var fetchErr error
			items, fetchErr = c.fetchPages(ctx, est, start, end)
			return fetchErr
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return items, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, wrapProviderError("zoop", c.opts.Metrics, err)
	}

	items := result.([]domain.ZoopTransaction)
	span.SetAttributes(attribute.Int("transactions.count", len(items)))
	return items, nil
}

func (c *ZoopClient) fetchPages(ctx context.Context, est *domain.Establishment, start, end time.Time) ([]domain.ZoopTransaction, error) {
	endpoint := fmt.Sprintf("%s/v1/marketplaces/%s/sellers/%s/transactions",
		c.baseURL, url.PathEscape(est.Identifier), url.PathEscape(est.Seller))

	all := make([]domain.ZoopTransaction, 0)
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("page", strconv.Itoa(page))
		q.Set("offset", "0")
		q.Set("date_range[gte]", start.UTC().Format(zoopTimeLayout))
		q.Set("date_range[lte]", end.UTC().Format(zoopTimeLayout))
		q.Set("status", "succeeded,canceled")

		var p domain.ZoopTransactionPage
		if err := call(ctx, c.httpClient, c.opts.CallTimeout, http.MethodGet, endpoint+"?"+q.Encode(), c.headers(est), &p); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if p.Items == nil {
			break
		}
		all = append(all, p.Items...)
		if page >= p.TotalPages {
			break
		}
	}
	return all, nil
}

// FetchBalance returns the seller's current balance converted from cents and
// rounded to two decimals. A missing balance is zero.
func (c *ZoopClient) FetchBalance(ctx context.Context, est *domain.Establishment) (domain.Money, error) {
	ctx, span := tracer.Start(ctx, "ZoopClient.FetchBalance")
	defer span.End()
	span.SetAttributes(attribute.Int64("establishment.id", est.ID))

	endpoint := fmt.Sprintf("%s/v1/marketplaces/%s/sellers/%s/balances",
		c.baseURL, url.PathEscape(est.Identifier), url.PathEscape(est.Seller))

	result, err := c.breakers.For(breakerKey(est)).Execute(func() (any, error) {
		var b domain.ZoopBalance
		if err := call(ctx, c.httpClient, c.opts.CallTimeout, http.MethodGet, endpoint, c.headers(est), &b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Money{}, wrapProviderError("zoop", c.opts.Metrics, err)
	}

	b := result.(domain.ZoopBalance)
	if b.Items == nil || b.Items.CurrentBalance == nil {
		return domain.NewMoney(decimal.Zero), nil
	}
	return domain.NewMoney(b.Items.CurrentBalance.Div(decimal.NewFromInt(100)).Round(2)), nil
}

// GetTerminal looks a terminal up by its Zoop id. Single attempt, no breaker:
// callers treat any failure as "unknown terminal".
func (c *ZoopClient) GetTerminal(ctx context.Context, est *domain.Establishment, terminalID string) (*domain.RemoteTerminal, error) {
	ctx, span := tracer.Start(ctx, "ZoopClient.GetTerminal")
	defer span.End()
	span.SetAttributes(attribute.String("terminal.id", terminalID))

	endpoint := fmt.Sprintf("%s/v1/card-present/terminals/%s", c.baseURL, url.PathEscape(terminalID))

	var t domain.RemoteTerminal
	if err := call(ctx, c.httpClient, c.opts.CallTimeout, http.MethodGet, endpoint, c.headers(est), &t); err != nil {
		return nil, err
	}
	if t.SerialNumber == "" {
		return nil, &domain.ErrNotFound{Resource: "terminal", ID: terminalID}
	}
	return &t, nil
}

// SearchTerminal finds a terminal by serial number. The endpoint answers with
// either an object or a list; the first match wins.
func (c *ZoopClient) SearchTerminal(ctx context.Context, est *domain.Establishment, serial string) (*domain.RemoteTerminal, error) {
	ctx, span := tracer.Start(ctx, "ZoopClient.SearchTerminal")
	defer span.End()

	endpoint := fmt.Sprintf("%s/v1/card-present/terminals/search?%s",
		c.baseURL, url.Values{"serial_number": {serial}}.Encode())

	notFound := &domain.ErrNotFound{Resource: "terminal", ID: serial, Message: "Terminal não encontrado"}

	var raw json.RawMessage
	if err := call(ctx, c.httpClient, c.opts.CallTimeout, http.MethodGet, endpoint, c.headers(est), &raw); err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "zoop", Err: err}
	}

	var t domain.RemoteTerminal
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var list []domain.RemoteTerminal
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, &domain.ErrExternalService{Service: "zoop", Err: err}
		}
		if len(list) == 0 {
			return nil, notFound
		}
		t = list[0]
	} else if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return nil, &domain.ErrExternalService{Service: "zoop", Err: err}
		}
	}

	if t.ID == "" || t.SerialNumber == "" {
		return nil, notFound
	}
	return &t, nil
}
