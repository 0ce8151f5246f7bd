// Package client holds the HTTP adapters for the payment providers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/infra/observability"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("client")

// Options are shared by both provider clients.
type Options struct {
	// CallTimeout bounds every single HTTP call; zero means no extra bound.
	CallTimeout time.Duration
	Metrics     *observability.Metrics
}

// call performs one HTTP request with its own timeout and decodes a JSON
// response into out (when out is non-nil).
func call(ctx context.Context, hc *http.Client, timeout time.Duration, method, url string, headers map[string]string, out any) error {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, method, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return &domain.ErrTimeout{Operation: method + " " + req.URL.Path}
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.ErrNotFound{Resource: "remote resource", ID: req.URL.Path}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned status %d: %s", method, req.URL.Path, resp.StatusCode, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// breakerKey scopes circuit breakers to one establishment.
func breakerKey(est *domain.Establishment) string {
	return strconv.FormatInt(est.ID, 10)
}

// wrapProviderError converts breaker states and raw failures into domain errors.
func wrapProviderError(service string, metrics *observability.Metrics, err error) error {
	if metrics != nil {
		metrics.IncrExternalError(service)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &domain.ErrCircuitOpen{Service: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
