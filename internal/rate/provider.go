// Package rate fetches the USD to local currency conversion rate from an
// external quote service.
package rate

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultURL and DefaultFallback mirror the Config defaults.
	DefaultURL      = "https://economia.awesomeapi.com.br/json/last/USD-BRL"
	DefaultFallback = "1.00"

	maxPayload = 1 << 20
)

// Config controls where the rate is fetched from and what is used when the
// fetch fails.
type Config struct {
	URL      string        `default:"https://economia.awesomeapi.com.br/json/last/USD-BRL" usage:"Rate quote endpoint"`
	Pair     string        `default:"USDBRL" usage:"Currency pair key in the quote payload"`
	Fallback string        `default:"1.00" usage:"Rate used when the quote cannot be fetched"`
	Timeout  time.Duration `default:"3s" usage:"Quote request timeout"`
}

// Provider returns the current rate. It never fails: any fetch or parse
// problem yields the configured fallback.
type Provider struct {
	cfg      Config
	fallback decimal.Decimal
	client   *http.Client
	fetches  metric.Int64Counter
}

// NewProvider validates cfg and creates a Provider whose outbound requests are
// traced and measured.
func NewProvider(cfg Config, tp trace.TracerProvider, mp metric.MeterProvider) (*Provider, error) {
	fallback, err := decimal.NewFromString(cfg.Fallback)
	if err != nil {
		return nil, errors.Wrap(err, "parse fallback rate")
	}
	if !fallback.IsPositive() {
		return nil, errors.Errorf("fallback rate must be positive, got %s", cfg.Fallback)
	}
	if err := checkRange(fallback); err != nil {
		return nil, errors.Wrap(err, "fallback rate")
	}
	if cfg.URL == "" {
		return nil, errors.New("rate URL is required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.Errorf("rate timeout must be positive, got %s", cfg.Timeout)
	}

	fetches, err := mp.Meter("github.com/xenking/orders-api/internal/rate").Int64Counter(
		"orders.rate.fetches",
		metric.WithDescription("Rate lookups by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}

	return &Provider{
		cfg:      cfg,
		fallback: fallback,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
		},
		fetches: fetches,
	}, nil
}

// Fallback returns the rate used when the quote service is unavailable.
func (p *Provider) Fallback() decimal.Decimal {
	return p.fallback
}

// Rate fetches the current bid. On any failure it logs the cause and returns
// the fallback rate.
func (p *Provider) Rate(ctx context.Context) decimal.Decimal {
	bid, err := p.fetch(ctx)
	if err != nil {
		p.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "fallback")))
		zctx.From(ctx).Warn("Rate fetch failed, using fallback",
			zap.String("url", p.cfg.URL),
			zap.Stringer("fallback", p.fallback),
			zap.Error(err),
		)
		return p.fallback
	}
	p.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return bid
}

func (p *Provider) fetch(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, http.NoBody)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decimal.Zero, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read body")
	}
	return ParseBid(data, p.cfg.Pair)
}
