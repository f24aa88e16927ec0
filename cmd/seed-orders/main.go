package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/orders-api/internal/domain/order"
	"github.com/xenking/orders-api/internal/rate"
	"github.com/xenking/orders-api/internal/storage/postgres"
)

const progressEvery = 1000

type options struct {
	databaseURL string
	file        string
	workers     int
	rateURL     string
	fallback    string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.file, "file", "db/seed/orders.json", "orders file: JSON array or NDJSON, optionally .gz")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent order inserts")
	flag.StringVar(&opts.rateURL, "rate-url", rate.DefaultURL, "rate quote endpoint (or EXTERNAL_RATE_URL env)")
	flag.StringVar(&opts.fallback, "fallback-rate", rate.DefaultFallback, "rate used when the quote fails (or FALLBACK_USD_BRL env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if v := os.Getenv("EXTERNAL_RATE_URL"); v != "" && opts.rateURL == rate.DefaultURL {
		opts.rateURL = v
	}
	if v := os.Getenv("FALLBACK_USD_BRL"); v != "" && opts.fallback == rate.DefaultFallback {
		opts.fallback = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
}

// onceRate serves a single quote for the whole run.
type onceRate decimal.Decimal

func (r onceRate) Rate(context.Context) decimal.Decimal { return decimal.Decimal(r) }

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	provider, err := rate.NewProvider(rate.Config{
		URL:      opts.rateURL,
		Pair:     "USDBRL",
		Fallback: opts.fallback,
		Timeout:  3 * time.Second,
	}, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		return errors.Wrap(err, "create rate provider")
	}
	current := provider.Rate(ctx)
	lg.Info("Using rate", zap.Stringer("rate", current))

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := order.NewService(postgres.NewStore(pool), onceRate(current), tracenoop.NewTracerProvider())

	in, closeInput, err := openInput(opts.file)
	if err != nil {
		return err
	}
	defer closeInput()

	var created, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.workers, 1))

	var seq int64
	readErr := readRecords(in, func(rec record) error {
		seq++
		n := seq
		if rec.Bad != nil {
			skipped.Add(1)
			lg.Warn("Skipping record", zap.Int64("record", n), zap.Error(rec.Bad))
			return nil
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			o, err := svc.CreateOrder(gctx, rec.Request)
			switch {
			case order.IsValidation(err):
				skipped.Add(1)
				lg.Warn("Skipping record", zap.Int64("record", n), zap.Error(err))
				return nil
			case err != nil:
				return errors.Wrapf(err, "record %d", n)
			}
			if c := created.Add(1); c%progressEvery == 0 {
				lg.Info("Progress", zap.Int64("created", c), zap.Int64("last_order_id", o.ID))
			}
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "create orders")
	}
	if readErr != nil {
		return errors.Wrapf(readErr, "read %s", opts.file)
	}

	lg.Info("Seed summary",
		zap.Int64("created", created.Load()),
		zap.Int64("skipped", skipped.Load()),
	)
	return nil
}

// openInput opens path, transparently decompressing .gz files.
func openInput(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, func() { _ = f.Close() }, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return gz, func() {
		_ = gz.Close()
		_ = f.Close()
	}, nil
}
