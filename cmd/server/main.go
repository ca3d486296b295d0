package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"invitegate/internal/events"
	kafkapublisher "invitegate/internal/events/publishers/kafka"
	"invitegate/internal/events/publishers/redisstream"
	jwttoken "invitegate/internal/jwt_token"
	"invitegate/internal/ledger"
	"invitegate/internal/ledger/handler"
	ledgermetrics "invitegate/internal/ledger/metrics"
	ledgerstore "invitegate/internal/ledger/store"
	"invitegate/internal/platform/config"
	"invitegate/internal/platform/httpserver"
	"invitegate/internal/platform/kafka"
	"invitegate/internal/platform/logger"
	httpmetrics "invitegate/internal/platform/metrics"
	"invitegate/internal/platform/postgres"
	"invitegate/internal/platform/redis"
	"invitegate/internal/signature"
	"invitegate/pkg/platform/circuit"
	"invitegate/pkg/platform/httputil"
	authmw "invitegate/pkg/platform/middleware/auth"
	"invitegate/pkg/platform/middleware/request"
	"invitegate/pkg/platform/middleware/requesttime"
)

const shutdownGrace = 10 * time.Second

// main wires the ledger, its persistence and event relay, and the HTTP API.
// Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.UsesDefaultSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set; using the development key")
	}

	schemes := make([]signature.Scheme, 0, len(cfg.ChallengeSchemes))
	for _, raw := range cfg.ChallengeSchemes {
		scheme, err := signature.ParseScheme(raw)
		if err != nil {
			return err
		}
		schemes = append(schemes, scheme)
	}
	verifier, err := signature.NewVerifier(cfg.Ecosystem, schemes...)
	if err != nil {
		return err
	}

	tx, outbox, health, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := ledger.New(tx, verifier,
		ledger.WithLogger(log),
		ledger.WithMetrics(ledgermetrics.New(registry)),
		ledger.WithInvitesPerMember(cfg.InvitesPerMember),
	)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	relay := events.NewRelay(outbox, publisher,
		events.WithInterval(cfg.Relay.Interval),
		events.WithBatchSize(cfg.Relay.BatchSize),
		events.WithLogger(log),
		events.WithMetrics(events.NewMetrics(registry)),
		events.WithBreaker(circuit.New("event-publisher")),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	router := newRouter(svc, cfg.Ecosystem, jwtService, health, registry, log)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting invitegate", "addr", cfg.Addr, "ecosystem", cfg.Ecosystem, "schemes", cfg.ChallengeSchemes)
		return httpserver.Run(gctx, srv, shutdownGrace)
	})
	g.Go(func() error {
		err := relay.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// buildStore selects postgres when DATABASE_URL is set and memory otherwise.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger) (ledger.TxRunner, events.Outbox, func(context.Context) error, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory ledger store")
		tx := ledgerstore.NewMemory(ledgerstore.WithMemoryTimeout(cfg.TxTimeout))
		return tx, tx.Outbox(), func(context.Context) error { return nil }, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, err
	}
	log.Info("using postgres ledger store")
	tx := ledgerstore.NewPostgres(db, ledgerstore.WithPostgresTimeout(cfg.TxTimeout))
	return tx, tx.Outbox(), db.PingContext, func() { _ = db.Close() }, nil
}

// buildPublisher prefers Kafka, then a Redis stream, then the structured log.
func buildPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (events.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewClient(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			return nil, nil, err
		}
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Info("publishing ledger events to kafka", "topic", cfg.Kafka.Topic)
		return kafkapublisher.New(client, cfg.Kafka.Topic), client.Close, nil
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		log.Info("publishing ledger events to redis stream", "stream", client.Stream(), "max_len", client.StreamMaxLen())
		pub := redisstream.New(client.Client, client.Stream(), redisstream.WithMaxLen(client.StreamMaxLen()))
		return pub, func() { _ = client.Close() }, nil
	}

	log.Info("publishing ledger events to log")
	return events.NewLogPublisher(log), func() {}, nil
}

func newRouter(
	svc *ledger.Service,
	ecosystem string,
	validator authmw.JWTValidator,
	health func(context.Context) error,
	registry *prometheus.Registry,
	log *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(httpmetrics.New(registry).Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(authmw.Authenticate(validator, log))
		handler.New(svc, ecosystem, log).Register(r)
	})
	return r
}
