package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"manasik/internal/audit"
	jwttoken "manasik/internal/jwt_token"
	"manasik/internal/platform/config"
	"manasik/internal/platform/httpserver"
	"manasik/internal/platform/logger"
	"manasik/internal/platform/metrics"
	platformredis "manasik/internal/platform/redis"
	"manasik/internal/registration/cache"
	"manasik/internal/registration/handler"
	"manasik/internal/registration/service"
	registrationstore "manasik/internal/registration/store/registration"
	stepstore "manasik/internal/registration/store/step"
	"manasik/pkg/platform/middleware/admin"
	"manasik/pkg/platform/middleware/latency"
	"manasik/pkg/platform/middleware/metadata"
	"manasik/pkg/platform/middleware/request"
	"manasik/pkg/platform/middleware/requesttime"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var steps service.StepStore
	var registrations service.RegistrationStore
	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("failed to reach postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		steps = stepstore.NewPostgres(db)
		registrations = registrationstore.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		steps = stepstore.NewInMemory()
		registrations = registrationstore.NewInMemory()
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditStore := audit.NewInMemoryStore()
	auditPublisher := audit.NewPublisher(auditStore, cfg.AuditBufferSize)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditPublisher),
	}
	if redisClient != nil {
		opts = append(opts, service.WithCatalogCache(
			cache.NewRedis(redisClient.Client, cfg.CatalogCacheTTL)))
	}
	registration := service.New(steps, registrations, opts...)

	if cfg.SeedBootstrapStep {
		if err := registration.SeedBootstrapStep(context.Background()); err != nil {
			log.Error("failed to seed bootstrap step", "error", err)
			os.Exit(1)
		}
	}

	jwtValidator := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	adminCred := admin.Credential{Token: cfg.AdminToken, TokenHash: cfg.AdminTokenHash}
	h := handler.New(registration, log, m, jwtValidator, adminCred)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.StripSlashes)
	router.Use(chimiddleware.Timeout(30 * time.Second))
	router.Use(request.ID)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(latency.Middleware(m.RequestDuration))

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(db, redisClient))
	h.Register(router)
	h.RegisterAdmin(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		worker := audit.NewWorker(sink, auditPublisher.Inbox(), log)
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("audit forwarder enabled", "topic", cfg.AuditTopic)
	}

	group.Go(func() error {
		log.Info("starting manasik", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
