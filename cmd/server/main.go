package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Algernon72/PDF2PACS/internal/api"
	"github.com/Algernon72/PDF2PACS/internal/batch"
	"github.com/Algernon72/PDF2PACS/internal/config"
	"github.com/Algernon72/PDF2PACS/internal/render"
	"github.com/Algernon72/PDF2PACS/internal/storage"
	"github.com/Algernon72/PDF2PACS/internal/stow"
)

// initOtelProvider wires OTLP trace and metric exporters over gRPC and
// returns their combined shutdown function.
func initOtelProvider(ctx context.Context, serviceName, serviceVersion, otelEndpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTel resource: %w", err)
	}

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to OTLP endpoint %s: %w", otelEndpoint, err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(traceExporter)),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	shutdown := func(ctx context.Context) error {
		var shutdownErr error
		if err := tracerProvider.Shutdown(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("tracer provider shutdown: %w", err))
		}
		if err := meterProvider.Shutdown(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("meter provider shutdown: %w", err))
		}
		if err := conn.Close(); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("grpc connection close: %w", err))
		}
		return shutdownErr
	}
	return shutdown, nil
}

func main() {
	level := slog.LevelInfo
	if config.GetEnv("DEBUG", "false") == "true" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	stowTransport := stow.BaseTransport(cfg.Stow.VerifyTLS)
	httpClient := &http.Client{
		Transport: stowTransport,
		Timeout:   cfg.Stow.Timeout,
	}

	if cfg.OtelEndpoint != "" {
		otelShutdown, err := initOtelProvider(ctx, cfg.OtelServiceName, cfg.OtelServiceVersion, cfg.OtelEndpoint)
		if err != nil {
			slog.Error("Failed to initialize OTel provider", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				slog.Error("OTel shutdown failed", "error", err)
			}
		}()
		httpClient.Transport = otelhttp.NewTransport(stowTransport)
	}

	endpoint := stow.Endpoint{
		URL:       cfg.Stow.URL,
		Username:  cfg.Stow.Username,
		Password:  cfg.Stow.Password,
		VerifyTLS: cfg.Stow.VerifyTLS,
		Timeout:   cfg.Stow.Timeout,
	}
	stowClient := stow.NewClientWithHTTPClient(endpoint, httpClient)

	var journal storage.SendJournal
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store := storage.NewStore(pool)
		if err := store.Ping(ctx); err != nil {
			slog.Error("Database unreachable", "error", err)
			os.Exit(1)
		}
		journal = store
		slog.Info("Using Postgres send journal")
	} else {
		journal = storage.NewMemoryJournal()
		slog.Info("No DATABASE_URL set, using in-memory send journal")
	}

	var opener render.Opener
	if cfg.RenderingEnabled {
		opener = render.Open
	} else {
		slog.Info("PDF rendering disabled, sending encapsulated documents only")
	}

	defaults := batch.Defaults{
		StudyDescription:       cfg.Defaults.StudyDescription,
		SeriesDescription:      cfg.Defaults.SeriesDescription,
		ReferringPhysicianName: cfg.Defaults.ReferringPhysicianName,
		AccessionNumber:        cfg.Defaults.AccessionNumber,
		PatientIDPrefix:        cfg.Defaults.PatientIDPrefix,
	}
	orchestrator := batch.New(stowClient, defaults, opener, slog.Default())

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))
	if cfg.OtelEndpoint != "" {
		router.Use(otelgin.Middleware(cfg.OtelServiceName))
	}
	api.RegisterRoutes(router, orchestrator, journal)

	slog.Info("Starting server", "address", cfg.ListenAddress, "stowURL", cfg.Stow.URL)
	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exiting")
}
