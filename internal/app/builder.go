package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/record-sync/internal/api"
	"github.com/stacklok/record-sync/internal/app/storage"
	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/identity"
	"github.com/stacklok/record-sync/internal/status"
	"github.com/stacklok/record-sync/internal/store"
	pkgsync "github.com/stacklok/record-sync/internal/sync"
	"github.com/stacklok/record-sync/internal/sync/state"
	"github.com/stacklok/record-sync/internal/telemetry"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects everything NewSyncApp needs. Unset components are
// built from the configuration; tests inject their own.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides
	storageFactory    storage.Factory
	identity          store.IdentityProvider
	statusPersistence status.Persistence
	engineOptions     []pkgsync.Option

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// statusDir mirrors the status per owner when non-empty
	statusDir string

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.GetAPIAddress()
	}
	if cfg.statusDir == "" {
		cfg.statusDir = cfg.config.StatusDir
	}

	return cfg, nil
}

// NewSyncApp wires the stores, the engine and the control API together.
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	var cleanupNeeded = true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	components, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components.Engine)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app
	cleanupNeeded = false

	factory := cfg.storageFactory
	cancelFunc := func() {
		factory.Cleanup()
		cancel()
	}

	return &SyncApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address, overriding api.address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStatusDirectory mirrors every status change to dir, overriding statusDir
func WithStatusDirectory(dir string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.statusDir = dir
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithIdentityProvider replaces the static owner from identity.ownerId
func WithIdentityProvider(p store.IdentityProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.identity = p
		return nil
	}
}

// WithStatusPersistence allows injecting a custom status persistence (for testing)
func WithStatusPersistence(p status.Persistence) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.statusPersistence = p
		return nil
	}
}

// WithEngineOptions appends options passed to the sync engine
func WithEngineOptions(opts ...pkgsync.Option) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.engineOptions = append(cfg.engineOptions, opts...)
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for sync and HTTP spans
func WithTracerProvider(tp trace.TracerProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildSyncComponents creates both stores and the engine on top of them
func buildSyncComponents(ctx context.Context, b *syncAppConfig) (*AppComponents, error) {
	slog.Info("Initializing sync components")

	local, err := b.storageFactory.CreateLocalStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create local store: %w", err)
	}

	remote, err := b.storageFactory.CreateRemoteStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote store: %w", err)
	}

	if b.identity == nil {
		b.identity = identity.NewStaticProvider(b.config.Identity.OwnerID)
	}

	engineOpts := make([]pkgsync.Option, 0, len(b.engineOptions)+2)
	if b.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		engineOpts = append(engineOpts, pkgsync.WithMetrics(syncMetrics))
		slog.Info("Sync metrics enabled")
	}
	if b.tracerProvider != nil {
		engineOpts = append(engineOpts, pkgsync.WithTracer(b.tracerProvider.Tracer(telemetry.SyncTracerName)))
	}
	engineOpts = append(engineOpts, b.engineOptions...)

	engine := pkgsync.NewEngine(local, remote, b.identity, state.NewKVService(local), b.config.Sync, engineOpts...)

	if b.statusPersistence == nil && b.statusDir != "" {
		b.statusPersistence = status.NewFilePersistence(b.statusDir)
	}
	if b.statusPersistence != nil {
		provider := b.identity
		engine.AddStatusListener(status.PersistingListener(ctx, b.statusPersistence, func() string {
			owner, err := provider.CurrentOwnerID(ctx)
			if err != nil {
				return ""
			}
			return owner
		}))
		slog.Info("Status persistence enabled", "directory", b.statusDir)
	}

	slog.Info("Sync components initialized successfully",
		"local", b.config.Local.Type,
		"remote", b.config.Remote.Type,
		"table", b.config.Sync.GetTableName())

	return &AppComponents{
		Engine:   engine,
		Local:    local,
		Remote:   remote,
		Identity: b.identity,
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *syncAppConfig,
	engine *pkgsync.Engine,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	if b.meterProvider != nil || b.tracerProvider != nil {
		telemetryMiddleware, err := telemetry.HTTPMiddleware(b.tracerProvider, b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create telemetry middleware: %w", err)
		}
		// Prepended so every request is measured
		b.middlewares = append([]func(http.Handler) http.Handler{telemetryMiddleware}, b.middlewares...)
		slog.Info("HTTP telemetry middleware enabled")
	}

	router := api.NewServer(engine, api.WithMiddlewares(b.middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
