package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/endpoints"
	"github.com/dropDatabas3/gatejohn/internal/events"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/secrets"
	"github.com/dropDatabas3/gatejohn/internal/store"
	"github.com/dropDatabas3/gatejohn/internal/store/pg"
	"github.com/dropDatabas3/gatejohn/internal/tokens"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

func main() {
	root := &cobra.Command{
		Use:           "gatejohn",
		Short:         "OAuth2/OIDC token service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", os.Getenv("GATEJOHN_CONFIG"), "path to YAML config")
	root.AddCommand(serve)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gatejohn:", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.Logging.Env,
		Level:       cfg.Logging.Level,
		ServiceName: "gatejohn",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	clk := clock.System{}

	keystore, err := keys.NewKeystore()
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink := events.MultiSink{events.LoggerSink{}, events.NewPrometheusSink(registry)}

	// Config stores: clients, resources, users.
	var (
		clients   store.ClientStore
		resources store.ResourceStore
		users     store.UserStore
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		clients = pg.NewClientStore(pool)
		resources = pg.NewResourceStore(pool)
		users = pg.NewUserStore(pool)
		log.Info("using postgres config stores")
	default:
		clients = store.NewInMemoryClientStore(cfg.Clients)
		resources = store.NewInMemoryResourceStore(cfg.IdentityResources, cfg.ApiResources)
		users = store.NewInMemoryUserStore(cfg.Users)
		log.Info("using in-memory config stores", logger.Count(len(cfg.Clients)))
	}
	profile := store.NewUserProfileService(users)

	// Grant stores: codes, tokens, device codes, caches.
	var (
		codes     store.AuthorizationCodeStore
		refreshes store.RefreshTokenStore
		refs      store.ReferenceTokenStore
		devices   store.DeviceCodeStore
		replay    store.ReplayCache
		throttle  store.ThrottleCache
	)
	switch cfg.Grants.Backend {
	case "redis":
		rdb, err := store.NewRedisClient(store.RedisConfig{
			Addr:     cfg.Grants.Redis.Addr,
			Password: cfg.Grants.Redis.Password,
			DB:       cfg.Grants.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		prefix := cfg.Grants.Redis.Prefix
		codes = store.NewRedisAuthorizationCodeStore(rdb, prefix, clk)
		refreshes = store.NewRedisRefreshTokenStore(rdb, prefix, clk)
		refs = store.NewRedisReferenceTokenStore(rdb, prefix, clk)
		devices = store.NewRedisDeviceCodeStore(rdb, prefix, clk)
		replay = store.NewRedisReplayCache(rdb, prefix, clk)
		throttle = store.NewRedisThrottleCache(rdb, prefix, clk)
		log.Info("using redis grant stores")
	default:
		codes = store.NewMemoryAuthorizationCodeStore(clk)
		refreshes = store.NewMemoryRefreshTokenStore(clk)
		refs = store.NewMemoryReferenceTokenStore(clk)
		devices = store.NewMemoryDeviceCodeStore(clk)
		replay = store.NewMemoryReplayCache(clk)
		throttle = store.NewMemoryThrottleCache()
		log.Info("using in-memory grant stores")
	}

	// Secret plumbing.
	secretParser := secrets.NewSecretParser(
		secrets.NewBasicAuthenticationParser(cfg.InputLengths),
		secrets.NewPostBodyParser(cfg.InputLengths),
		secrets.NewJWTBearerParser(cfg.InputLengths),
		secrets.NewMutualTLSParser(cfg.InputLengths),
	)
	secretValidator := secrets.NewSecretValidator(clk,
		secrets.PlainTextSharedSecretValidator{},
		secrets.HashedSharedSecretValidator{},
		secrets.NewPrivateKeyJWTValidator(cfg.Issuer+"/connect/token", replay, clk),
		secrets.X509NameValidator{},
		secrets.X509ThumbprintValidator{},
	)

	// Validators.
	resourceValidator := validation.NewResourceValidator(resources, nil)
	clientValidator := validation.NewClientSecretValidator(clients, secretParser, secretValidator, sink)
	apiValidator := validation.NewApiSecretValidator(resources, secretParser, secretValidator, sink)
	requestObjects := validation.NewRequestObjectValidator(cfg.RequestObject, nil, clk)

	authorizeValidator := validation.NewAuthorizeRequestValidator(validation.AuthorizeRequestValidatorDeps{
		Clients:       clients,
		Resources:     resourceValidator,
		RequestObject: requestObjects,
		Options:       &cfg,
	})
	deviceValidator := validation.NewDeviceCodeValidator(devices, throttle, profile, sink, clk,
		time.Duration(cfg.DeviceFlow.Interval)*time.Second)
	tokenValidator := validation.NewTokenRequestValidator(validation.TokenRequestValidatorDeps{
		Codes:         codes,
		RefreshTokens: refreshes,
		Resources:     resourceValidator,
		Profile:       profile,
		DeviceCodes:   deviceValidator,
		ResourceOwner: validation.NewBcryptResourceOwnerValidator(users, sink),
		Sink:          sink,
		Clock:         clk,
		Options:       &cfg,
	})
	inboundTokens := validation.NewTokenValidator(validation.TokenValidatorDeps{
		Keystore:        keystore,
		Clients:         clients,
		ReferenceTokens: refs,
		Profile:         profile,
		Clock:           clk,
		Options:         &cfg,
	})
	introspection := validation.NewIntrospectionRequestValidator(inboundTokens, &cfg)
	revocation := validation.NewRevocationRequestValidator(&cfg)
	endSession := validation.NewEndSessionRequestValidator(inboundTokens, nil, &cfg)

	issuer := tokens.NewService(tokens.Deps{
		Keystore:           keystore,
		AuthorizationCodes: codes,
		RefreshTokens:      refreshes,
		ReferenceTokens:    refs,
		DeviceCodes:        devices,
		Clock:              clk,
		Options:            &cfg,
	})

	router := endpoints.NewRouter(endpoints.RouterDeps{
		Options:       &cfg,
		Metrics:       registry,
		Authorize:     endpoints.NewAuthorizeHandler(authorizeValidator, issuer, nil),
		Token:         endpoints.NewTokenHandler(clientValidator, tokenValidator, issuer),
		Introspection: endpoints.NewIntrospectionHandler(apiValidator, introspection),
		Revocation:    endpoints.NewRevocationHandler(clientValidator, revocation, refreshes, refs),
		Device:        endpoints.NewDeviceAuthorizationHandler(clientValidator, resourceValidator, issuer),
		EndSession:    endpoints.NewEndSessionHandler(endSession, nil),
		Discovery:     endpoints.NewDiscoveryHandler(keystore, &cfg),
	})

	apiServer := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", cfg.Server.Addr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("metrics server listening", logger.String("addr", cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return apiServer.Shutdown(shutdownCtx)
	})

	log.Info("gatejohn started", logger.String("issuer", cfg.Issuer))
	return g.Wait()
}
