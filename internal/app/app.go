package app

import (
	"context"
	"fmt"

	"monoova-gateway/internal/auth"
	"monoova-gateway/internal/circuitbreaker"
	"monoova-gateway/internal/common/cache"
	commonhttp "monoova-gateway/internal/common/http"
	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/config"
	"monoova-gateway/internal/crypto"
	"monoova-gateway/internal/handlers"
	"monoova-gateway/internal/keys"
	"monoova-gateway/internal/locks"
	"monoova-gateway/internal/models"
	"monoova-gateway/internal/oauth2"
	"monoova-gateway/internal/provider"
	"monoova-gateway/internal/ratelimit"
	"monoova-gateway/internal/redis"
	"monoova-gateway/internal/signature"
)

// App holds all the application dependencies
type App struct {
	Config    *config.Config
	Redis     *redis.Client
	Cache     cache.Cache
	Breakers  *circuitbreaker.Manager
	Provider  *provider.Client
	Keys      *keys.Fetcher
	Tokens    *oauth2.Manager
	Resolver  *auth.Resolver
	Verifier  *signature.Verifier
	Encryptor *crypto.FieldEncryptor
	Handlers  *handlers.Handlers
	Limiter   *ratelimit.Limiter
	Logger    logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	if err := app.initializeRedis(); err != nil {
		return nil, err
	}
	if err := app.initializeCache(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeProvider()
	app.Keys = keys.NewFetcher(app.Provider, app.Cache, keys.Config{
		CertificatePath: cfg.CertificatePath,
		PublicKeyPath:   cfg.PublicKeyPath,
		TTL:             cfg.KeyCacheTTL,
		SingleFlight:    cfg.SingleFlight,
	})

	if err := app.initializeTokens(); err != nil {
		app.Cleanup()
		return nil, err
	}

	// The provider needs the resolver and the resolver needs tokens from the provider.
	app.Resolver = auth.NewResolver(cfg, app.Tokens)
	app.Provider.SetAuthorizer(app.Resolver)

	app.Verifier = signature.NewVerifier(app.Keys, signature.DefaultConfig())

	if err := app.initializeEncryptor(); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeHandlers()

	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: float64(cfg.RateLimitRPS),
		BurstSize:         cfg.RateLimitBurst,
	})
	if err != nil {
		app.Cleanup()
		return nil, err
	}
	app.Limiter = limiter

	app.Logger.Info("Application initialized",
		logging.Field{Key: "cache_type", Value: cfg.CacheType},
		logging.Field{Key: "circuit_breaker", Value: cfg.CircuitBreakerEnabled},
		logging.Field{Key: "padding", Value: string(app.Encryptor.Padding())},
	)
	return app, nil
}

func (a *App) initializeRedis() error {
	if !a.Config.NeedsRedis() {
		return nil
	}

	client, err := redis.NewClient(&redis.Config{
		Address:  a.Config.RedisAddress,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
		PoolSize: a.Config.RedisPoolSize,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}

	a.Redis = client
	a.Logger.Info("Redis connected", logging.Field{Key: "address", Value: a.Config.RedisAddress})
	return nil
}

func (a *App) initializeCache() error {
	cacheConfig := cache.Config{
		Type:      cache.Type(a.Config.CacheType),
		TTL:       a.Config.KeyCacheTTL,
		KeyPrefix: a.Config.CacheKeyPrefix,
	}
	if a.Redis != nil {
		cacheConfig.RedisClient = a.Redis.GoRedis()
	}

	c, err := cache.New(cacheConfig)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	a.Cache = c
	return nil
}

func (a *App) initializeProvider() {
	var breakers *circuitbreaker.Manager
	if a.Config.CircuitBreakerEnabled {
		breakers = circuitbreaker.NewManager(circuitbreaker.DefaultConfig(), a.Logger)
		a.Breakers = breakers
	}

	a.Provider = provider.NewClient(provider.Config{
		BaseURLs: map[models.Environment]string{
			models.Sandbox: a.Config.SandboxBaseURL,
			models.Live:    a.Config.LiveBaseURL,
		},
		TokenPath: a.Config.TokenPath,
		Timeout:   a.Config.UpstreamTimeout,
		Breakers:  breakers,
	}, commonhttp.NewHTTPClientWithTimeout(a.Config.UpstreamTimeout))
}

func (a *App) initializeTokens() error {
	var sealer oauth2.Sealer
	if a.Config.CacheEncryptionKey != "" {
		enc, err := crypto.NewConfigEncryptor(a.Config.CacheEncryptionKey)
		if err != nil {
			return fmt.Errorf("creating token sealer: %w", err)
		}
		sealer = enc
	} else if a.Config.CacheType != string(cache.TypeLocal) {
		a.Logger.Warn("Bearer tokens are stored unsealed in a shared cache; set CACHE_ENCRYPTION_KEY")
	}

	tokenConfig := oauth2.Config{SingleFlight: a.Config.SingleFlight}

	// Replicas sharing a cache also share refreshes.
	if a.Redis != nil && a.Config.CacheType != string(cache.TypeLocal) {
		locker, err := locks.NewRedsyncLocker(a.Redis, a.Config.CacheKeyPrefix)
		if err != nil {
			return fmt.Errorf("creating refresh lock: %w", err)
		}
		tokenConfig.Locker = locker
		tokenConfig.LockTTL = 2 * a.Config.UpstreamTimeout
	}

	a.Tokens = oauth2.NewManager(a.Provider, a.Config, oauth2.NewCacheTokenStorage(a.Cache, sealer), tokenConfig)
	return nil
}

func (a *App) initializeEncryptor() error {
	padding, err := crypto.ParsePadding(a.Config.EncryptionPadding)
	if err != nil {
		return err
	}
	hash, err := crypto.ParseHash(a.Config.OAEPHash)
	if err != nil {
		return err
	}
	a.Encryptor = crypto.NewFieldEncryptor(a.Keys, padding, hash)
	return nil
}

func (a *App) initializeHandlers() {
	var sink handlers.EventSink = handlers.NewLogSink()
	if a.Config.WebhookPublishChannel != "" && a.Redis != nil {
		sink = redis.NewEventPublisher(a.Redis, a.Config.WebhookPublishChannel)
	}

	var breakers handlers.BreakerStates
	if a.Breakers != nil {
		breakers = a.Breakers
	}

	a.Handlers = handlers.New(sink, a.Encryptor, breakers)
	if a.Redis != nil {
		a.Handlers.AddHealthCheck("redis", a.Redis.Health)
	}
}

// Warm fetches the signing certificate and encryption key for every
// environment with a configured base URL. Failures are logged only.
func (a *App) Warm(ctx context.Context) {
	for _, env := range models.Environments {
		for _, kind := range []models.KeyKind{models.WebhookSigningCertificate, models.EncryptionPublicKey} {
			if _, err := a.Keys.Get(ctx, env, kind); err != nil {
				a.Logger.Warn("Key material warm-up failed",
					logging.Field{Key: "environment", Value: env.String()},
					logging.Field{Key: "kind", Value: kind.String()},
					logging.Field{Key: "error", Value: err.Error()},
				)
			}
		}
	}
}

// Cleanup releases external connections
func (a *App) Cleanup() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close redis", err)
		}
	}
}
