// pkg/serverfx/serverfx.go
package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"

	"github.com/joeydtaylor/steeze-federate/pkg/audit"
	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
	"github.com/joeydtaylor/steeze-federate/pkg/config"
	"github.com/joeydtaylor/steeze-federate/pkg/federation"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-federate/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-federate/pkg/revocation"
	"github.com/joeydtaylor/steeze-federate/pkg/session"
	"github.com/joeydtaylor/steeze-federate/pkg/sessioncache"
	"github.com/joeydtaylor/steeze-federate/pkg/transport/httpx"
)

// Options allow per-deployment env keys/defaults without code duplication.
type Options struct {
	Service       string // for logs only
	ConfigEnv     string // e.g. "FEDERATE_CONFIG"
	DefaultConfig string // e.g. "federate.toml"
	ListenAddrEnv string // e.g. "SERVER_LISTEN_ADDRESS"
	DefaultListen string // e.g. ":4000"
	TLSCertEnv    string // e.g. "SSL_SERVER_CERTIFICATE"
	TLSKeyEnv     string // e.g. "SSL_SERVER_KEY"
}

// ---- Providers ----

func provideConfig(opts Options) (config.Config, error) {
	return config.Load(envOr(opts.ConfigEnv, opts.DefaultConfig))
}

func provideAWSConfig() (awsv2.Config, error) {
	return awsconfig.LoadDefaultConfig(context.Background())
}

func provideResolver(cfg config.Config, awsCfg awsv2.Config, log *zap.Logger) *catalog.Resolver {
	store := catalog.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Catalog.Bucket, cfg.Catalog.Key)
	return catalog.NewResolver(store, time.Duration(cfg.Catalog.RefreshTTLSeconds)*time.Second, log)
}

func provideCache(lc fx.Lifecycle, cfg config.Config) (*sessioncache.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := sessioncache.New(ctx, sessioncache.Config{
		Addr:         cfg.Cache.Addr,
		Username:     cfg.Cache.Username,
		Password:     cfg.Cache.Password,
		DB:           cfg.Cache.DB,
		KeyPrefix:    cfg.Cache.KeyPrefix,
		DialTimeout:  time.Duration(cfg.Cache.DialTimeoutMS) * time.Millisecond,
		ReadTimeout:  time.Duration(cfg.Cache.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Cache.WriteTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

func provideService(
	cfg config.Config,
	awsCfg awsv2.Config,
	resolver *catalog.Resolver,
	cache *sessioncache.Store,
	emitter audit.Emitter,
	log *zap.Logger,
) *session.Service {
	broker := federation.NewSTSBroker(
		sts.NewFromConfig(awsCfg),
		cfg.Federation.RoleArn,
		cfg.Federation.SessionDurationSeconds,
	)
	minter := federation.NewMinter(
		resolver,
		federation.Allowlist(cfg.Federation.AllowedEndpoints),
		cfg.Federation.SigningEndpoint,
		cfg.Federation.Issuer,
		cfg.Federation.DestinationBase,
		cfg.Federation.SessionDurationSeconds,
	)
	return session.NewService(
		broker, minter, cache, resolver, emitter, log,
		cfg.Federation.SessionDurationSeconds,
		cfg.Federation.SafetyMarginSeconds,
	)
}

func provideEngine(
	cfg config.Config,
	awsCfg awsv2.Config,
	resolver *catalog.Resolver,
	cache *sessioncache.Store,
	authmw *auth.Middleware,
	log *zap.Logger,
) *revocation.Engine {
	attacher := revocation.NewIAMAttacher(
		iam.NewFromConfig(awsCfg),
		cfg.Revocation.RoleName,
		cfg.Revocation.PolicyName,
	)
	return revocation.NewEngine(
		attacher, cache, resolver, authmw,
		time.Duration(cfg.Revocation.PropagationDelayMS)*time.Millisecond,
		log,
	)
}

func provideHandler(svc *session.Service, engine *revocation.Engine, authmw *auth.Middleware, log *zap.Logger) *session.Handler {
	return session.NewHandler(svc, engine, authmw, log)
}

// ---- Router ----

type routerDeps struct {
	fx.In

	AuthMW  *auth.Middleware
	LogMW   *logger.Middleware
	Handler *session.Handler

	Metrics http.Handler `name:"metrics"`

	R httpx.Router
}

func provideRouter(d routerDeps) http.Handler {
	r := d.R
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	r.Use(d.AuthMW.Middleware())
	r.Use(d.LogMW.Middleware(d.AuthMW))
	r.Use(metrics.Collect())

	r.Handle(http.MethodGet, "/metrics", d.Metrics)
	d.Handler.Register(r)

	return r.Mux()
}

// ---- Server lifecycle ----

type serverDeps struct {
	fx.In
	Opts   Options
	Logger *zap.Logger
	App    http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	addr := envOr(d.Opts.ListenAddrEnv, d.Opts.DefaultListen)
	cert := os.Getenv(d.Opts.TLSCertEnv)
	key := os.Getenv(d.Opts.TLSKeyEnv)

	srv := &http.Server{
		Addr:         addr,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if useTLS {
				d.Logger.Info("server starting (TLS)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", addr),
					zap.String("cert", cert),
				)
				go func() {
					if err := srv.ListenAndServeTLS(cert, key); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)",
					zap.String("service", d.Opts.Service),
					zap.String("addr", addr),
				)
				go func() {
					srv.TLSConfig = nil
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", d.Opts.Service))
			return srv.Shutdown(ctx)
		},
	})
}

// ---- Public Fx module ----

func Module(opts Options) fx.Option {
	return fx.Options(
		// Supply options to DI.
		fx.Supply(opts),

		// Middleware modules
		auth.Module,
		logger.Module,
		audit.Module,

		// Metrics (named)
		fx.Provide(fx.Annotate(metrics.ProvideMetrics, fx.ResultTags(`name:"metrics"`))),

		// Router implementation
		fx.Provide(httpx.NewChi),

		// Domain wiring
		fx.Provide(
			provideConfig,
			provideAWSConfig,
			provideResolver,
			provideCache,
			provideService,
			provideEngine,
			provideHandler,
		),

		// Router (named "app")
		fx.Provide(
			fx.Annotate(
				provideRouter,
				fx.ResultTags(`name:"app"`),
			),
		),

		// App lifecycle
		fx.Invoke(registerHooks),
	)
}

// ---- helpers ----

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
