package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/portero/internal/app"
	"github.com/dropDatabas3/portero/internal/assertion"
	"github.com/dropDatabas3/portero/internal/audit"
	"github.com/dropDatabas3/portero/internal/cache"
	"github.com/dropDatabas3/portero/internal/config"
	"github.com/dropDatabas3/portero/internal/grant"
	"github.com/dropDatabas3/portero/internal/http/router"
	"github.com/dropDatabas3/portero/internal/introspect"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/rate"
	"github.com/dropDatabas3/portero/internal/rules"
	"github.com/dropDatabas3/portero/internal/signing"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/store/memory"
	"github.com/dropDatabas3/portero/internal/store/pg"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "portero",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("serve")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer closeStore()

	cacheClient, err := cache.New(cache.Config{
		Driver: cfg.Cache.Kind,
		Addr:   cfg.Cache.Redis.Addr,
		DB:     cfg.Cache.Redis.DB,
		Prefix: cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = cacheClient.Close() }()

	signers, err := buildSigners(cfg)
	if err != nil {
		return fmt.Errorf("signing: %w", err)
	}

	tokensvc.RegisterMetrics(prometheus.DefaultRegisterer)

	svc := tokensvc.New(repo, signers, rules.NewHook(audit.NewEngine()), tokensvc.Config{
		AccessTTL:           config.Duration(cfg.OAuth2.AccessTTL),
		RefreshTTL:          config.Duration(cfg.OAuth2.RefreshTTL),
		IDTokenTTL:          config.Duration(cfg.OAuth2.IDTokenTTL),
		ResourceConsistency: cfg.ResourceConsistencyEnabled(),
	})

	codes := grant.NewCodes(cacheClient, config.Duration(cfg.OAuth2.CodeTTL))
	verifier := assertion.NewJWTVerifier(signers)

	dispatcher := grant.NewDispatcher(
		grant.NewAuthorizationCodeHandler(svc, codes, repo),
		grant.NewClientCredentialsHandler(svc),
		grant.NewRefreshHandler(svc),
		grant.NewCIBAHandler(svc, repo, repo),
		grant.NewTokenExchangeHandler(svc, repo),
		grant.NewExtensionHandler(svc, verifier, repo, []string{"amr", "acr", "azp"}),
		grant.NewHybridHandler(svc, codes, repo),
	)

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		win := config.Duration(cfg.Rate.Window)
		if cfg.Cache.Kind == "redis" {
			rc := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
			defer func() { _ = rc.Close() }()
			limiter = rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, win)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.MaxRequests, win)
		}
	}

	c := &app.Container{
		Store:      repo,
		Cache:      cacheClient,
		Signers:    signers,
		TokenSvc:   svc,
		Dispatcher: dispatcher,
		Introspect: introspect.New(svc),
		Codes:      codes,
		Limiter:    limiter,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.New(c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})
	return g.Wait()
}

func buildStore(ctx context.Context, cfg *config.Config) (core.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		var pcfg pg.Config
		if cfg.Storage.Postgres.MaxConns > 0 {
			pcfg.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
		}
		if cfg.Storage.Postgres.ConnMaxLifetime != "" {
			pcfg.ConnMaxLifetime = config.Duration(cfg.Storage.Postgres.ConnMaxLifetime)
		}
		st, err := pg.New(ctx, cfg.Storage.DSN, pcfg)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return memory.New(), func() {}, nil
	}
}

// buildSigners arma el registry estático desde el YAML. El alg RSA omitido
// se deriva del tamaño de la clave.
func buildSigners(cfg *config.Config) (*signing.StaticRegistry, error) {
	var (
		providers []signing.Provider
		byCert    = map[string]signing.Provider{}
		def       signing.Provider
	)
	for _, k := range cfg.Signing.Keys {
		var p signing.Provider
		switch {
		case k.PEMFile != "":
			key, err := signing.LoadRSAPrivateKeyFile(k.PEMFile)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", k.KID, err)
			}
			alg := k.Alg
			if alg == "" {
				alg = signing.AlgForRSAKey(key)
			}
			p = signing.NewRSAProvider(k.KID, alg, key)
		default:
			p = signing.NewHMACProvider(k.KID, k.Alg, []byte(k.Secret))
		}
		providers = append(providers, p)
		if k.CertID != "" {
			byCert[k.CertID] = p
		}
		if p.Alg() == cfg.Signing.Default && def == nil {
			def = p
		}
	}
	if len(providers) == 0 {
		return nil, errors.New("no signing keys configured")
	}
	return signing.NewStaticRegistry(providers, byCert, def), nil
}
