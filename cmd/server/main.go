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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/janisto/astro-identity/internal/http/health"
	"github.com/janisto/astro-identity/internal/http/v1/routes"
	"github.com/janisto/astro-identity/internal/platform/auth"
	"github.com/janisto/astro-identity/internal/platform/config"
	"github.com/janisto/astro-identity/internal/platform/firebase"
	"github.com/janisto/astro-identity/internal/platform/logging"
	"github.com/janisto/astro-identity/internal/platform/metrics"
	appmiddleware "github.com/janisto/astro-identity/internal/platform/middleware"
	"github.com/janisto/astro-identity/internal/platform/postgres"
	"github.com/janisto/astro-identity/internal/platform/redis"
	"github.com/janisto/astro-identity/internal/platform/respond"
	"github.com/janisto/astro-identity/internal/service/identity"
	"github.com/janisto/astro-identity/internal/service/profile"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const apiPrefix = "/v1"

func main() {
	defer func() {
		if err := logging.Sync(); err != nil {
			logging.LogError(context.Background(), "logger sync error", err)
		}
	}()
	if err := logging.Err(); err != nil {
		logging.LogError(context.Background(), "logger init error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.LogFatal(context.Background(), "invalid configuration", err)
	}
	logging.SetProjectID(cfg.FirebaseProjectID)
	logging.Sugar().Infow("configuration loaded",
		"store_backend", cfg.StoreBackend,
		"user_id_format", cfg.UserIDFormat,
		"store_timeout", cfg.StoreTimeout.String(),
		"auth_enabled", cfg.AuthEnabled(),
	)

	ctx := context.Background()
	deps, err := buildDeps(ctx, cfg, newProcessRegistry())
	if err != nil {
		logging.LogFatal(ctx, "startup failed", err)
	}
	defer deps.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, deps),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}

	listenErr := make(chan error, 1)
	go func() {
		logging.LogInfo(ctx, "server listening", zap.String("addr", srv.Addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		deps.close()
		logging.LogFatal(ctx, "listen failed", err, zap.String("addr", srv.Addr))
	case <-stop:
		logging.LogInfo(ctx, "shutdown signal received")
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(shutdownCtx, "server shutdown error", err)
	}
	logging.LogInfo(ctx, "server exited")
}

// deps are the long-lived collaborators the router is built from.
type deps struct {
	service  *identity.Service
	verifier auth.Verifier
	registry *prometheus.Registry
	checks   []health.Check
	closers  []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// buildDeps opens the configured store and identity provider and assembles
// the identity service. reg receives the identity counters and backs /metrics.
func buildDeps(ctx context.Context, cfg config.Config, reg *prometheus.Registry) (*deps, error) {
	d := &deps{verifier: auth.UnavailableVerifier{}, registry: reg}

	var fb *firebase.Clients
	if cfg.AuthEnabled() {
		var err error
		fb, err = firebase.InitializeClients(ctx, firebase.Config{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.GoogleApplicationCredentials,
			Firestore:       cfg.StoreBackend == config.BackendFirestore,
		})
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = fb.Close() })
		d.verifier = auth.NewFirebaseVerifier(fb.Auth)
	}

	store, err := openStore(ctx, cfg, fb, d)
	if err != nil {
		d.close()
		return nil, err
	}

	ids, err := identity.NewIDGenerator(cfg.UserIDFormat)
	if err != nil {
		d.close()
		return nil, err
	}

	d.service = identity.NewService(store, ids, identity.Options{
		StoreTimeout:      cfg.StoreTimeout,
		ContextInMetadata: cfg.DuplicateContextInMetadata,
		Observer: identity.Observers{
			metrics.New(reg),
			logging.NewAuditObserver(),
		},
	})
	return d, nil
}

// openStore returns the profile store for cfg.StoreBackend and registers its
// health check and closer on d.
func openStore(ctx context.Context, cfg config.Config, fb *firebase.Clients, d *deps) (profile.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return profile.NewMemoryStore(), nil

	case config.BackendFirestore:
		if fb == nil || fb.Firestore == nil {
			return nil, errors.New("firestore backend needs FIREBASE_PROJECT_ID")
		}
		return profile.NewFirestoreStore(fb.Firestore), nil

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		d.checks = append(d.checks, health.Check{Name: "postgres", Probe: pool.Ping})
		store := profile.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = client.Close() })
		d.checks = append(d.checks, health.Check{Name: "redis", Probe: client.Health})
		return profile.NewRedisStore(client.Client), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newRouter(cfg config.Config, d *deps) http.Handler {
	router := chi.NewRouter()
	router.NotFound(respond.NotFoundHandler())
	router.MethodNotAllowed(respond.MethodNotAllowedHandler())

	// Base middleware stack
	router.Use(
		appmiddleware.Security(apiPrefix+"/api-docs"),
		appmiddleware.Vary(),
		appmiddleware.CORS(cfg.CORSAllowedOrigins...),
		appmiddleware.RequestID(),
		// RealIP trusts X-Real-IP / X-Forwarded-For; only run behind a trusted proxy.
		chimiddleware.RealIP,
		chimiddleware.RequestSize(1<<20), // 1 MB limit
		logging.RequestLogger(),
		logging.AccessLogger(),
		respond.Recoverer(),
	)

	respond.SetSchemaPrefix(apiPrefix)
	router.Get("/health", health.Handler(d.checks...))
	router.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	router.Route(apiPrefix, func(r chi.Router) {
		hcfg := huma.DefaultConfig("Astro Identity API", Version)
		hcfg.Servers = []*huma.Server{{URL: apiPrefix}}
		hcfg.DocsPath = "/api-docs"
		api := humachi.New(r, hcfg)
		addCBORContent(api)
		routes.Register(api, d.verifier, d.service)
	})
	return router
}

// addCBORContent advertises application/cbor next to every JSON request and
// response body in the OpenAPI document.
func addCBORContent(api huma.API) {
	api.OpenAPI().OnAddOperation = append(api.OpenAPI().OnAddOperation,
		func(_ *huma.OpenAPI, op *huma.Operation) {
			if op.RequestBody != nil && op.RequestBody.Content != nil {
				if jsonContent, ok := op.RequestBody.Content["application/json"]; ok {
					op.RequestBody.Content["application/cbor"] = jsonContent
				}
			}
			for _, resp := range op.Responses {
				if resp.Content == nil {
					continue
				}
				if jsonContent, ok := resp.Content["application/json"]; ok {
					resp.Content["application/cbor"] = jsonContent
				}
			}
		},
	)
}

// newProcessRegistry returns a registry with the Go and process collectors.
func newProcessRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
