package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"callcenter/internal/audit"
	"callcenter/internal/auth"
	"callcenter/internal/calls"
	"callcenter/internal/config"
	"callcenter/internal/customers"
	"callcenter/internal/enrichment"
	"callcenter/internal/httpapi"
	"callcenter/internal/ingest"
	"callcenter/internal/insights"
	"callcenter/internal/reporting"
	"callcenter/internal/store"
	"callcenter/internal/voiceagent"
	"callcenter/pkg/logger"
	"callcenter/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	st, closeStore, err := openStore(rootCtx, cfg)
	if err != nil {
		log.Error("store init failed", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	var platform voiceagent.Platform = voiceagent.NewClient(cfg.VoiceAgent.BaseURL, cfg.VoiceAgent.APIKey, nil)
	if addr := cfg.RedisAddr(); addr != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		platform = voiceagent.NewCachedPlatform(platform, rdb, cfg.Redis.CacheTTL)
	}

	openai := enrichment.NewOpenAICompleter(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, nil)
	bedrock, err := enrichment.NewBedrockCompleterFromConfig(rootCtx, cfg.Bedrock.Region)
	if err != nil {
		log.Error("bedrock init failed", "err", err)
		os.Exit(1)
	}

	catalog, err := loadCatalog(cfg.Insights.CatalogPath)
	if err != nil {
		log.Error("question catalog load failed", "err", err)
		os.Exit(1)
	}

	customerSvc := customers.NewService(st, enrichment.NewContextGenerator(openai, cfg.OpenAI.ContextModel))
	engine := enrichment.NewEngine(enrichment.ModelStrategies(openai, cfg.OpenAI.Models...)...)
	driver := ingest.NewDriver(platform, customerSvc, ingest.NewReconciler(customerSvc, engine), ingest.DriverConfig{
		PageSize: cfg.Ingest.PageSize,
	})

	h := httpapi.Handlers{
		Platform:  platform,
		Calls:     calls.NewService(platform, customerSvc, cfg.VoiceAgent.TargetAgentIDs),
		Customers: customerSvc,
		Ingest:    driver,
		Insights: insights.NewService(platform,
			enrichment.NewClassifier(bedrock, cfg.Bedrock.Models, cfg.Insights.MinSpacing),
			enrichment.NewMatcher(openai, ""),
			insights.Config{
				AgentIDs: cfg.VoiceAgent.TargetAgentIDs,
				MaxCalls: cfg.Insights.MaxCalls,
				Catalog:  catalog,
			}),
		Reports: reporting.NewService(platform, customerSvc, cfg.VoiceAgent.TargetAgentIDs, 0),
		Audit:   audit.NewService(audit.NewStoreRepo(st)),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, auth.RequireAccessToken(authManager), h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Manual ingest and question statistics wait on LLM calls.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var workers sync.WaitGroup
	if cfg.Ingest.Enabled {
		workers.Add(1)
		go func() {
			defer workers.Done()
			log.Info("ingest driver started", "interval", cfg.Ingest.Interval.String())
			driver.Run(rootCtx, cfg.Ingest.Interval)
		}()
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	// The driver stops between calls; an in-flight reconcile finishes first.
	workers.Wait()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// openStore builds the configured document store and returns its closer.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, func() { _ = db.Close() }, nil
	case config.StoreDynamoDB:
		ds, err := store.NewDynamoStoreFromConfig(ctx, cfg.Dynamo.Table, cfg.Dynamo.Region, cfg.Dynamo.Profile)
		if err != nil {
			return nil, nil, err
		}
		return ds, func() {}, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

// loadCatalog returns nil when no catalog file is configured; requests must
// then bring their own.
func loadCatalog(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	return insights.LoadCatalog(path)
}
