package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buildwise/takeoff-backend/internal/data/repos"
	types "github.com/buildwise/takeoff-backend/internal/domain"
	"github.com/buildwise/takeoff-backend/internal/db"
	"github.com/buildwise/takeoff-backend/internal/formula"
	"github.com/buildwise/takeoff-backend/internal/handlers"
	"github.com/buildwise/takeoff-backend/internal/platform/dbctx"
	"github.com/buildwise/takeoff-backend/internal/platform/envutil"
	"github.com/buildwise/takeoff-backend/internal/platform/logger"
	"github.com/buildwise/takeoff-backend/internal/seed"
	"github.com/buildwise/takeoff-backend/internal/server"
	"github.com/buildwise/takeoff-backend/internal/services"
	"github.com/buildwise/takeoff-backend/internal/taxonomy"
	"github.com/buildwise/takeoff-backend/internal/units"
)

func main() {
	// Logger
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Fatal("Auto migration failed", "error", err)
	}
	gdb := dbService.DB()

	// Repos
	log.Info("Setting up repos...")
	categoryRepo := repos.NewCategoryRepo(gdb, log)
	materialRepo := repos.NewMaterialRepo(gdb, log)
	profileRepo := repos.NewBuildingProfileRepo(gdb, log)
	ruleSetRepo := repos.NewRuleSetRepo(gdb, log)
	ruleRepo := repos.NewConversionRuleRepo(gdb, log)
	wasteRepo := repos.NewWasteFactorRepo(gdb, log)
	runRepo := repos.NewCalculationRunRepo(gdb, log)
	lineRepo := repos.NewBreakdownLineRepo(gdb, log)

	// Shared engine state
	converter := units.NewConverter()
	formulas := formula.NewCache()

	// Seed
	loader := seed.NewLoader(gdb, log, categoryRepo, materialRepo, ruleSetRepo, ruleRepo, wasteRepo, profileRepo, converter)
	if path := envutil.Str("SEED_FILE", ""); path != "" {
		if err := loader.LoadFile(ctx, path); err != nil {
			log.Fatal("Seed load failed", "error", err)
		}
	}

	// Taxonomy
	nodes, err := categoryRepo.ListAll(dbctx.Context{Ctx: ctx})
	if err != nil {
		log.Fatal("Category load failed", "error", err)
	}
	flat := make([]types.CategoryNode, 0, len(nodes))
	for _, n := range nodes {
		flat = append(flat, *n)
	}
	tree, err := taxonomy.NewTree(flat)
	if err != nil {
		log.Fatal("Category tree invalid", "error", err)
	}
	log.Info("Category tree loaded", "nodes", tree.Len())

	// Services
	log.Info("Setting up services...")
	registry := services.NewRuleSetRegistry(gdb, log, ruleSetRepo, ruleRepo, wasteRepo)
	ruleResolver := services.NewRuleResolver(log, registry)
	wasteResolver := services.NewWasteResolver(log, registry, formulas)

	var notifier services.RunNotifier
	if os.Getenv("REDIS_ADDR") != "" {
		notifier, err = services.NewRedisRunNotifier(log)
		if err != nil {
			log.Warn("Redis notifier init failed, running without", "error", err)
			notifier = services.NewNopRunNotifier()
		}
	} else {
		notifier = services.NewNopRunNotifier()
	}
	defer notifier.Close()

	calcCfg := services.DefaultCalculationConfig()
	calcCfg.ItemConcurrency = envutil.Int("ITEM_CONCURRENCY", calcCfg.ItemConcurrency)
	calcCfg.MaxRunDuration = envutil.Duration("MAX_RUN_DURATION", calcCfg.MaxRunDuration)
	calcCfg.WorkerPoll = envutil.Duration("WORKER_POLL", calcCfg.WorkerPoll)
	calcCfg.ClaimMinAge = envutil.Duration("CLAIM_MIN_AGE", calcCfg.ClaimMinAge)

	calcService := services.NewCalculationService(
		gdb, log, calcCfg,
		tree, registry, ruleResolver, wasteResolver, converter, formulas,
		materialRepo, runRepo, lineRepo,
		notifier,
	)
	estimateService := services.NewEstimateService(gdb, log, profileRepo)

	// Orphaned PENDING runs get re-claimed in the background.
	calcService.StartWorker(ctx)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		RunsHandler:     handlers.NewRunsHandler(calcService),
		EstimateHandler: handlers.NewEstimateHandler(estimateService),
		RuleSetsHandler: handlers.NewRuleSetsHandler(registry),
	})

	srv := &http.Server{
		Addr:    ":" + envutil.Str("PORT", "8080"),
		Handler: router,
	}
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", "error", err)
	}
}
