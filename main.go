package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource/duckdb"
	_ "github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/audit"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/catalog"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/database"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/llm"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/mcp"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/repositories"
	"github.com/ekaya-inc/ekaya-nlsql/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("ekaya-nlsql stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting ekaya-nlsql",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("warehouse", cfg.Warehouse.Type),
		zap.String("relational", cfg.Relational.Type),
		zap.Bool("registry_db", cfg.Registry.Enabled()),
		zap.Bool("redis", cfg.Redis.Enabled()))

	cat, err := loadCatalog(cfg.Catalog, logger)
	if err != nil {
		return err
	}

	backends, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for name, b := range backends {
			if err := b.Close(); err != nil {
				logger.Warn("Failed to close backend", zap.String("backend", name), zap.Error(err))
			}
		}
	}()

	registry, auditRepo, closeRegistry, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRegistry()

	locatorStore, closeRedis, err := openLocatorStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	completer, err := openCompleter(cfg.LLM, logger)
	if err != nil {
		return err
	}

	auditor := audit.NewSecurityAuditor(logger)
	resolver := services.NewColumnAliasResolver(cat, logger)
	validator := services.NewEtlTypeValidator(cfg.Validation, cat, auditor, auditRepo, logger)
	compiler := services.NewSQLCompiler(
		completer,
		services.NewSchemaPromptBuilder(cfg.Compiler.MaxPromptColumns),
		resolver,
		services.NewFallbackGenerator(resolver, logger),
		validator,
		auditor,
		backends,
		services.CompilerSettingsFromConfig(cfg),
		logger,
	)
	pipeline := services.NewQuestionPipeline(
		registry,
		backends,
		services.NewTableLocator(locatorStore, cfg.Cache.LocatorTTL(), logger),
		services.NewSchemaProber(logger),
		services.NewSemanticClassifier(cat, logger),
		resolver,
		compiler,
		validator,
		cfg.Cache.SchemaTTL(),
		logger,
	)

	server := mcp.NewServer("ekaya-nlsql", cfg.Version, mcp.NewAuditLogger(logger), logger)
	tools.RegisterHealthTool(server.MCP(), cfg.Version, backendTypes(backends), completer != nil)
	tools.RegisterQuestionTools(server.MCP(), &tools.QuestionToolDeps{
		Pipeline: pipeline,
		Logger:   logger.Named("tools"),
	})

	return server.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// loadCatalog returns the default pattern catalogue, or the override file
// when one is configured.
func loadCatalog(cfg config.CatalogConfig, logger *zap.Logger) (*catalog.Catalog, error) {
	if cfg.OverridesPath == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.OverridesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog overrides: %w", err)
	}
	logger.Info("Loaded catalog overrides", zap.String("path", cfg.OverridesPath))
	return cat, nil
}

// openBackends opens the warehouse and, when configured, the relational
// backend concurrently.
func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.BackendSet, error) {
	type target struct {
		dsType string
		config map[string]any
	}
	targets := []target{{
		dsType: cfg.Warehouse.Type,
		config: map[string]any{"path": cfg.Warehouse.Path, "read_only": cfg.Warehouse.ReadOnly},
	}}
	if cfg.Relational.Enabled() {
		targets = append(targets, target{dsType: cfg.Relational.Type, config: cfg.Relational.AdapterConfig()})
	}

	var mu sync.Mutex
	backends := make(services.BackendSet, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			b, err := datasource.Open(gctx, t.dsType, t.config, logger)
			if err != nil {
				return fmt.Errorf("failed to open %s backend: %w", t.dsType, err)
			}
			mu.Lock()
			backends[b.Type()] = b
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, b := range backends {
			_ = b.Close()
		}
		return nil, err
	}
	return backends, nil
}

// openRegistry connects the PostgreSQL registry and applies migrations, or
// falls back to an in-memory registry without transformation audit storage.
func openRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.DataSourceRepository, repositories.TransformationAuditRepository, func(), error) {
	if !cfg.Registry.Enabled() {
		logger.Warn("No registry database configured, using in-memory registry")
		return repositories.NewMemoryDataSourceRepository(), nil, func() {}, nil
	}

	db, err := database.NewConnection(ctx, database.ConfigFromRegistry(&cfg.Registry))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to registry: %w", err)
	}
	if err := database.RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate registry: %w", err)
	}
	return repositories.NewDataSourceRepository(db), repositories.NewTransformationAuditRepository(db), db.Close, nil
}

// openLocatorStore returns the shared Redis locator cache, or nil for the
// process-local default.
func openLocatorStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.LocatorStore, func(), error) {
	client, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, func() {}, nil
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	return repositories.NewRedisLocatorCache(client, cfg.Cache.LocatorTTL(), logger), closeFn, nil
}

// openCompleter returns the configured model, or nil when none is configured
// and every question goes to the templated fallback.
func openCompleter(cfg config.LLMConfig, logger *zap.Logger) (llm.Completer, error) {
	completer, err := llm.NewFromConfig(cfg, logger)
	if errors.Is(err, llm.ErrNoProvider) {
		logger.Warn("No LLM provider configured, questions use templated fallback SQL")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return completer, nil
}

func backendTypes(backends services.BackendSet) []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
