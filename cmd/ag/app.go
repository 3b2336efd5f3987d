package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agentry-ai/agentry/agent"
	"github.com/agentry-ai/agentry/config"
	"github.com/agentry-ai/agentry/conversations"
	"github.com/agentry-ai/agentry/llm"
	"github.com/agentry-ai/agentry/migrations"
	"github.com/agentry-ai/agentry/tools"
	"github.com/agentry-ai/agentry/tools/schemas"
)

// app bundles the wired-up runtime: configuration, storage, and the crew.
type app struct {
	cfg   *config.Config
	crew  *agent.Crew
	store conversations.Store

	stateDB *sql.DB
	convDB  *sql.DB // nil unless the postgres driver is in use
}

// newApp loads configuration, opens storage, registers tools, and
// initializes all agent runners.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(config.GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{cfg: cfg}
	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	crew := agent.NewCrew(logger, cfg, a.stateDB, agent.WithMessagePersister(a.store))
	a.crew = crew

	registerTools(crew)

	if err := crew.LoadCrewConfig(cfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load agent definitions: %w", err)
	}

	registry := llm.NewProviderRegistry(config.ProviderRegistryConfig(cfg), cfg.LLMProviders)
	if err := crew.InitializeAgents(ctx, registry); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize agents: %w", err)
	}

	return a, nil
}

// openStorage opens the state database and the conversation store.
//
// Agent state always lives in a local sqlite database. Conversations follow
// the configured storage driver: the same sqlite database, a separate
// postgres database, or JSON-lines files.
func (a *app) openStorage(ctx context.Context) error {
	statePath := config.ExpandPath(a.cfg.Storage.DSN)
	if a.cfg.Storage.Driver != "sqlite" {
		statePath = config.ExpandPath("~/.agentry/agentry.db")
	}
	if err := os.MkdirAll(filepath.Dir(statePath), 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	stateDB, err := sql.Open("sqlite3", statePath)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	if err := migrations.RunMigrations(stateDB, migrations.DialectSQLite, logger); err != nil {
		_ = stateDB.Close()
		return fmt.Errorf("failed to migrate state database: %w", err)
	}
	a.stateDB = stateDB

	switch a.cfg.Storage.Driver {
	case "sqlite", "":
		a.store = conversations.NewSQLStore(stateDB, conversations.DialectSQLite)

	case "postgres":
		convDB, err := sql.Open("postgres", a.cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("failed to open postgres database: %w", err)
		}
		if err := migrations.RunMigrations(convDB, migrations.DialectPostgres, logger); err != nil {
			_ = convDB.Close()
			return fmt.Errorf("failed to migrate postgres database: %w", err)
		}
		a.convDB = convDB
		a.store = conversations.NewSQLStore(convDB, conversations.DialectPostgres)

	case "json":
		store, err := conversations.NewFileStore(config.ExpandPath(a.cfg.Storage.Path))
		if err != nil {
			return fmt.Errorf("failed to open JSON conversation store: %w", err)
		}
		a.store = store

	default:
		return fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}

	return nil
}

// Close releases database connections.
func (a *app) Close() {
	if a.convDB != nil {
		_ = a.convDB.Close()
	}
	if a.stateDB != nil {
		_ = a.stateDB.Close()
	}
}

// registerTools registers the built-in toolkits and their schemas.
func registerTools(crew *agent.Crew) {
	workspacePath, err := os.Getwd()
	if err != nil {
		workspacePath = "."
		logger.Warn().Err(err).Msg("Failed to get current directory, using '.' as workspace")
	}

	crew.ToolRegistry.RegisterFilesystemTools(workspacePath)
	crew.ToolRegistry.RegisterShellTools(workspacePath, nil)

	registerSchemas(crew, schemas.FilesystemSchemas())
	registerSchemas(crew, schemas.ShellSchemas())

	// GitHub tools need a token; leave them unregistered without one so
	// agents never see tools they cannot call
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		crew.ToolRegistry.RegisterGitHubTools(tools.NewGitHubClient(token))
		registerSchemas(crew, schemas.GitHubSchemas())
	}
}

func registerSchemas(crew *agent.Crew, toolSchemas map[string]schemas.ToolSchema) {
	for name, schema := range toolSchemas {
		crew.ToolProvider.RegisterSchema(name, agent.ToolSchema{
			Description: schema.Description,
			Schema:      schema.Schema,
		})
	}
}
