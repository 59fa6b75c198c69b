package container

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/archive"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/dispatcher"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/port"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/sequence"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/service"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/directory"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/fiscal"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/metrics"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/notify"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/persistence/postgres"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/persistence/sqlite"
	"github.com/ebaz7/lepan-crm-sub000/migrations"
	"github.com/ebaz7/lepan-crm-sub000/pkg/database"
)

// DatabaseBundle holds database-related components.
// Exactly one of SQLite and Pool is set, depending on the driver.
type DatabaseBundle struct {
	Driver         string
	SQLite         *database.DB
	Pool           *pgxpool.Pool
	TransactionMgr port.TransactionManager
}

// Ping checks the underlying connection
func (b *DatabaseBundle) Ping(ctx context.Context) error {
	if b.Pool != nil {
		return b.Pool.Ping(ctx)
	}
	if b.SQLite != nil {
		return b.SQLite.PingContext(ctx)
	}
	return fmt.Errorf("database not initialized")
}

// Close releases the connection or pool
func (b *DatabaseBundle) Close() error {
	if b.Pool != nil {
		b.Pool.Close()
		return nil
	}
	if b.SQLite != nil {
		return b.SQLite.Close()
	}
	return nil
}

// ProvideDatabase opens the configured database and applies migrations
// when AutoMigrate is set.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	bundle, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if _, err := MigrateDatabase(ctx, bundle, logger); err != nil {
			_ = bundle.Close()
			return nil, err
		}
	}

	return bundle, nil
}

// OpenDatabase connects without migrating
func OpenDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	switch cfg.Driver {
	case DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			DSN:             cfg.DSN,
			MaxConns:        int32(cfg.MaxOpenConns),
			MinConns:        int32(cfg.MaxIdleConns),
			MaxConnLifetime: cfg.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &DatabaseBundle{
			Driver:         DriverPostgres,
			Pool:           pool,
			TransactionMgr: postgres.NewDB(pool, logger),
		}, nil

	case DriverSQLite, "":
		db, err := database.New(database.Config{
			Path:            cfg.Path,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			BusyTimeout:     cfg.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return &DatabaseBundle{
			Driver:         DriverSQLite,
			SQLite:         db,
			TransactionMgr: sqlite.NewDB(db.DB, logger),
		}, nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// MigrateDatabase applies pending migrations for the bundle's driver and
// returns how many were applied.
func MigrateDatabase(ctx context.Context, bundle *DatabaseBundle, logger *zap.Logger) (int, error) {
	var target database.Target
	switch {
	case bundle.Pool != nil:
		target = database.NewPostgresTarget(bundle.Pool)
	case bundle.SQLite != nil:
		target = database.NewSQLiteTarget(bundle.SQLite)
	default:
		return 0, fmt.Errorf("database not initialized")
	}

	applied, err := database.NewMigrator(target, logger).
		RunMigrations(ctx, migrations.FS, migrations.Dir(bundle.Driver))
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	return applied, nil
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Records  port.RecordRepository
	Counters port.CounterRepository
	Trades   port.TradeRepository
}

// ProvideRepositories creates the repositories for the bundle's driver.
func ProvideRepositories(bundle *DatabaseBundle, registry *domainwf.Registry, logger *zap.Logger) (*RepositoryBundle, error) {
	switch tx := bundle.TransactionMgr.(type) {
	case *postgres.DB:
		return &RepositoryBundle{
			Records:  postgres.NewRecordRepository(tx, registry, logger),
			Counters: postgres.NewCounterRepository(tx, logger),
			Trades:   postgres.NewTradeRepository(tx, logger),
		}, nil
	case *sqlite.DB:
		return &RepositoryBundle{
			Records:  sqlite.NewRecordRepository(tx, registry, logger),
			Counters: sqlite.NewCounterRepository(tx, logger),
			Trades:   sqlite.NewTradeRepository(tx, logger),
		}, nil
	}
	return nil, fmt.Errorf("no repositories for driver %q", bundle.Driver)
}

// DirectoryBundle holds the static company and actor directories.
type DirectoryBundle struct {
	Fiscal *fiscal.Provider
	Roles  *directory.StaticDirectory
}

// ProvideDirectories builds the fiscal-year provider and role directory.
func ProvideDirectories(cfg *Config) (*DirectoryBundle, error) {
	fiscalProvider, err := fiscal.NewProvider(cfg.Companies)
	if err != nil {
		return nil, fmt.Errorf("invalid companies: %w", err)
	}

	roles, err := directory.NewStaticDirectory(cfg.Actors)
	if err != nil {
		return nil, fmt.Errorf("invalid actors: %w", err)
	}

	return &DirectoryBundle{Fiscal: fiscalProvider, Roles: roles}, nil
}

// WorkflowDeps contains dependencies for the workflow engine.
type WorkflowDeps struct {
	Records    port.RecordRepository
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Collector
	Logger     *zap.Logger
}

// ProvideMachine creates the stage machine with the configured admin role.
func ProvideMachine(registry *domainwf.Registry, adminRole string) *domainwf.Machine {
	var opts []domainwf.MachineOption
	if adminRole != "" {
		opts = append(opts, domainwf.WithAdminRole(entity.Role(adminRole)))
	}
	return domainwf.NewMachine(registry, opts...)
}

// ProvideWorkflowEngine creates the transition engine.
func ProvideWorkflowEngine(deps *WorkflowDeps, machine *domainwf.Machine) workflow.Engine {
	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger}),
	}
	if deps.Metrics != nil {
		opts = append(opts, workflow.WithObserver(deps.Metrics))
	}
	return workflow.NewEngine(deps.Records, deps.TxManager, machine, opts...)
}

// ProvideAllocator creates the document number allocator.
func ProvideAllocator(cfg *SequenceConfig, counters port.CounterRepository, fiscalYears port.FiscalYearProvider, collector *metrics.Collector, logger *zap.Logger) *sequence.Allocator {
	var opts []sequence.Option
	if collector != nil {
		opts = append(opts, sequence.WithObserver(collector))
	}
	return sequence.NewAllocator(counters, fiscalYears, sequence.Config{
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
	}, &zapLoggerAdapter{logger: logger}, opts...)
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Documents service.DocumentService
	Trades    service.TradeService
	Policy    *archive.Policy
}

// ProvideServices creates the document and trade services.
func ProvideServices(
	repos *RepositoryBundle,
	dirs *DirectoryBundle,
	allocator *sequence.Allocator,
	engine workflow.Engine,
	machine *domainwf.Machine,
	registry *domainwf.Registry,
	disp dispatcher.Dispatcher,
	logger *zap.Logger,
) *ServiceBundle {
	policy := archive.NewPolicy(registry)
	svcLogger := &zapLoggerAdapter{logger: logger}

	return &ServiceBundle{
		Documents: service.NewDocumentService(repos.Records, allocator, engine, machine, policy, disp, svcLogger),
		Trades:    service.NewTradeService(repos.Trades, dirs.Fiscal, disp, svcLogger),
		Policy:    policy,
	}
}

// ProvideLarkMessenger creates the Lark chat sender, or nil when disabled.
func ProvideLarkMessenger(cfg *LarkConfig, logger *zap.Logger) *notify.LarkMessenger {
	if !cfg.Enabled {
		return nil
	}
	return notify.NewLarkMessenger(notify.LarkConfig{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
		BaseURL:       cfg.BaseURL,
	}, logger)
}

// ProvideNATSPublisher connects to NATS, or returns nil when disabled.
func ProvideNATSPublisher(cfg *NATSConfig, logger *zap.Logger) (*notify.NATSPublisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	publisher, err := notify.ConnectNATS(notify.NATSConfig{
		URL:  cfg.URL,
		Name: "docflow",
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return publisher, nil
}
