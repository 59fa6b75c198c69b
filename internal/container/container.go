package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ebaz7/lepan-crm-sub000/internal/application/dispatcher"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/sequence"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/service"
	"github.com/ebaz7/lepan-crm-sub000/internal/application/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/domain/event"
	domainwf "github.com/ebaz7/lepan-crm-sub000/internal/domain/workflow"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/export"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/metrics"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/notify"
	httpapi "github.com/ebaz7/lepan-crm-sub000/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *DatabaseBundle
	repositories *RepositoryBundle
	directories  *DirectoryBundle

	// Infrastructure - External
	metrics       *metrics.Collector
	larkMessenger *notify.LarkMessenger
	natsPublisher *notify.NATSPublisher

	// Application
	registry   *domainwf.Registry
	machine    *domainwf.Machine
	dispatcher dispatcher.Dispatcher
	allocator  *sequence.Allocator
	workflow   workflow.Engine
	services   *ServiceBundle

	// Interfaces
	exporter *export.RegisterExporter
	auth     *httpapi.Authenticator

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Company and actor directories
// 3. Metrics and external clients (Lark, NATS)
// 4. Event dispatcher and subscriptions
// 5. Stage machine, allocator and workflow engine
// 6. Application services and HTTP collaborators
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(c.ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", c.database.Driver))

	// Step 2: Initialize directories
	dirs, err := ProvideDirectories(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize directories: %w", err)
	}
	c.directories = dirs
	c.logger.Info("Directories initialized", zap.Int("companies", len(c.config.Companies)))

	// Step 3: Initialize external clients
	if err := c.initExternalClients(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	// Step 4: Initialize dispatcher
	c.initDispatcher()
	c.logger.Info("Dispatcher initialized")

	// Step 5: Initialize workflow engine
	c.initWorkflow()
	c.logger.Info("Workflow engine initialized")

	// Step 6: Initialize services
	c.initServices()
	c.logger.Info("Services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down all components in reverse initialization order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Close dispatcher so in-flight async handlers finish
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 2: Drain NATS
	if c.natsPublisher != nil {
		if err := c.natsPublisher.Close(); err != nil {
			c.logger.Error("Failed to close NATS connection", zap.Error(err))
			errs = append(errs, fmt.Errorf("close nats: %w", err))
		} else {
			c.logger.Info("NATS connection closed")
		}
	}

	// Step 3: Close database
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the state of each component as "ok" or a failure message.
func (c *Container) Health(ctx context.Context) map[string]string {
	components := make(map[string]string)

	if c.database != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.database.Ping(pingCtx); err != nil {
			components["database"] = fmt.Sprintf("ping failed: %v", err)
		} else {
			components["database"] = "ok"
		}
	} else {
		components["database"] = "not initialized"
	}

	if c.dispatcher != nil {
		components["dispatcher"] = "ok"
	} else {
		components["dispatcher"] = "not initialized"
	}

	if c.natsPublisher != nil {
		if c.natsPublisher.Connected() {
			components["nats"] = "ok"
		} else {
			components["nats"] = "disconnected"
		}
	}

	return components
}

// initDatabase opens the database and creates repositories.
func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle

	c.registry = domainwf.DefaultRegistry()

	repos, err := ProvideRepositories(bundle, c.registry, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	c.repositories = repos

	return nil
}

// initExternalClients creates the metrics collector and optional notifiers.
func (c *Container) initExternalClients() error {
	if c.config.Metrics.Enabled {
		c.metrics = metrics.NewCollector()
		if c.database.SQLite != nil {
			if err := c.metrics.RegisterDBStats(c.database.SQLite.DB, "docflow"); err != nil {
				return fmt.Errorf("failed to register db stats: %w", err)
			}
		}
	}

	c.larkMessenger = ProvideLarkMessenger(&c.config.Lark, c.logger)

	publisher, err := ProvideNATSPublisher(&c.config.NATS, c.logger)
	if err != nil {
		return err
	}
	c.natsPublisher = publisher

	return nil
}

// externalHandlerTimeout bounds one Lark or NATS delivery
const externalHandlerTimeout = 10 * time.Second

// initDispatcher creates the event dispatcher and registers handlers.
func (c *Container) initDispatcher() {
	c.dispatcher = dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: c.logger}),
	)

	types := event.Types()

	c.dispatcher.SubscribeMany(types, "audit_log", func(ctx context.Context, evt *event.Event) error {
		c.logger.Info("Workflow event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.String("document_id", evt.DocumentID),
			zap.String("actor_id", evt.ActorID),
		)
		return nil
	})

	if c.metrics != nil {
		c.dispatcher.SubscribeMany(types, "metrics", c.metrics.HandleEvent)
	}

	if c.larkMessenger != nil {
		notifier := service.NewNotificationService(c.larkMessenger, c.config.Lark.ReceiveID, &zapLoggerAdapter{logger: c.logger})
		c.dispatcher.SubscribeMany(types, "lark_notification", dispatcher.WithTimeout(notifier.HandleEvent, externalHandlerTimeout))
	}

	if c.natsPublisher != nil {
		forwarder := notify.NewEventForwarder(c.natsPublisher, c.config.NATS.SubjectPrefix, c.logger)
		c.dispatcher.SubscribeMany(types, "nats_forwarder", dispatcher.WithTimeout(forwarder.HandleEvent, externalHandlerTimeout))
	}
}

// initWorkflow creates the stage machine, allocator and transition engine.
func (c *Container) initWorkflow() {
	c.machine = ProvideMachine(c.registry, c.config.Workflow.AdminRole)

	c.allocator = ProvideAllocator(&c.config.Sequence, c.repositories.Counters, c.directories.Fiscal, c.metrics, c.logger)

	c.workflow = ProvideWorkflowEngine(&WorkflowDeps{
		Records:    c.repositories.Records,
		TxManager:  c.database.TransactionMgr,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	}, c.machine)
}

// initServices creates the application services and HTTP collaborators.
func (c *Container) initServices() {
	c.services = ProvideServices(
		c.repositories,
		c.directories,
		c.allocator,
		c.workflow,
		c.machine,
		c.registry,
		c.dispatcher,
		c.logger,
	)

	c.exporter = export.NewRegisterExporter(c.services.Policy.StatusOf, c.logger)
	c.auth = httpapi.NewAuthenticator(httpapi.AuthConfig{
		Enabled: c.config.Auth.Enabled,
		Secret:  c.config.Auth.JWTSecret,
		Issuer:  c.config.Auth.Issuer,
	}, c.directories.Roles, &zapLoggerAdapter{logger: c.logger})
}

// NewHTTPServer builds the HTTP server over the started container.
func (c *Container) NewHTTPServer() (*httpapi.Server, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	serverConfig := httpapi.ServerConfig{
		Host:           c.config.Server.Host,
		Port:           c.config.Server.Port,
		ReadTimeout:    c.config.Server.ReadTimeout,
		WriteTimeout:   c.config.Server.WriteTimeout,
		AllowedOrigins: c.config.Server.AllowedOrigins,
		MetricsPath:    c.config.Metrics.Path,
	}

	return httpapi.NewServer(serverConfig, httpapi.Dependencies{
		Documents: c.services.Documents,
		Trades:    c.services.Trades,
		Exporter:  c.exporter,
		Auth:      c.auth,
		Metrics:   c.metrics,
		Health:    c.Health,
	}, &zapLoggerAdapter{logger: c.logger}), nil
}

// Repositories returns the repository bundle
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the transition engine
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.workflow
}

// Allocator returns the document number allocator
func (c *Container) Allocator() *sequence.Allocator {
	return c.allocator
}

// Services returns the application services
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Authenticator returns the HTTP authenticator
func (c *Container) Authenticator() *httpapi.Authenticator {
	return c.auth
}

// Metrics returns the metrics collector, nil when disabled
func (c *Container) Metrics() *metrics.Collector {
	return c.metrics
}

// Logger returns the container logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container configuration
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces of
// the application and HTTP layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
// Handler failures are logged at warn level since they never roll back.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Debug(msg, fields...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Warn(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
