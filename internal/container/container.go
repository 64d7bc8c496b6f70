// Package container manages dependency wiring and lifecycle. Components
// initialize in dependency order and tear down in reverse.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/docuflow/approval-engine/internal/ai"
	"github.com/docuflow/approval-engine/internal/application/dispatcher"
	"github.com/docuflow/approval-engine/internal/application/port"
	"github.com/docuflow/approval-engine/internal/application/service"
	appworkflow "github.com/docuflow/approval-engine/internal/application/workflow"
	"github.com/docuflow/approval-engine/internal/config"
	"github.com/docuflow/approval-engine/internal/document"
	"github.com/docuflow/approval-engine/internal/infrastructure/notify"
	"github.com/docuflow/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/docuflow/approval-engine/internal/infrastructure/persistence/sqlite"
	httpadapter "github.com/docuflow/approval-engine/internal/interfaces/http"
	"github.com/docuflow/approval-engine/internal/report"
	"github.com/docuflow/approval-engine/internal/worker"
	"github.com/docuflow/approval-engine/pkg/database"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Template   port.TemplateRepository
	Instance   port.InstanceRepository
	Record     port.RecordRepository
	Escalation port.EscalationRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Template     service.TemplateService
	Submission   service.SubmissionService
	Notification service.NotificationService
}

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	notifier     port.Notifier
	docStore     port.DocumentStore
	suggester    port.TemplateSuggester
	exporter     *report.Exporter

	// Application
	dispatcher dispatcher.Dispatcher
	processor  appworkflow.Processor
	services   *ServiceBundle

	// Workers
	workers *worker.Manager

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// database and repositories, external adapters, dispatcher and
// processor, services, then workers.
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

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initAdapters(); err != nil {
		return fmt.Errorf("failed to initialize adapters: %w", err)
	}
	c.logger.Info("External adapters initialized")

	c.initDispatcherAndProcessor()
	c.logger.Info("Dispatcher and processor initialized")

	c.initServices()
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
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

	if c.workers != nil {
		c.workers.StopAll()
		c.logger.Info("Workers stopped")
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

func (c *Container) initDatabase() error {
	sqlDB, err := database.Open(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}

	migrator := database.NewMigrator(sqlDB, c.logger)
	if err := migrator.RunMigrations(c.config.Database.MigrationsDir); err != nil {
		sqlDB.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	c.sqlDB = sqlDB
	c.db = sqlite.NewDB(sqlDB, c.logger)

	c.repositories = &RepositoryBundle{
		Template:   repository.NewTemplateRepository(c.db, c.logger),
		Instance:   repository.NewInstanceRepository(c.db, c.logger),
		Record:     repository.NewRecordRepository(c.db, c.logger),
		Escalation: repository.NewEscalationRepository(c.db, c.logger),
	}

	return nil
}

func (c *Container) initAdapters() error {
	c.notifier = notify.NewLarkNotifier(notify.Config{
		AppID:     c.config.Lark.AppID,
		AppSecret: c.config.Lark.AppSecret,
	}, c.logger)

	c.suggester = ai.NewSuggester(
		c.config.OpenAI.APIKey,
		c.config.OpenAI.Model,
		c.config.OpenAI.Temperature,
		c.logger,
	)

	if err := os.MkdirAll(c.config.Documents.RootDir, 0755); err != nil {
		return fmt.Errorf("create document root: %w", err)
	}
	inspector := document.NewInspector(c.logger)
	c.docStore = document.NewFileDocumentStore(c.config.Documents.RootDir, "", inspector, c.logger)

	c.exporter = report.NewExporter(c.logger)

	return nil
}

func (c *Container) initDispatcherAndProcessor() {
	c.dispatcher = dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: c.logger.Named("dispatcher")}),
	)

	c.processor = appworkflow.NewProcessor(
		c.repositories.Instance,
		c.repositories.Record,
		c.db,
		appworkflow.WithDispatcher(c.dispatcher),
	)
}

func (c *Container) initServices() {
	logger := &zapLoggerAdapter{logger: c.logger.Named("service")}

	templateService := service.NewTemplateService(
		c.repositories.Template,
		c.repositories.Instance,
		c.repositories.Escalation,
		c.db,
		logger,
	)

	submissionService := service.NewSubmissionService(
		c.repositories.Instance,
		c.repositories.Template,
		c.repositories.Record,
		c.repositories.Escalation,
		c.docStore,
		c.db,
		c.dispatcher,
		logger,
	)

	notificationService := service.NewNotificationService(c.repositories.Instance, c.notifier, logger)
	notificationService.Register(c.dispatcher)

	c.services = &ServiceBundle{
		Template:     templateService,
		Submission:   submissionService,
		Notification: notificationService,
	}
}

func (c *Container) initWorkers() error {
	c.workers = worker.NewManager(c.logger)

	c.workers.Register(worker.NewEscalationPoller(
		c.repositories.Instance,
		c.repositories.Escalation,
		c.notifier,
		c.dispatcher,
		c.config.Escalation.PollInterval,
		c.config.Escalation.BatchSize,
		c.logger.Named("escalation"),
	))

	return c.workers.StartAll(c.ctx)
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Processor returns the approval action processor.
func (c *Container) Processor() appworkflow.Processor {
	return c.processor
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Notifier returns the notification adapter.
func (c *Container) Notifier() port.Notifier {
	return c.notifier
}

// Suggester returns the template suggester.
func (c *Container) Suggester() port.TemplateSuggester {
	return c.suggester
}

// Exporter returns the audit trail exporter.
func (c *Container) Exporter() *report.Exporter {
	return c.exporter
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// HTTPLogger returns a logger satisfying the HTTP adapter's interface.
func (c *Container) HTTPLogger() httpadapter.Logger {
	return &zapLoggerAdapter{logger: c.logger.Named("http")}
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// used by the service, dispatcher and HTTP layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
