package services

import (
	"log/slog"

	"github.com/SAP-F-2025/interview-session-service/internal/cache"
	"github.com/SAP-F-2025/interview-session-service/internal/events"
	"github.com/SAP-F-2025/interview-session-service/internal/lock"
	"github.com/SAP-F-2025/interview-session-service/internal/repositories"
	"github.com/SAP-F-2025/interview-session-service/internal/validator"
)

// ServiceManager gives handlers and jobs access to every service
type ServiceManager interface {
	Scheduler() SchedulerService
	Monitor() MonitorService
	Scoring() ScoringService
	Export() ExportService
}

type serviceManager struct {
	scheduler SchedulerService
	monitor   MonitorService
	scoring   ScoringService
	export    ExportService
}

// Dependencies are the collaborators shared by all services
type Dependencies struct {
	Repo      repositories.Repository
	Locker    lock.Locker
	Cache     cache.CacheService
	Publisher events.EventPublisher
	Validator *validator.Validator
	Logger    *slog.Logger
}

func NewServiceManager(deps Dependencies, opts Options) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NoopCache{}
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewMockEventPublisher(deps.Logger)
	}

	newLogger := func(component string) *ServiceLogger {
		return NewServiceLogger(deps.Logger, LogConfig{Service: "interview-session-service", Component: component})
	}

	scoring := NewScoringService(deps.Repo, deps.Cache, deps.Publisher, newLogger("scoring"), opts)
	return &serviceManager{
		scheduler: NewSchedulerService(deps.Repo, deps.Publisher, newLogger("scheduler"), deps.Validator, opts),
		monitor:   NewMonitorService(deps.Repo, deps.Locker, scoring, deps.Publisher, newLogger("monitor"), deps.Validator, opts),
		scoring:   scoring,
		export:    NewExportService(deps.Repo, newLogger("export")),
	}
}

func (m *serviceManager) Scheduler() SchedulerService { return m.scheduler }
func (m *serviceManager) Monitor() MonitorService     { return m.monitor }
func (m *serviceManager) Scoring() ScoringService     { return m.scoring }
func (m *serviceManager) Export() ExportService       { return m.export }
