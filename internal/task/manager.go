package task

import (
	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/go-co-op/gocron/v2"
)

// Job 后台任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler   gocron.Scheduler
	coordinator *settlement.Coordinator
	ledger      *logic.LedgerLogic
	metrics     *logic.MetricsLogic
	config      *config.Config
}

// NewManager 创建任务管理器
func NewManager(coordinator *settlement.Coordinator, ledger *logic.LedgerLogic, metrics *logic.MetricsLogic, cfg *config.Config) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler:   s,
		coordinator: coordinator,
		ledger:      ledger,
		metrics:     metrics,
		config:      cfg,
	}
}

// Start 启动任务管理器
func Start(coordinator *settlement.Coordinator, ledger *logic.LedgerLogic, metrics *logic.MetricsLogic, cfg *config.Config) *Manager {
	manager := NewManager(coordinator, ledger, metrics, cfg)

	// 注册所有任务
	manager.RegisterJobs()

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Task manager started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	m.register(NewReconcilePollJob(m.coordinator, m.ledger, m.config))
	m.register(NewConfirmationWatchdogJob(m.coordinator, m.ledger, m.config))
	m.register(NewRewardPeriodJob(m.coordinator, m.metrics, m.config))
}

// register 注册单个任务
func (m *Manager) register(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
