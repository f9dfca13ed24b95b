package task

import (
	"time"

	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/go-co-op/gocron/v2"
)

// ConfirmationWatchdogJob 确认超时看门狗：超过确认窗口仍未核销的
// pending交易强制置为失败并释放预留，绝不无限期挂起。
type ConfirmationWatchdogJob struct {
	coordinator *settlement.Coordinator
	ledger      *logic.LedgerLogic
	config      *config.Config
}

// NewConfirmationWatchdogJob 创建看门狗任务
func NewConfirmationWatchdogJob(coordinator *settlement.Coordinator, ledger *logic.LedgerLogic, cfg *config.Config) *ConfirmationWatchdogJob {
	return &ConfirmationWatchdogJob{
		coordinator: coordinator,
		ledger:      ledger,
		config:      cfg,
	}
}

// GetName 任务名称
func (j *ConfirmationWatchdogJob) GetName() string {
	return "confirmation_watchdog"
}

// GetSchedule 调度配置
func (j *ConfirmationWatchdogJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.WatchdogInterval) * time.Second)
}

// Execute 执行任务
func (j *ConfirmationWatchdogJob) Execute() {
	cutoff := time.Now().Add(-time.Duration(j.config.Task.ConfirmTimeout) * time.Second)

	expired, err := j.ledger.ListPendingOlderThan(cutoff)
	if err != nil {
		logger.Error("Failed to fetch expired pending transactions: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	failedCount := 0
	for _, tx := range expired {
		ref := ""
		if tx.ExternalTxRef != nil {
			ref = *tx.ExternalTxRef
		}
		// 需要人工跟进的告警，不是用户可见错误
		logger.Error("ALERT: transaction %d (%s, ref %s) exceeded confirmation window, forcing failed",
			tx.Id, tx.TxType, ref)

		if _, err := j.coordinator.ForceFail(tx.Id, logic.ErrConfirmationTimeout.Error()); err != nil {
			logger.Error("Failed to force-fail transaction %d: %v", tx.Id, err)
			continue
		}
		failedCount++
	}

	logger.Info("Confirmation watchdog completed: %d transactions forced failed", failedCount)
}
