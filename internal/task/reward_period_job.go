package task

import (
	"time"

	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/go-co-op/gocron/v2"
)

// rewardBatchSize 单次处理的评估记录数
const rewardBatchSize = 100

// RewardPeriodJob 周期奖励结算任务：对已完成但未发放的评估记录
// 结算奖励。去重键保证重复执行不会重复发放。
type RewardPeriodJob struct {
	coordinator *settlement.Coordinator
	metrics     *logic.MetricsLogic
	config      *config.Config
}

// NewRewardPeriodJob 创建周期奖励任务
func NewRewardPeriodJob(coordinator *settlement.Coordinator, metrics *logic.MetricsLogic, cfg *config.Config) *RewardPeriodJob {
	return &RewardPeriodJob{
		coordinator: coordinator,
		metrics:     metrics,
		config:      cfg,
	}
}

// GetName 任务名称
func (j *RewardPeriodJob) GetName() string {
	return "reward_period_settler"
}

// GetSchedule 调度配置
func (j *RewardPeriodJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.RewardInterval) * time.Second)
}

// Execute 执行任务
func (j *RewardPeriodJob) Execute() {
	records, err := j.metrics.ListCompletedUnrewarded(rewardBatchSize)
	if err != nil {
		logger.Error("Failed to fetch unrewarded evaluations: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}

	logger.Info("Settling rewards for %d completed evaluations", len(records))

	settledCount := 0
	for _, record := range records {
		batch, err := j.coordinator.ComputeRewardsForPeriod(record.DeveloperId, record.PeriodStart, record.PeriodEnd)
		if err != nil {
			logger.Error("Failed to settle rewards for developer %s period %s: %v",
				record.DeveloperId, record.PeriodStart.Format("2006-01-02"), err)
			continue
		}
		settledCount++
		logger.Info("Settled batch %s for developer %s: %d transactions",
			batch.BatchId, record.DeveloperId, len(batch.Transactions))
	}

	logger.Info("Reward period task completed: %d evaluations settled", settledCount)
}
