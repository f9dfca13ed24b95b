package task

import (
	"context"
	"sync"
	"time"

	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/model"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// pollBatchSize 单次轮询的最大交易数
const pollBatchSize = 200

// ReconcilePollJob 对账轮询任务：查询待确认交易的链上结果并核销。
// 按开发者分组提交协程池，同一开发者的交易顺序处理。
type ReconcilePollJob struct {
	coordinator *settlement.Coordinator
	ledger      *logic.LedgerLogic
	config      *config.Config
}

// NewReconcilePollJob 创建对账轮询任务
func NewReconcilePollJob(coordinator *settlement.Coordinator, ledger *logic.LedgerLogic, cfg *config.Config) *ReconcilePollJob {
	return &ReconcilePollJob{
		coordinator: coordinator,
		ledger:      ledger,
		config:      cfg,
	}
}

// GetName 任务名称
func (j *ReconcilePollJob) GetName() string {
	return "reconcile_poller"
}

// GetSchedule 调度配置
func (j *ReconcilePollJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.ReconcileInterval) * time.Second)
}

// Execute 执行任务
func (j *ReconcilePollJob) Execute() {
	pending, err := j.ledger.ListPendingWithRef(pollBatchSize)
	if err != nil {
		logger.Error("Failed to fetch pending transactions: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	logger.Info("Polling %d pending transactions for confirmation", len(pending))

	// 按开发者分组，组内交易保持创建顺序
	groups := make(map[string][]model.TransactionModel)
	for _, tx := range pending {
		key := tx.ToDeveloper
		if tx.FromDeveloper != nil {
			key = *tx.FromDeveloper
		}
		groups[key] = append(groups[key], tx)
	}

	poolSize := j.config.Task.PoolSize
	if poolSize <= 0 || poolSize > len(groups) {
		poolSize = len(groups)
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		logger.Error("Failed to create reconcile pool: %v", err)
		return
	}
	defer pool.Release()

	ctx := context.Background()
	var wg sync.WaitGroup
	for developer, txs := range groups {
		developer, txs := developer, txs
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			for i := range txs {
				if err := j.coordinator.PollPendingTx(ctx, &txs[i]); err != nil {
					logger.Error("Failed to poll transaction %d for developer %s: %v",
						txs[i].Id, developer, err)
				}
			}
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit poll group for developer %s: %v", developer, err)
		}
	}
	wg.Wait()
}
