package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coordinator 结算协调器：发起操作、提交外部账本、把链上结果
// 核销回账本与余额缓存。同一开发者的余额变更通过锁表串行化；
// 对账路径先取结果再加锁，绝不持锁等待外部调用。
type Coordinator struct {
	db          *gorm.DB
	ledger      *logic.LedgerLogic
	balances    *logic.BalanceLogic
	staking     *logic.StakingLogic
	redemptions *logic.RedemptionLogic
	engine      *logic.RewardEngine
	rules       *logic.RuleLogic
	metrics     *logic.MetricsLogic
	wallet      WalletClient
	chain       ExternalLedger // 可为nil（链上核对未启用）
	locks       *DeveloperLocks
	maxAttempts int
}

// Deps 协调器依赖
type Deps struct {
	DB          *gorm.DB
	Ledger      *logic.LedgerLogic
	Balances    *logic.BalanceLogic
	Staking     *logic.StakingLogic
	Redemptions *logic.RedemptionLogic
	Engine      *logic.RewardEngine
	Rules       *logic.RuleLogic
	Metrics     *logic.MetricsLogic
	Wallet      WalletClient
	Chain       ExternalLedger
	MaxAttempts int
}

// NewCoordinator 创建结算协调器
func NewCoordinator(deps Deps) *Coordinator {
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 10
	}
	return &Coordinator{
		db:          deps.DB,
		ledger:      deps.Ledger,
		balances:    deps.Balances,
		staking:     deps.Staking,
		redemptions: deps.Redemptions,
		engine:      deps.Engine,
		rules:       deps.Rules,
		metrics:     deps.Metrics,
		wallet:      deps.Wallet,
		chain:       deps.Chain,
		locks:       NewDeveloperLocks(),
		maxAttempts: deps.MaxAttempts,
	}
}

// settleScope 单次核销事务内的存储视图
type settleScope struct {
	ledger   *logic.LedgerLogic
	balances *logic.BalanceLogic
	staking  *logic.StakingLogic
}

// scoped 把账本、余额和质押逻辑切换到同一个数据库事务上
func (c *Coordinator) scoped(dbtx *gorm.DB) settleScope {
	return settleScope{
		ledger:   c.ledger.WithTx(dbtx),
		balances: c.balances.WithTx(dbtx),
		staking:  c.staking.WithTx(dbtx),
	}
}

// IssueReward 发放系统奖励。系统对奖励完全权威，无外部提交环节，
// 创建后立即完成并入账。reason作为去重键：已存在同键交易时直接
// 返回既有记录，不重复发放。
func (c *Coordinator) IssueReward(developerId string, amount decimal.Decimal, reason string) (*model.TransactionModel, bool, error) {
	return c.issueSystemCredit(model.TxTypeReward, developerId, amount, reason)
}

// IssueMint 系统铸造入账（管理操作）
func (c *Coordinator) IssueMint(developerId string, amount decimal.Decimal, reason string) (*model.TransactionModel, bool, error) {
	return c.issueSystemCredit(model.TxTypeMint, developerId, amount, reason)
}

func (c *Coordinator) issueSystemCredit(txType, developerId string, amount decimal.Decimal, reason string) (*model.TransactionModel, bool, error) {
	unlock := c.locks.Lock(developerId)
	defer unlock()

	if reason != "" {
		existing, err := c.ledger.GetByReason(reason)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, logic.ErrNotFound) {
			return nil, false, err
		}
	}

	var settled *model.TransactionModel
	err := c.db.Transaction(func(dbtx *gorm.DB) error {
		scope := c.scoped(dbtx)

		tx := &model.TransactionModel{
			TxType:      txType,
			ToDeveloper: developerId,
			Amount:      amount,
			Reason:      reason,
		}
		if err := scope.ledger.Create(tx); err != nil {
			return err
		}
		var err error
		settled, _, err = scope.ledger.Settle(tx.Id, model.TxStatusCompleted, "")
		if err != nil {
			return err
		}
		return scope.balances.Credit(developerId, amount)
	})
	if err != nil {
		return nil, false, err
	}

	return settled, true, nil
}

// RewardBatch 一次周期奖励结算的结果
type RewardBatch struct {
	BatchId      string                   `json:"batch_id"`
	DeveloperId  string                   `json:"developer_id"`
	Transactions []model.TransactionModel `json:"transactions"`
}

// ComputeRewardsForPeriod 对某开发者某周期的已完成评估按启用规则
// 结算奖励。去重键内含周期与规则ID，重复执行不会重复发放。
func (c *Coordinator) ComputeRewardsForPeriod(developerId string, periodStart, periodEnd time.Time) (*RewardBatch, error) {
	metrics, err := c.metrics.GetByPeriod(developerId, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	rules, err := c.rules.GetEnabledRules()
	if err != nil {
		return nil, err
	}

	awards, err := c.engine.EvaluateMetrics(metrics, rules)
	if err != nil {
		return nil, err
	}

	batch := &RewardBatch{
		BatchId:     uuid.NewString(),
		DeveloperId: developerId,
	}

	for _, award := range awards {
		if award.Amount.IsZero() {
			continue
		}
		tx, issued, err := c.IssueReward(developerId, award.Amount, award.Reason)
		if err != nil {
			return nil, fmt.Errorf("发放规则 %d 奖励失败: %w", award.Rule.Id, err)
		}
		if issued {
			batch.Transactions = append(batch.Transactions, *tx)
		}
	}

	if err := c.metrics.MarkRewarded(metrics.Id); err != nil {
		return nil, err
	}

	logger.Info("Reward batch %s settled for developer %s: %d rules fired, %d issued",
		batch.BatchId, developerId, len(awards), len(batch.Transactions))

	return batch, nil
}

// HandleTaskEvent 对离散任务事件结算奖励：配置表给出基础金额，
// 绑定了具体难度或类型的启用task规则按匹配追加发放。
func (c *Coordinator) HandleTaskEvent(event *model.TaskEvent) (*model.TransactionModel, bool, error) {
	amount, err := c.engine.EvaluateTaskEvent(event)
	if err != nil {
		return nil, false, err
	}

	rules, err := c.rules.GetEnabledRules()
	if err != nil {
		return nil, false, err
	}
	bonuses, err := c.engine.EvaluateTaskEventRules(event, rules)
	if err != nil {
		return nil, false, err
	}

	tx, applied, err := c.IssueReward(event.DeveloperId, amount, logic.TaskEventReason(event))
	if err != nil {
		return nil, false, err
	}

	for _, bonus := range bonuses {
		if bonus.Amount.IsZero() {
			continue
		}
		if _, _, err := c.IssueReward(event.DeveloperId, bonus.Amount, bonus.Reason); err != nil {
			return nil, false, fmt.Errorf("发放规则 %d 奖励失败: %w", bonus.Rule.Id, err)
		}
	}

	return tx, applied, nil
}

// InitiateTransfer 发起开发者间转账。扣减在创建交易前预留；
// 钱包在拿到交易哈希前取消时不留下任何记录。
func (c *Coordinator) InitiateTransfer(ctx context.Context, from, to string, amount decimal.Decimal) (*model.TransactionModel, error) {
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("%w: 转账双方必须是不同的开发者", logic.ErrValidation)
	}
	return c.initiateDebit(ctx, model.TxTypeTransfer, from, to, amount, "")
}

// InitiateStake 发起质押
func (c *Coordinator) InitiateStake(ctx context.Context, developerId string, amount decimal.Decimal) (*model.TransactionModel, error) {
	return c.initiateDebit(ctx, model.TxTypeStake, developerId, developerId, amount, "")
}

// InitiateRedeemToChain 发起链上兑换（代币销毁型兑换）
func (c *Coordinator) InitiateRedeemToChain(ctx context.Context, developerId string, amount decimal.Decimal) (*model.TransactionModel, error) {
	return c.initiateDebit(ctx, model.TxTypeRedeem, developerId, developerId, amount, "")
}

// InitiateUnstake 发起解除质押：按仓位先进先出，本金即仓位金额，
// 收益在链上确认时按实际经过时间计算。选仓、预留与独占认领在
// 同一开发者临界区内完成，并发解除不会选中同一仓位。
func (c *Coordinator) InitiateUnstake(ctx context.Context, developerId string) (*model.TransactionModel, error) {
	position, err := c.claimOldestPosition(developerId)
	if err != nil {
		return nil, err
	}

	ref, err := c.wallet.Submit(ctx, WalletOperation{
		Type:          model.TxTypeUnstake,
		FromDeveloper: developerId,
		ToDeveloper:   developerId,
		Amount:        position.Amount,
	})
	if err != nil {
		// 钱包拒绝：回滚认领，不创建交易
		c.releaseUnstakeClaim(developerId, position)
		if errors.Is(err, ErrWalletCancelled) {
			return nil, fmt.Errorf("%w: %v", logic.ErrSubmissionCancelled, err)
		}
		return nil, fmt.Errorf("提交钱包失败: %w", err)
	}

	unlock := c.locks.Lock(developerId)
	defer unlock()

	tx := &model.TransactionModel{
		TxType:        model.TxTypeUnstake,
		FromDeveloper: &developerId,
		ToDeveloper:   developerId,
		Amount:        position.Amount,
		Reason:        fmt.Sprintf("unstake:position:%d", position.Id),
		ExternalTxRef: &ref,
	}
	if err := c.ledger.Create(tx); err != nil {
		c.rollbackUnstakeClaim(developerId, position)
		return nil, err
	}
	if err := c.staking.BindUnstakeTx(position.Id, tx.Id); err != nil {
		return nil, err
	}

	logger.Info("Initiated unstake of %s for developer %s (position %d, ref %s)",
		position.Amount.String(), developerId, position.Id, ref)
	return tx, nil
}

// claimOldestPosition 在开发者锁内选定最早可解除的仓位：预留其
// 质押余额并把仓位置为unstaking。返回后该仓位已被本次解除独占。
func (c *Coordinator) claimOldestPosition(developerId string) (*model.StakePositionModel, error) {
	unlock := c.locks.Lock(developerId)
	defer unlock()

	position, err := c.staking.OldestUnstakablePosition(developerId)
	if err != nil {
		return nil, err
	}
	if err := c.staking.MarkUnstaking(position.Id); err != nil {
		return nil, err
	}
	if err := c.balances.ReserveStaked(developerId, position.Amount); err != nil {
		if restoreErr := c.staking.ClearUnstakeTx(position.Id); restoreErr != nil {
			logger.Error("Failed to restore stake position %d for %s: %v", position.Id, developerId, restoreErr)
		}
		return nil, err
	}

	return position, nil
}

// releaseUnstakeClaim 钱包取消后回滚认领（锁外调用）
func (c *Coordinator) releaseUnstakeClaim(developerId string, position *model.StakePositionModel) {
	unlock := c.locks.Lock(developerId)
	defer unlock()
	c.rollbackUnstakeClaim(developerId, position)
}

// rollbackUnstakeClaim 释放预留并恢复仓位，调用方必须持有开发者锁
func (c *Coordinator) rollbackUnstakeClaim(developerId string, position *model.StakePositionModel) {
	if err := c.balances.ReleaseToStaked(developerId, position.Amount); err != nil {
		logger.Error("Failed to roll back staked reservation for %s: %v", developerId, err)
	}
	if err := c.staking.ClearUnstakeTx(position.Id); err != nil {
		logger.Error("Failed to restore stake position %d for %s: %v", position.Id, developerId, err)
	}
}

// initiateDebit 扣减型操作的公共路径：
//  1. 锁内余额预检并预留；
//  2. 解锁后提交钱包（不持锁等待签名）；
//  3. 取消则回滚预留，成功则记录pending交易。
func (c *Coordinator) initiateDebit(ctx context.Context, txType, from, to string, amount decimal.Decimal, reason string) (*model.TransactionModel, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: 金额必须大于0", logic.ErrValidation)
	}

	if err := c.reserveFor(from, amount); err != nil {
		return nil, err
	}

	ref, err := c.wallet.Submit(ctx, WalletOperation{
		Type:          txType,
		FromDeveloper: from,
		ToDeveloper:   to,
		Amount:        amount,
	})
	if err != nil {
		// 钱包拒绝：回滚预留，不创建交易
		if releaseErr := c.releaseFor(from, amount); releaseErr != nil {
			logger.Error("Failed to roll back reservation for %s after wallet error: %v", from, releaseErr)
		}
		if errors.Is(err, ErrWalletCancelled) {
			return nil, fmt.Errorf("%w: %v", logic.ErrSubmissionCancelled, err)
		}
		return nil, fmt.Errorf("提交钱包失败: %w", err)
	}

	unlock := c.locks.Lock(from)
	defer unlock()

	tx := &model.TransactionModel{
		TxType:        txType,
		FromDeveloper: &from,
		ToDeveloper:   to,
		Amount:        amount,
		Reason:        reason,
		ExternalTxRef: &ref,
	}
	if err := c.ledger.Create(tx); err != nil {
		if releaseErr := c.releaseFor(from, amount); releaseErr != nil {
			logger.Error("Failed to roll back reservation for %s after create failure: %v", from, releaseErr)
		}
		return nil, err
	}

	logger.Info("Initiated %s of %s for developer %s (ref %s)", txType, amount.String(), from, ref)
	return tx, nil
}

// reserveFor 可用余额的乐观预留（解除质押走独立的认领路径）
func (c *Coordinator) reserveFor(developerId string, amount decimal.Decimal) error {
	unlock := c.locks.Lock(developerId)
	defer unlock()

	return c.balances.Reserve(developerId, amount)
}

// releaseFor 回滚预留
func (c *Coordinator) releaseFor(developerId string, amount decimal.Decimal) error {
	unlock := c.locks.Lock(developerId)
	defer unlock()

	return c.balances.ReleaseToAvailable(developerId, amount)
}

// Reconcile 把链上结果核销回账本与余额。对同一交易哈希的重复
// 调用是幂等no-op：余额变更只应用一次。
func (c *Coordinator) Reconcile(externalTxRef string, outcome string) (*model.TransactionModel, error) {
	if outcome != model.TxStatusCompleted && outcome != model.TxStatusFailed {
		return nil, fmt.Errorf("%w: 非法的核销结果 %s", logic.ErrValidation, outcome)
	}

	tx, err := c.ledger.GetByExternalRef(externalTxRef)
	if err != nil {
		return nil, err
	}
	if tx.IsTerminal() {
		return tx, nil
	}

	return c.settle(tx, outcome, "")
}

// ForceFail 把超过确认窗口的pending交易强制置为失败（看门狗路径）
func (c *Coordinator) ForceFail(txId int64, reason string) (*model.TransactionModel, error) {
	tx, err := c.ledger.Get(txId)
	if err != nil {
		return nil, err
	}
	if tx.IsTerminal() {
		return tx, nil
	}
	return c.settle(tx, model.TxStatusFailed, reason)
}

// settle 在开发者锁内把交易置为终态并应用余额变更。终态写入与
// 余额变更在同一数据库事务内提交，任一步失败则整体回滚，交易
// 保持pending等待重试或人工处理。
func (c *Coordinator) settle(tx *model.TransactionModel, outcome, reason string) (*model.TransactionModel, error) {
	from := ""
	if tx.FromDeveloper != nil {
		from = *tx.FromDeveloper
	}

	unlock := c.locks.LockPair(from, tx.ToDeveloper)
	defer unlock()

	var settled *model.TransactionModel
	err := c.db.Transaction(func(dbtx *gorm.DB) error {
		scope := c.scoped(dbtx)

		var applied bool
		var err error
		settled, applied, err = scope.ledger.Settle(tx.Id, outcome, reason)
		if err != nil {
			return err
		}
		if !applied {
			// 竞争中的重复核销：终态已进入，余额不再变更
			return nil
		}

		if outcome == model.TxStatusCompleted {
			return scope.applyCompleted(settled)
		}
		return scope.applyFailed(settled)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Settled transaction %d (%s) as %s", settled.Id, settled.TxType, outcome)
	return settled, nil
}

// applyCompleted 完成态的余额变更
func (s settleScope) applyCompleted(tx *model.TransactionModel) error {
	from := ""
	if tx.FromDeveloper != nil {
		from = *tx.FromDeveloper
	}

	switch tx.TxType {
	case model.TxTypeReward, model.TxTypeMint:
		return s.balances.Credit(tx.ToDeveloper, tx.Amount)

	case model.TxTypeTransfer:
		if err := s.balances.ConsumeReserved(from, tx.Amount); err != nil {
			return err
		}
		return s.balances.Credit(tx.ToDeveloper, tx.Amount)

	case model.TxTypeStake:
		if err := s.balances.ReservedToStaked(from, tx.Amount); err != nil {
			return err
		}
		_, err := s.staking.CreatePosition(from, tx.Amount, tx.Id)
		return err

	case model.TxTypeUnstake:
		return s.applyUnstakeCompleted(tx, from)

	case model.TxTypeRedeem:
		return s.balances.ConsumeReserved(from, tx.Amount)

	default:
		return fmt.Errorf("%w: 未知的交易类型 %s", logic.ErrValidation, tx.TxType)
	}
}

// applyUnstakeCompleted 解除质押完成：本金回到可用，收益按仓位
// 创建时间到核销时刻计算，并以独立的reward交易入账，保证审计可见。
func (s settleScope) applyUnstakeCompleted(tx *model.TransactionModel, developerId string) error {
	position, err := s.staking.GetByUnstakeTx(tx.Id)
	if err != nil {
		return err
	}

	now := time.Now()
	accrued := s.staking.Calculator().AccruedReward(position.Amount, position.CreatedAt, now)

	if err := s.balances.ReservedToAvailable(developerId, tx.Amount, accrued); err != nil {
		return err
	}
	if err := s.staking.ClosePosition(position.Id, accrued, now); err != nil {
		return err
	}

	if accrued.IsPositive() {
		reward := &model.TransactionModel{
			TxType:      model.TxTypeReward,
			ToDeveloper: developerId,
			Amount:      accrued,
			Reason:      fmt.Sprintf("stake:position:%d:accrual", position.Id),
		}
		if err := s.ledger.Create(reward); err != nil {
			return err
		}
		if _, _, err := s.ledger.Settle(reward.Id, model.TxStatusCompleted, ""); err != nil {
			return err
		}
	}

	return nil
}

// applyFailed 失败态：释放创建时的乐观预留
func (s settleScope) applyFailed(tx *model.TransactionModel) error {
	if tx.FromDeveloper == nil {
		return nil
	}
	from := *tx.FromDeveloper

	switch tx.TxType {
	case model.TxTypeTransfer, model.TxTypeStake, model.TxTypeRedeem:
		return s.balances.ReleaseToAvailable(from, tx.Amount)

	case model.TxTypeUnstake:
		if err := s.balances.ReleaseToStaked(from, tx.Amount); err != nil {
			return err
		}
		position, err := s.staking.GetByUnstakeTx(tx.Id)
		if err != nil {
			if errors.Is(err, logic.ErrNotFound) {
				return nil
			}
			return err
		}
		return s.staking.ClearUnstakeTx(position.Id)

	default:
		return nil
	}
}

// PollPendingTx 查询单笔pending交易的链上结果并核销。
// 结果未知时累加重试计数，超过上限转为看门狗失败。
func (c *Coordinator) PollPendingTx(ctx context.Context, tx *model.TransactionModel) error {
	if c.chain == nil || tx.ExternalTxRef == nil {
		return nil
	}

	// 先取外部结果，再加锁应用
	status, err := c.chain.TxStatus(ctx, *tx.ExternalTxRef)
	if err != nil {
		return fmt.Errorf("查询链上确认失败: %w", err)
	}

	switch status {
	case TxOutcomeConfirmed:
		_, err = c.Reconcile(*tx.ExternalTxRef, model.TxStatusCompleted)
		return err
	case TxOutcomeFailed:
		_, err = c.Reconcile(*tx.ExternalTxRef, model.TxStatusFailed)
		return err
	default:
		if tx.Attempts+1 >= c.maxAttempts {
			logger.Error("Transaction %d exhausted %d confirmation attempts, forcing failed (ref %s)",
				tx.Id, c.maxAttempts, *tx.ExternalTxRef)
			_, err = c.ForceFail(tx.Id, "confirmation retries exhausted")
			return err
		}
		return c.ledger.IncrementAttempts(tx.Id)
	}
}

// CreateRedemption 创建兑换申请（锁内预留）
func (c *Coordinator) CreateRedemption(req *model.RedemptionRequestModel) error {
	unlock := c.locks.Lock(req.DeveloperId)
	defer unlock()
	return c.redemptions.CreateRequest(req)
}

// DecideRedemption 审批兑换申请
func (c *Coordinator) DecideRedemption(id int64, approve bool, decider, reason string) (*model.RedemptionRequestModel, error) {
	req, err := c.redemptions.Get(id)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(req.DeveloperId)
	defer unlock()

	if approve {
		return c.redemptions.Approve(id, decider)
	}
	return c.redemptions.Reject(id, decider, reason)
}

// GetBalance 查询开发者余额
func (c *Coordinator) GetBalance(developerId string) (*model.BalanceModel, error) {
	return c.balances.GetOrCreate(developerId)
}

// RecomputeBalance 从账本重算余额并与链上权威余额比对。
// 差异只上报与记录，不自动修正。
func (c *Coordinator) RecomputeBalance(ctx context.Context, developerId string) (*logic.BalanceReport, error) {
	balance, err := c.balances.GetOrCreate(developerId)
	if err != nil {
		return nil, err
	}

	// 链上查询不持锁
	var onChain *decimal.Decimal
	if c.chain != nil && balance.WalletAddress != "" {
		chainBalance, err := c.chain.TokenBalance(ctx, balance.WalletAddress)
		if err != nil {
			logger.Warn("Failed to fetch on-chain balance for %s: %v", developerId, err)
		} else {
			onChain = &chainBalance
		}
	}

	unlock := c.locks.Lock(developerId)
	defer unlock()

	// 钱包提交在途时预留尚无对应的pending交易，reserved可能出现
	// 瞬时差异；pending记录落库后复跑即消除
	report, err := c.balances.Recompute(developerId, onChain)
	if err != nil {
		return nil, err
	}

	if len(report.Discrepancies) > 0 {
		// 只上报给运营方，缓存不自动修正
		logger.Error("%v for developer %s: %d discrepancies",
			logic.ErrReconciliationConflict, developerId, len(report.Discrepancies))
	}

	return report, nil
}
