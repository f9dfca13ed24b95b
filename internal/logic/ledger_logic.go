package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/devgrid/rss/internal/model"
	"gorm.io/gorm"
)

// TxFilter 交易查询条件
type TxFilter struct {
	DeveloperId string // 匹配转出方或转入方
	Status      string
	TxType      string
}

// LedgerLogic 交易账本业务逻辑。账本只追加：记录只能从pending
// 进入completed或failed，从不回退，也从不删除。
type LedgerLogic struct {
	db *gorm.DB
}

// NewLedgerLogic 创建交易账本业务逻辑
func NewLedgerLogic(db *gorm.DB) *LedgerLogic {
	return &LedgerLogic{db: db}
}

// WithTx 返回在指定事务上操作的副本
func (l *LedgerLogic) WithTx(tx *gorm.DB) *LedgerLogic {
	return &LedgerLogic{db: tx}
}

// Create 创建pending交易。余额检查由结算协调器在开发者锁内完成，
// 这里只做记录本身的校验。
func (l *LedgerLogic) Create(tx *model.TransactionModel) error {
	if err := l.validate(tx); err != nil {
		return err
	}

	tx.Status = model.TxStatusPending
	tx.SettledAt = nil

	if err := l.db.Create(tx).Error; err != nil {
		return fmt.Errorf("创建交易记录失败: %w", err)
	}

	return nil
}

// Settle 将pending交易置为终态。对已终态记录的重复调用是幂等的
// no-op（确认事件至少一次投递），返回applied=false。
func (l *LedgerLogic) Settle(id int64, outcome string, reason string) (*model.TransactionModel, bool, error) {
	if outcome != model.TxStatusCompleted && outcome != model.TxStatusFailed {
		return nil, false, fmt.Errorf("%w: 非法的结算状态 %s", ErrValidation, outcome)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     outcome,
		"settled_at": &now,
	}
	if reason != "" {
		updates["reason"] = reason
	}

	// 仅当仍为pending时更新，保证终态只进入一次
	result := l.db.Model(&model.TransactionModel{}).
		Where("id = ? AND status = ?", id, model.TxStatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, false, fmt.Errorf("结算交易失败: %w", result.Error)
	}

	tx, err := l.Get(id)
	if err != nil {
		return nil, false, err
	}

	return tx, result.RowsAffected > 0, nil
}

// Get 获取交易记录
func (l *LedgerLogic) Get(id int64) (*model.TransactionModel, error) {
	var tx model.TransactionModel
	if err := l.db.First(&tx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 交易不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取交易失败: %w", err)
	}
	return &tx, nil
}

// GetByExternalRef 根据链上交易哈希获取交易
func (l *LedgerLogic) GetByExternalRef(ref string) (*model.TransactionModel, error) {
	var tx model.TransactionModel
	if err := l.db.Where("external_tx_ref = ?", ref).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 交易不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取交易失败: %w", err)
	}
	return &tx, nil
}

// ExistsByReason 是否已存在相同去重键的交易（failed不算，允许重试）
func (l *LedgerLogic) ExistsByReason(reason string) (bool, error) {
	var count int64
	if err := l.db.Model(&model.TransactionModel{}).
		Where("reason = ? AND status <> ?", reason, model.TxStatusFailed).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询交易去重键失败: %w", err)
	}
	return count > 0, nil
}

// GetByReason 根据去重键获取未失败的交易
func (l *LedgerLogic) GetByReason(reason string) (*model.TransactionModel, error) {
	var tx model.TransactionModel
	err := l.db.Where("reason = ? AND status <> ?", reason, model.TxStatusFailed).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 交易不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取交易失败: %w", err)
	}
	return &tx, nil
}

// List 分页查询交易，默认按创建时间倒序
func (l *LedgerLogic) List(filter TxFilter, page, pageSize int) ([]model.TransactionModel, int64, error) {
	var records []model.TransactionModel
	var total int64

	query := l.db.Model(&model.TransactionModel{})
	if filter.DeveloperId != "" {
		query = query.Where("to_developer = ? OR from_developer = ?", filter.DeveloperId, filter.DeveloperId)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TxType != "" {
		query = query.Where("tx_type = ?", filter.TxType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取交易总数失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).
		Order("created_at DESC, id DESC").
		Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取交易列表失败: %w", err)
	}

	return records, total, nil
}

// ListCompletedByDeveloper 获取开发者全部已完成交易（余额重算用）
func (l *LedgerLogic) ListCompletedByDeveloper(developerId string) ([]model.TransactionModel, error) {
	var records []model.TransactionModel
	if err := l.db.Where("(to_developer = ? OR from_developer = ?) AND status = ?",
		developerId, developerId, model.TxStatusCompleted).
		Order("created_at ASC, id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("获取已完成交易失败: %w", err)
	}
	return records, nil
}

// ListPendingOlderThan 获取超过确认窗口仍为pending的交易
func (l *LedgerLogic) ListPendingOlderThan(cutoff time.Time) ([]model.TransactionModel, error) {
	var records []model.TransactionModel
	if err := l.db.Where("status = ? AND created_at < ?", model.TxStatusPending, cutoff).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("获取超时交易失败: %w", err)
	}
	return records, nil
}

// ListPendingWithRef 获取待链上确认的pending交易
func (l *LedgerLogic) ListPendingWithRef(limit int) ([]model.TransactionModel, error) {
	var records []model.TransactionModel
	if err := l.db.Where("status = ? AND external_tx_ref IS NOT NULL", model.TxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("获取待确认交易失败: %w", err)
	}
	return records, nil
}

// IncrementAttempts 累加链上确认查询次数
func (l *LedgerLogic) IncrementAttempts(id int64) error {
	if err := l.db.Model(&model.TransactionModel{}).Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return fmt.Errorf("更新确认次数失败: %w", err)
	}
	return nil
}

// validate 验证交易数据
func (l *LedgerLogic) validate(tx *model.TransactionModel) error {
	if !model.ValidTxTypes[tx.TxType] {
		return fmt.Errorf("%w: 未知的交易类型 %s", ErrValidation, tx.TxType)
	}
	if tx.ToDeveloper == "" {
		return fmt.Errorf("%w: 交易接收方不能为空", ErrValidation)
	}
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("%w: 交易金额必须大于0", ErrValidation)
	}
	return nil
}
