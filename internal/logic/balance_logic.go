package logic

import (
	"errors"
	"fmt"

	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceDiscrepancy 余额核对差异
type BalanceDiscrepancy struct {
	Field    string          `json:"field"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// BalanceReport 余额重算报告。发现差异只上报，从不静默修正。
type BalanceReport struct {
	DeveloperId       string               `json:"developer_id"`
	CachedAvailable   decimal.Decimal      `json:"cached_available"`
	CachedStaked      decimal.Decimal      `json:"cached_staked"`
	CachedReserved    decimal.Decimal      `json:"cached_reserved"`
	ComputedAvailable decimal.Decimal      `json:"computed_available"`
	ComputedStaked    decimal.Decimal      `json:"computed_staked"`
	ComputedReserved  decimal.Decimal      `json:"computed_reserved"`
	OnChainBalance    *decimal.Decimal     `json:"on_chain_balance,omitempty"`
	Discrepancies     []BalanceDiscrepancy `json:"discrepancies"`
}

// BalanceLogic 余额缓存业务逻辑。所有变更方法必须在结算协调器
// 的开发者锁内调用。
type BalanceLogic struct {
	db *gorm.DB
}

// NewBalanceLogic 创建余额业务逻辑
func NewBalanceLogic(db *gorm.DB) *BalanceLogic {
	return &BalanceLogic{db: db}
}

// WithTx 返回在指定事务上操作的副本
func (b *BalanceLogic) WithTx(tx *gorm.DB) *BalanceLogic {
	return &BalanceLogic{db: tx}
}

// GetOrCreate 获取开发者余额，不存在则创建零余额记录
func (b *BalanceLogic) GetOrCreate(developerId string) (*model.BalanceModel, error) {
	if developerId == "" {
		return nil, fmt.Errorf("%w: 开发者ID不能为空", ErrValidation)
	}

	var balance model.BalanceModel
	err := b.db.Where("developer_id = ?", developerId).First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("获取余额失败: %w", err)
	}

	balance = model.BalanceModel{
		DeveloperId: developerId,
		Available:   decimal.Zero,
		Staked:      decimal.Zero,
		Reserved:    decimal.Zero,
	}
	if err := b.db.Create(&balance).Error; err != nil {
		return nil, fmt.Errorf("创建余额记录失败: %w", err)
	}

	return &balance, nil
}

// Get 获取开发者余额
func (b *BalanceLogic) Get(developerId string) (*model.BalanceModel, error) {
	var balance model.BalanceModel
	if err := b.db.Where("developer_id = ?", developerId).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 余额记录不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取余额失败: %w", err)
	}
	return &balance, nil
}

// SetWalletAddress 绑定链上地址（对账时使用）
func (b *BalanceLogic) SetWalletAddress(developerId, address string) error {
	balance, err := b.GetOrCreate(developerId)
	if err != nil {
		return err
	}
	if err := b.db.Model(balance).Update("wallet_address", address).Error; err != nil {
		return fmt.Errorf("绑定钱包地址失败: %w", err)
	}
	return nil
}

// Credit 增加可用余额
func (b *BalanceLogic) Credit(developerId string, amount decimal.Decimal) error {
	return b.adjust(developerId, amount, decimal.Zero, decimal.Zero)
}

// Reserve 从可用余额中预留。余额不足时在创建任何交易之前拒绝。
func (b *BalanceLogic) Reserve(developerId string, amount decimal.Decimal) error {
	return b.adjust(developerId, amount.Neg(), decimal.Zero, amount)
}

// ReserveStaked 从质押余额中预留（解除质押在途）
func (b *BalanceLogic) ReserveStaked(developerId string, amount decimal.Decimal) error {
	return b.adjust(developerId, decimal.Zero, amount.Neg(), amount)
}

// ReleaseToAvailable 预留回退到可用余额（失败/驳回）
func (b *BalanceLogic) ReleaseToAvailable(developerId string, amount decimal.Decimal) error {
	return b.adjust(developerId, amount, decimal.Zero, amount.Neg())
}

// ReleaseToStaked 预留回退到质押余额（解除质押失败）
func (b *BalanceLogic) ReleaseToStaked(developerId string, amount decimal.Decimal) error {
	return b.adjust(developerId, decimal.Zero, amount, amount.Neg())
}

// ConsumeReserved 预留最终扣减（转出/兑换完成）
func (b *BalanceLogic) ConsumeReserved(developerId string, amount decimal.Decimal) error {
	return b.adjust(developerId, decimal.Zero, decimal.Zero, amount.Neg())
}

// ReservedToStaked 预留转入质押（质押完成）
func (b *BalanceLogic) ReservedToStaked(developerId string, amount decimal.Decimal) error {
	return b.adjust(developerId, decimal.Zero, amount, amount.Neg())
}

// ReservedToAvailable 预留转回可用并追加收益（解除质押完成）
func (b *BalanceLogic) ReservedToAvailable(developerId string, amount, accrued decimal.Decimal) error {
	return b.adjust(developerId, amount.Add(accrued), decimal.Zero, amount.Neg())
}

// adjust 应用余额变更，任何桶变为负数即拒绝整个变更
func (b *BalanceLogic) adjust(developerId string, availableDelta, stakedDelta, reservedDelta decimal.Decimal) error {
	balance, err := b.GetOrCreate(developerId)
	if err != nil {
		return err
	}

	available := balance.Available.Add(availableDelta)
	staked := balance.Staked.Add(stakedDelta)
	reserved := balance.Reserved.Add(reservedDelta)

	if available.IsNegative() {
		return fmt.Errorf("%w: 可用余额不足 (余额 %s, 需要 %s)",
			ErrInsufficientBalance, balance.Available.String(), availableDelta.Neg().String())
	}
	if staked.IsNegative() {
		return fmt.Errorf("%w: 质押余额不足 (余额 %s, 需要 %s)",
			ErrInsufficientBalance, balance.Staked.String(), stakedDelta.Neg().String())
	}
	if reserved.IsNegative() {
		return fmt.Errorf("%w: 预留余额不足", ErrInsufficientBalance)
	}

	if err := b.db.Model(balance).Updates(map[string]interface{}{
		"available": available,
		"staked":    staked,
		"reserved":  reserved,
	}).Error; err != nil {
		return fmt.Errorf("更新余额失败: %w", err)
	}

	return nil
}

// Recompute 从账本重算余额投影并与缓存比对。onChain为链上余额
// （可用+质押的权威总量），为nil时跳过链上比对。
func (b *BalanceLogic) Recompute(developerId string, onChain *decimal.Decimal) (*BalanceReport, error) {
	balance, err := b.GetOrCreate(developerId)
	if err != nil {
		return nil, err
	}

	available, staked := decimal.Zero, decimal.Zero

	// 回放全部已完成交易
	var completed []model.TransactionModel
	if err := b.db.Where("(to_developer = ? OR from_developer = ?) AND status = ?",
		developerId, developerId, model.TxStatusCompleted).
		Order("created_at ASC, id ASC").
		Find(&completed).Error; err != nil {
		return nil, fmt.Errorf("回放账本失败: %w", err)
	}

	for _, tx := range completed {
		incoming := tx.ToDeveloper == developerId
		outgoing := tx.FromDeveloper != nil && *tx.FromDeveloper == developerId

		switch tx.TxType {
		case model.TxTypeReward, model.TxTypeMint:
			if incoming {
				available = available.Add(tx.Amount)
			}
		case model.TxTypeTransfer:
			if outgoing {
				available = available.Sub(tx.Amount)
			}
			if incoming {
				available = available.Add(tx.Amount)
			}
		case model.TxTypeStake:
			if outgoing {
				available = available.Sub(tx.Amount)
				staked = staked.Add(tx.Amount)
			}
		case model.TxTypeUnstake:
			if outgoing {
				staked = staked.Sub(tx.Amount)
				available = available.Add(tx.Amount)
			}
		case model.TxTypeRedeem:
			if outgoing {
				available = available.Sub(tx.Amount)
			}
		}
	}

	// 在途预留：pending的扣减型交易
	reserved := decimal.Zero
	var pendingDebits []model.TransactionModel
	if err := b.db.Where("from_developer = ? AND status = ?", developerId, model.TxStatusPending).
		Find(&pendingDebits).Error; err != nil {
		return nil, fmt.Errorf("查询在途交易失败: %w", err)
	}
	for _, tx := range pendingDebits {
		switch tx.TxType {
		case model.TxTypeTransfer, model.TxTypeStake, model.TxTypeRedeem:
			available = available.Sub(tx.Amount)
			reserved = reserved.Add(tx.Amount)
		case model.TxTypeUnstake:
			staked = staked.Sub(tx.Amount)
			reserved = reserved.Add(tx.Amount)
		}
	}

	// 待审批兑换申请的预留
	var pendingRedemptions []model.RedemptionRequestModel
	if err := b.db.Where("developer_id = ? AND status = ?", developerId, model.RedemptionStatusPending).
		Find(&pendingRedemptions).Error; err != nil {
		return nil, fmt.Errorf("查询待审批兑换失败: %w", err)
	}
	for _, req := range pendingRedemptions {
		available = available.Sub(req.Amount)
		reserved = reserved.Add(req.Amount)
	}

	report := &BalanceReport{
		DeveloperId:       developerId,
		CachedAvailable:   balance.Available,
		CachedStaked:      balance.Staked,
		CachedReserved:    balance.Reserved,
		ComputedAvailable: available,
		ComputedStaked:    staked,
		ComputedReserved:  reserved,
		OnChainBalance:    onChain,
	}

	if !available.Equal(balance.Available) {
		report.Discrepancies = append(report.Discrepancies, BalanceDiscrepancy{
			Field: "available", Expected: available, Actual: balance.Available,
		})
	}
	if !staked.Equal(balance.Staked) {
		report.Discrepancies = append(report.Discrepancies, BalanceDiscrepancy{
			Field: "staked", Expected: staked, Actual: balance.Staked,
		})
	}
	if !reserved.Equal(balance.Reserved) {
		report.Discrepancies = append(report.Discrepancies, BalanceDiscrepancy{
			Field: "reserved", Expected: reserved, Actual: balance.Reserved,
		})
	}
	if onChain != nil {
		// 链上余额是可用+质押+预留的权威总量
		local := available.Add(staked).Add(reserved)
		if !local.Equal(*onChain) {
			report.Discrepancies = append(report.Discrepancies, BalanceDiscrepancy{
				Field: "on_chain_total", Expected: *onChain, Actual: local,
			})
		}
	}

	return report, nil
}
