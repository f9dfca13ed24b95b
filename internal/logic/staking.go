package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// hoursPerYear 按365天计年化
var hoursPerYear = decimal.NewFromInt(365 * 24)

// StakingCalculator 质押收益计算器，全程定点运算
type StakingCalculator struct {
	apy decimal.Decimal // 年化收益率百分比（0-100）
}

// NewStakingCalculator 创建质押收益计算器
func NewStakingCalculator(apyPercent float64) (*StakingCalculator, error) {
	if apyPercent < 0 || apyPercent > 100 {
		return nil, fmt.Errorf("%w: APY必须在 [0,100] 内", ErrValidation)
	}
	return &StakingCalculator{apy: decimal.NewFromFloat(apyPercent)}, nil
}

// APY 当前年化收益率百分比
func (s *StakingCalculator) APY() decimal.Decimal {
	return s.apy
}

// PotentialReward 潜在收益 = amount × apy/100 × durationFraction
func (s *StakingCalculator) PotentialReward(amount, durationFraction decimal.Decimal) decimal.Decimal {
	if durationFraction.IsNegative() {
		return decimal.Zero
	}
	return amount.Mul(s.apy).Div(hundred).Mul(durationFraction)
}

// AccruedReward 从质押创建到解除确认的实际收益。
// 经过时间为零或为负时严格返回零。
func (s *StakingCalculator) AccruedReward(amount decimal.Decimal, stakedAt, until time.Time) decimal.Decimal {
	elapsed := until.Sub(stakedAt)
	if elapsed <= 0 {
		return decimal.Zero
	}
	fraction := decimal.NewFromFloat(elapsed.Hours()).Div(hoursPerYear)
	return s.PotentialReward(amount, fraction)
}

// StakingLogic 质押仓位业务逻辑
type StakingLogic struct {
	db   *gorm.DB
	calc *StakingCalculator
}

// NewStakingLogic 创建质押业务逻辑
func NewStakingLogic(db *gorm.DB, calc *StakingCalculator) *StakingLogic {
	return &StakingLogic{db: db, calc: calc}
}

// WithTx 返回在指定事务上操作的副本
func (s *StakingLogic) WithTx(tx *gorm.DB) *StakingLogic {
	return &StakingLogic{db: tx, calc: s.calc}
}

// Calculator 收益计算器
func (s *StakingLogic) Calculator() *StakingCalculator {
	return s.calc
}

// CreatePosition 创建质押仓位（质押交易确认后调用）
func (s *StakingLogic) CreatePosition(developerId string, amount decimal.Decimal, stakeTxId int64) (*model.StakePositionModel, error) {
	position := &model.StakePositionModel{
		DeveloperId:   developerId,
		Amount:        amount,
		Status:        model.StakeStatusActive,
		StakeTxId:     stakeTxId,
		AccruedReward: decimal.Zero,
	}
	if err := s.db.Create(position).Error; err != nil {
		return nil, fmt.Errorf("创建质押仓位失败: %w", err)
	}
	return position, nil
}

// OldestActivePosition 开发者最早的活跃仓位（先进先出解除）
func (s *StakingLogic) OldestActivePosition(developerId string) (*model.StakePositionModel, error) {
	var position model.StakePositionModel
	err := s.db.Where("developer_id = ? AND status = ?", developerId, model.StakeStatusActive).
		Order("created_at ASC, id ASC").
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 没有活跃的质押仓位", ErrNotFound)
		}
		return nil, fmt.Errorf("获取质押仓位失败: %w", err)
	}
	return &position, nil
}

// MarkUnstaking 独占认领仓位：活跃且未被认领的仓位置为unstaking。
// 认领必须在协调器的开发者锁内完成，之后该仓位对其他解除不可见。
func (s *StakingLogic) MarkUnstaking(positionId int64) error {
	result := s.db.Model(&model.StakePositionModel{}).
		Where("id = ? AND status = ? AND unstake_tx_id IS NULL", positionId, model.StakeStatusActive).
		Update("status", model.StakeStatusUnstaking)
	if result.Error != nil {
		return fmt.Errorf("认领质押仓位失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: 质押仓位不可用", ErrNotFound)
	}
	return nil
}

// BindUnstakeTx 将在途解除质押交易绑定到已认领的仓位
func (s *StakingLogic) BindUnstakeTx(positionId, unstakeTxId int64) error {
	result := s.db.Model(&model.StakePositionModel{}).
		Where("id = ? AND status = ? AND unstake_tx_id IS NULL", positionId, model.StakeStatusUnstaking).
		Update("unstake_tx_id", unstakeTxId)
	if result.Error != nil {
		return fmt.Errorf("绑定解除质押交易失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: 质押仓位不可用", ErrNotFound)
	}
	return nil
}

// ClearUnstakeTx 解除质押取消或失败后解绑仓位并恢复为活跃
func (s *StakingLogic) ClearUnstakeTx(positionId int64) error {
	if err := s.db.Model(&model.StakePositionModel{}).
		Where("id = ? AND status = ?", positionId, model.StakeStatusUnstaking).
		Updates(map[string]interface{}{
			"status":        model.StakeStatusActive,
			"unstake_tx_id": nil,
		}).Error; err != nil {
		return fmt.Errorf("解绑解除质押交易失败: %w", err)
	}
	return nil
}

// GetByUnstakeTx 根据在途解除质押交易查找仓位
func (s *StakingLogic) GetByUnstakeTx(unstakeTxId int64) (*model.StakePositionModel, error) {
	var position model.StakePositionModel
	err := s.db.Where("unstake_tx_id = ?", unstakeTxId).First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 质押仓位不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取质押仓位失败: %w", err)
	}
	return &position, nil
}

// OldestUnstakablePosition 最早的未绑定在途解除的活跃仓位
func (s *StakingLogic) OldestUnstakablePosition(developerId string) (*model.StakePositionModel, error) {
	var position model.StakePositionModel
	err := s.db.Where("developer_id = ? AND status = ? AND unstake_tx_id IS NULL", developerId, model.StakeStatusActive).
		Order("created_at ASC, id ASC").
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 没有可解除的质押仓位", ErrNotFound)
		}
		return nil, fmt.Errorf("获取质押仓位失败: %w", err)
	}
	return &position, nil
}

// ClosePosition 关闭在途解除的仓位并记录实际收益
func (s *StakingLogic) ClosePosition(id int64, accrued decimal.Decimal, closedAt time.Time) error {
	result := s.db.Model(&model.StakePositionModel{}).
		Where("id = ? AND status = ?", id, model.StakeStatusUnstaking).
		Updates(map[string]interface{}{
			"status":         model.StakeStatusClosed,
			"accrued_reward": accrued,
			"closed_at":      &closedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("关闭质押仓位失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: 质押仓位不存在或已关闭", ErrNotFound)
	}
	return nil
}

// ListByDeveloper 获取开发者质押仓位
func (s *StakingLogic) ListByDeveloper(developerId string, page, pageSize int) ([]model.StakePositionModel, int64, error) {
	var positions []model.StakePositionModel
	var total int64

	query := s.db.Model(&model.StakePositionModel{}).Where("developer_id = ?", developerId)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取质押仓位总数失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&positions).Error; err != nil {
		return nil, 0, fmt.Errorf("获取质押仓位列表失败: %w", err)
	}

	return positions, total, nil
}
