package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakePositionModel 质押仓位，收益从创建时间起算
type StakePositionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DeveloperId   string          `json:"developer_id" gorm:"not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	Status        string          `json:"status" gorm:"default:'active';index"` // active, unstaking, closed
	StakeTxId     int64           `json:"stake_tx_id" gorm:"not null"`          // 对应质押交易
	UnstakeTxId   *int64          `json:"unstake_tx_id" gorm:"index"`           // 在途解除质押交易
	AccruedReward decimal.Decimal `json:"accrued_reward" gorm:"type:numeric(38,18);not null;default:0"`
	ClosedAt      *time.Time      `json:"closed_at"`
}

// TableName 自定义表名
func (StakePositionModel) TableName() string {
	return "stake_position"
}

// StakeStatus 质押仓位状态
const (
	StakeStatusActive    = "active"    // 质押中
	StakeStatusUnstaking = "unstaking" // 解除质押在途，仓位已被独占
	StakeStatusClosed    = "closed"    // 已解除
)
