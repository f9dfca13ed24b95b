package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceModel 开发者余额缓存（对已完成交易的投影）
type BalanceModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DeveloperId   string          `json:"developer_id" gorm:"not null;uniqueIndex"`
	WalletAddress string          `json:"wallet_address"` // 链上地址，用于对账
	Available     decimal.Decimal `json:"available" gorm:"type:numeric(38,18);not null;default:0"`
	Staked        decimal.Decimal `json:"staked" gorm:"type:numeric(38,18);not null;default:0"`
	Reserved      decimal.Decimal `json:"reserved" gorm:"type:numeric(38,18);not null;default:0"` // 兑换申请与在途扣减预留
}

// TableName 自定义表名
func (BalanceModel) TableName() string {
	return "balance"
}
