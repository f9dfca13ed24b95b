package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionModel 交易账本记录（只追加，不删除）
type TransactionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	TxType        string          `json:"tx_type" gorm:"not null;index"` // reward, transfer, stake, unstake, redeem, mint
	FromDeveloper *string         `json:"from_developer" gorm:"index"`   // 为空表示系统发放
	ToDeveloper   string          `json:"to_developer" gorm:"not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	Status        string          `json:"status" gorm:"default:'pending';index"` // pending, completed, failed
	Reason        string          `json:"reason" gorm:"index"`
	ExternalTxRef *string         `json:"external_tx_ref" gorm:"uniqueIndex"` // 链上交易哈希，提交后填入
	Attempts      int             `json:"attempts" gorm:"default:0"`          // 链上确认查询次数
	SettledAt     *time.Time      `json:"settled_at"`
}

// TableName 自定义表名
func (TransactionModel) TableName() string {
	return "transaction"
}

// TxType 交易类型
const (
	TxTypeReward   = "reward"   // 系统奖励发放
	TxTypeTransfer = "transfer" // 开发者间转账
	TxTypeStake    = "stake"    // 质押
	TxTypeUnstake  = "unstake"  // 解除质押
	TxTypeRedeem   = "redeem"   // 兑换
	TxTypeMint     = "mint"     // 系统铸造
)

// TxStatus 交易状态
const (
	TxStatusPending   = "pending"   // 待确认
	TxStatusCompleted = "completed" // 已完成
	TxStatusFailed    = "failed"    // 已失败
)

// ValidTxTypes 合法的交易类型
var ValidTxTypes = map[string]bool{
	TxTypeReward:   true,
	TxTypeTransfer: true,
	TxTypeStake:    true,
	TxTypeUnstake:  true,
	TxTypeRedeem:   true,
	TxTypeMint:     true,
}

// IsTerminal 是否已到终态
func (t *TransactionModel) IsTerminal() bool {
	return t.Status == TxStatusCompleted || t.Status == TxStatusFailed
}
