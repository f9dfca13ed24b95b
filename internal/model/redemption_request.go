package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RedemptionRequestModel 兑换申请
type RedemptionRequestModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DeveloperId     string          `json:"developer_id" gorm:"not null;index"`
	RedeemType      string          `json:"redeem_type" gorm:"not null"` // monetary, career, benefits
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	Details         string          `json:"details" gorm:"type:text"`
	Status          string          `json:"status" gorm:"default:'pending';index"` // pending, approved, rejected
	ApprovedBy      string          `json:"approved_by"`
	RejectedBy      string          `json:"rejected_by"`
	RejectionReason string          `json:"rejection_reason"`
	TransactionId   *int64          `json:"transaction_id"` // 批准后生成的redeem交易
	DecidedAt       *time.Time      `json:"decided_at"`
}

// TableName 自定义表名
func (RedemptionRequestModel) TableName() string {
	return "redemption_request"
}

// RedemptionStatus 兑换申请状态
const (
	RedemptionStatusPending  = "pending"  // 待审批
	RedemptionStatusApproved = "approved" // 已批准
	RedemptionStatusRejected = "rejected" // 已驳回
)

// RedeemType 兑换类型
const (
	RedeemTypeMonetary = "monetary" // 货币
	RedeemTypeCareer   = "career"   // 职业发展
	RedeemTypeBenefits = "benefits" // 福利
)

// ValidRedeemTypes 合法的兑换类型
var ValidRedeemTypes = map[string]bool{
	RedeemTypeMonetary: true,
	RedeemTypeCareer:   true,
	RedeemTypeBenefits: true,
}
