package handler

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CreateRuleRequest 创建/更新奖励规则请求
type CreateRuleRequest struct {
	Name        string          `json:"name" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	MetricType  string          `json:"metric_type" binding:"required"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	Enabled     *bool           `json:"enabled"`
	Conditions  datatypes.JSON  `json:"conditions"`
}

// CreateMetricsRequest 创建周期评估请求
type CreateMetricsRequest struct {
	DeveloperId string    `json:"developer_id" binding:"required"`
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
}

// SubmitScoresRequest 提交子指标请求
type SubmitScoresRequest struct {
	Scores map[string]float64 `json:"scores" binding:"required"`
}

// ComputeRewardsRequest 周期奖励结算请求
type ComputeRewardsRequest struct {
	DeveloperId string    `json:"developer_id" binding:"required"`
	PeriodStart time.Time `json:"period_start" binding:"required"`
	PeriodEnd   time.Time `json:"period_end" binding:"required"`
}

// TaskEventRequest 任务事件请求
type TaskEventRequest struct {
	TaskId      string `json:"task_id" binding:"required"`
	DeveloperId string `json:"developer_id" binding:"required"`
	Difficulty  string `json:"difficulty" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Status      string `json:"status" binding:"required"`
}

// InitiateOperationRequest 发起转账/质押/解除质押/链上兑换请求
type InitiateOperationRequest struct {
	Type        string          `json:"type" binding:"required"`
	DeveloperId string          `json:"developer_id" binding:"required"`
	ToDeveloper string          `json:"to_developer"`
	Amount      decimal.Decimal `json:"amount"`
}

// ReconcileRequest 外部确认核销请求
type ReconcileRequest struct {
	ExternalTxRef string `json:"external_tx_ref" binding:"required"`
	Outcome       string `json:"outcome" binding:"required"` // completed, failed
}

// MintRequest 系统铸造请求
type MintRequest struct {
	DeveloperId string          `json:"developer_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
}

// CreateRedemptionRequest 创建兑换申请请求
type CreateRedemptionRequest struct {
	DeveloperId string          `json:"developer_id" binding:"required"`
	RedeemType  string          `json:"redeem_type" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Details     string          `json:"details"`
}

// DecideRedemptionRequest 审批兑换申请请求
type DecideRedemptionRequest struct {
	Approve bool   `json:"approve"`
	Decider string `json:"decider" binding:"required"`
	Reason  string `json:"reason"`
}

// BindWalletRequest 绑定钱包地址请求
type BindWalletRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// parsePositiveInt 解析正整数，失败时返回默认值
func parsePositiveInt(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
