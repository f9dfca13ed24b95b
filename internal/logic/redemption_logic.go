package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/model"
	"gorm.io/gorm"
)

// RedemptionLogic 兑换申请业务逻辑。申请创建时即预留金额，
// 防止审批期间重复花费；驳回退回预留，批准最终扣减。
// 变更方法必须在结算协调器的开发者锁内调用。
type RedemptionLogic struct {
	db           *gorm.DB
	balanceLogic *BalanceLogic
	ledgerLogic  *LedgerLogic
}

// NewRedemptionLogic 创建兑换业务逻辑
func NewRedemptionLogic(db *gorm.DB, balanceLogic *BalanceLogic, ledgerLogic *LedgerLogic) *RedemptionLogic {
	return &RedemptionLogic{db: db, balanceLogic: balanceLogic, ledgerLogic: ledgerLogic}
}

// CreateRequest 创建兑换申请并原子预留金额
func (r *RedemptionLogic) CreateRequest(req *model.RedemptionRequestModel) error {
	if req.DeveloperId == "" {
		return fmt.Errorf("%w: 开发者ID不能为空", ErrValidation)
	}
	if !model.ValidRedeemTypes[req.RedeemType] {
		return fmt.Errorf("%w: 未知的兑换类型 %s", ErrValidation, req.RedeemType)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: 兑换金额必须大于0", ErrValidation)
	}

	// 先预留：余额不足在此拒绝，不产生任何记录
	if err := r.balanceLogic.Reserve(req.DeveloperId, req.Amount); err != nil {
		return err
	}

	req.Status = model.RedemptionStatusPending
	if err := r.db.Create(req).Error; err != nil {
		// 创建失败时退回预留
		if releaseErr := r.balanceLogic.ReleaseToAvailable(req.DeveloperId, req.Amount); releaseErr != nil {
			logger.Error("Failed to release reservation after create failure for developer %s: %v",
				req.DeveloperId, releaseErr)
		}
		return fmt.Errorf("创建兑换申请失败: %w", err)
	}

	return nil
}

// Approve 批准兑换：预留转为已完成的redeem交易，扣减永久生效
func (r *RedemptionLogic) Approve(id int64, approver string) (*model.RedemptionRequestModel, error) {
	req, err := r.claimDecision(id, model.RedemptionStatusApproved, approver, "")
	if err != nil {
		return nil, err
	}

	from := req.DeveloperId
	tx := &model.TransactionModel{
		TxType:        model.TxTypeRedeem,
		FromDeveloper: &from,
		ToDeveloper:   req.DeveloperId,
		Amount:        req.Amount,
		Reason:        fmt.Sprintf("redeem:request:%d", req.Id),
	}
	if err := r.ledgerLogic.Create(tx); err != nil {
		return nil, err
	}
	if _, _, err := r.ledgerLogic.Settle(tx.Id, model.TxStatusCompleted, ""); err != nil {
		return nil, err
	}

	if err := r.balanceLogic.ConsumeReserved(req.DeveloperId, req.Amount); err != nil {
		return nil, err
	}

	if err := r.db.Model(req).Update("transaction_id", tx.Id).Error; err != nil {
		return nil, fmt.Errorf("关联兑换交易失败: %w", err)
	}
	req.TransactionId = &tx.Id

	return req, nil
}

// Reject 驳回兑换：退回预留，必须给出非空驳回原因
func (r *RedemptionLogic) Reject(id int64, rejecter, reason string) (*model.RedemptionRequestModel, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: 驳回原因不能为空", ErrValidation)
	}

	req, err := r.claimDecision(id, model.RedemptionStatusRejected, rejecter, reason)
	if err != nil {
		return nil, err
	}

	if err := r.balanceLogic.ReleaseToAvailable(req.DeveloperId, req.Amount); err != nil {
		return nil, err
	}

	return req, nil
}

// claimDecision 抢占唯一的终态转换。对已终态申请的再次审批
// 返回错误（审批人必须看到），不是静默no-op。
func (r *RedemptionLogic) claimDecision(id int64, status, decider, reason string) (*model.RedemptionRequestModel, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"decided_at": &now,
	}
	switch status {
	case model.RedemptionStatusApproved:
		updates["approved_by"] = decider
	case model.RedemptionStatusRejected:
		updates["rejected_by"] = decider
		updates["rejection_reason"] = reason
	}

	result := r.db.Model(&model.RedemptionRequestModel{}).
		Where("id = ? AND status = ?", id, model.RedemptionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("更新兑换申请失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// 区分不存在与已终态
		if _, err := r.Get(id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: 兑换申请已审批", ErrTerminalState)
	}

	return r.Get(id)
}

// Get 获取兑换申请
func (r *RedemptionLogic) Get(id int64) (*model.RedemptionRequestModel, error) {
	var req model.RedemptionRequestModel
	if err := r.db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 兑换申请不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取兑换申请失败: %w", err)
	}
	return &req, nil
}

// List 分页查询兑换申请
func (r *RedemptionLogic) List(developerId, status string, page, pageSize int) ([]model.RedemptionRequestModel, int64, error) {
	var records []model.RedemptionRequestModel
	var total int64

	query := r.db.Model(&model.RedemptionRequestModel{})
	if developerId != "" {
		query = query.Where("developer_id = ?", developerId)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取兑换申请总数失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取兑换申请列表失败: %w", err)
	}

	return records, total, nil
}
