package handler

import (
	"net/http"
	"strconv"

	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/model"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TransactionHandler struct {
	coordinator *settlement.Coordinator
	ledgerLogic *logic.LedgerLogic
}

func NewTransactionHandler(db *gorm.DB, coordinator *settlement.Coordinator) *TransactionHandler {
	return &TransactionHandler{
		coordinator: coordinator,
		ledgerLogic: logic.NewLedgerLogic(db),
	}
}

// InitiateTransaction 发起链上操作（转账/质押/解除质押/链上兑换）
func (h *TransactionHandler) InitiateTransaction(c *gin.Context) {
	var req InitiateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var tx *model.TransactionModel
	var err error
	switch req.Type {
	case model.TxTypeTransfer:
		tx, err = h.coordinator.InitiateTransfer(c.Request.Context(), req.DeveloperId, req.ToDeveloper, req.Amount)
	case model.TxTypeStake:
		tx, err = h.coordinator.InitiateStake(c.Request.Context(), req.DeveloperId, req.Amount)
	case model.TxTypeUnstake:
		tx, err = h.coordinator.InitiateUnstake(c.Request.Context(), req.DeveloperId)
	case model.TxTypeRedeem:
		tx, err = h.coordinator.InitiateRedeemToChain(c.Request.Context(), req.DeveloperId, req.Amount)
	default:
		ErrorResponse(c, http.StatusBadRequest, "不支持的操作类型")
		return
	}
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusAccepted, "操作已提交，等待链上确认", tx)
}

// ReconcileTransaction 按外部交易引用核销待确认交易
func (h *TransactionHandler) ReconcileTransaction(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Outcome != model.TxStatusCompleted && req.Outcome != model.TxStatusFailed {
		ErrorResponse(c, http.StatusBadRequest, "无效的核销结果")
		return
	}

	tx, err := h.coordinator.Reconcile(req.ExternalTxRef, req.Outcome)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "核销完成", tx)
}

// GetTransaction 获取交易详情
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的交易ID")
		return
	}

	tx, err := h.ledgerLogic.Get(id)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", tx)
}

// GetTransactions 获取交易列表
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	filter := logic.TxFilter{
		DeveloperId: c.Query("developer_id"),
		Status:      c.Query("status"),
		TxType:      c.Query("type"),
	}
	page, pageSize := pageParams(c)

	txs, total, err := h.ledgerLogic.List(filter, page, pageSize)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"pagination":   Pagination(page, pageSize, total),
	})
}
