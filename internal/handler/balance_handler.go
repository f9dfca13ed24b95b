package handler

import (
	"net/http"

	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BalanceHandler struct {
	coordinator  *settlement.Coordinator
	balanceLogic *logic.BalanceLogic
}

func NewBalanceHandler(db *gorm.DB, coordinator *settlement.Coordinator) *BalanceHandler {
	return &BalanceHandler{
		coordinator:  coordinator,
		balanceLogic: logic.NewBalanceLogic(db),
	}
}

// GetBalance 获取开发者余额
func (h *BalanceHandler) GetBalance(c *gin.Context) {
	developerId := c.Param("developer_id")

	balance, err := h.coordinator.GetBalance(developerId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", balance)
}

// RecomputeBalance 对账，按账本重放余额并比对链上余额
func (h *BalanceHandler) RecomputeBalance(c *gin.Context) {
	developerId := c.Param("developer_id")

	report, err := h.coordinator.RecomputeBalance(c.Request.Context(), developerId)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "对账完成", report)
}

// BindWallet 绑定开发者链上钱包地址
func (h *BalanceHandler) BindWallet(c *gin.Context) {
	developerId := c.Param("developer_id")

	var req BindWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.balanceLogic.SetWalletAddress(developerId, req.WalletAddress); err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "钱包绑定成功", nil)
}
