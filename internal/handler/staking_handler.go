package handler

import (
	"net/http"

	"github.com/devgrid/rss/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type StakingHandler struct {
	stakingLogic *logic.StakingLogic
}

func NewStakingHandler(stakingLogic *logic.StakingLogic) *StakingHandler {
	return &StakingHandler{
		stakingLogic: stakingLogic,
	}
}

// GetPositions 获取开发者质押仓位列表
func (h *StakingHandler) GetPositions(c *gin.Context) {
	developerId := c.Param("developer_id")
	page, pageSize := pageParams(c)

	positions, total, err := h.stakingLogic.ListByDeveloper(developerId, page, pageSize)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"positions":  positions,
		"pagination": Pagination(page, pageSize, total),
	})
}

// EstimateReward 按本金和期限比例预估质押收益
func (h *StakingHandler) EstimateReward(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || amount.Sign() <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的质押数量")
		return
	}
	fraction, err := decimal.NewFromString(c.DefaultQuery("duration_fraction", "1"))
	if err != nil || fraction.Sign() < 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的期限比例")
		return
	}

	calc := h.stakingLogic.Calculator()
	SuccessResponse(c, http.StatusOK, "获取成功", gin.H{
		"amount":            amount,
		"duration_fraction": fraction,
		"apy":               calc.APY(),
		"potential_reward":  calc.PotentialReward(amount, fraction),
	})
}
