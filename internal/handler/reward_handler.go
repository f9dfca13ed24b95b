package handler

import (
	"fmt"
	"net/http"

	"github.com/devgrid/rss/internal/model"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	coordinator *settlement.Coordinator
}

func NewRewardHandler(coordinator *settlement.Coordinator) *RewardHandler {
	return &RewardHandler{
		coordinator: coordinator,
	}
}

// ComputeRewards 对某开发者某周期执行奖励结算
func (h *RewardHandler) ComputeRewards(c *gin.Context) {
	var req ComputeRewardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.coordinator.ComputeRewardsForPeriod(req.DeveloperId, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "奖励结算完成", batch)
}

// HandleTaskEvent 处理任务完成事件，按事件发放奖励
func (h *RewardHandler) HandleTaskEvent(c *gin.Context) {
	var req TaskEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	event := &model.TaskEvent{
		TaskId:      req.TaskId,
		DeveloperId: req.DeveloperId,
		Difficulty:  req.Difficulty,
		Type:        req.Type,
		Status:      req.Status,
	}
	tx, applied, err := h.coordinator.HandleTaskEvent(event)
	if err != nil {
		FailWithError(c, err)
		return
	}

	message := "奖励发放成功"
	if !applied {
		message = "事件已处理过，跳过重复发放"
	}
	SuccessResponse(c, http.StatusOK, message, tx)
}

// Mint 系统铸造代币到指定开发者
func (h *RewardHandler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount.Sign() <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "铸造数量必须大于0")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = fmt.Sprintf("mint:%s", req.DeveloperId)
	}

	tx, applied, err := h.coordinator.IssueMint(req.DeveloperId, req.Amount, reason)
	if err != nil {
		FailWithError(c, err)
		return
	}

	message := "铸造成功"
	if !applied {
		message = "该铸造已执行过"
	}
	SuccessResponse(c, http.StatusOK, message, tx)
}
