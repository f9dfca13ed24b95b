package handler

import (
	"net/http"
	"strconv"

	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/model"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/gin-gonic/gin"
)

type RedemptionHandler struct {
	coordinator     *settlement.Coordinator
	redemptionLogic *logic.RedemptionLogic
}

func NewRedemptionHandler(coordinator *settlement.Coordinator, redemptionLogic *logic.RedemptionLogic) *RedemptionHandler {
	return &RedemptionHandler{
		coordinator:     coordinator,
		redemptionLogic: redemptionLogic,
	}
}

// CreateRedemption 创建兑换申请，冻结对应余额
func (h *RedemptionHandler) CreateRedemption(c *gin.Context) {
	var req CreateRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	request := &model.RedemptionRequestModel{
		DeveloperId: req.DeveloperId,
		RedeemType:  req.RedeemType,
		Amount:      req.Amount,
		Details:     req.Details,
	}
	if err := h.coordinator.CreateRedemption(request); err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "兑换申请创建成功", request)
}

// DecideRedemption 审批兑换申请
func (h *RedemptionHandler) DecideRedemption(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的申请ID")
		return
	}

	var req DecideRedemptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Approve && req.Reason == "" {
		ErrorResponse(c, http.StatusBadRequest, "拒绝申请必须填写原因")
		return
	}

	request, err := h.coordinator.DecideRedemption(id, req.Approve, req.Decider, req.Reason)
	if err != nil {
		FailWithError(c, err)
		return
	}

	message := "申请已批准"
	if !req.Approve {
		message = "申请已拒绝"
	}
	SuccessResponse(c, http.StatusOK, message, request)
}

// GetRedemption 获取兑换申请详情
func (h *RedemptionHandler) GetRedemption(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的申请ID")
		return
	}

	request, err := h.redemptionLogic.Get(id)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", request)
}

// GetRedemptions 获取兑换申请列表
func (h *RedemptionHandler) GetRedemptions(c *gin.Context) {
	developerId := c.Query("developer_id")
	status := c.Query("status")
	page, pageSize := pageParams(c)

	requests, total, err := h.redemptionLogic.List(developerId, status, page, pageSize)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redemptions": requests,
		"pagination":  Pagination(page, pageSize, total),
	})
}
