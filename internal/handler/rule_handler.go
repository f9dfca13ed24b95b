package handler

import (
	"net/http"
	"strconv"

	"github.com/devgrid/rss/internal/logic"
	"github.com/devgrid/rss/internal/model"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RuleHandler struct {
	ruleLogic *logic.RuleLogic
}

func NewRuleHandler(db *gorm.DB) *RuleHandler {
	return &RuleHandler{
		ruleLogic: logic.NewRuleLogic(db),
	}
}

// CreateRule 创建奖励规则
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &model.RewardRuleModel{
		Name:        req.Name,
		Category:    req.Category,
		MetricType:  req.MetricType,
		TokenAmount: req.TokenAmount,
		Enabled:     enabled,
		Conditions:  req.Conditions,
	}

	// 调用logic层创建规则
	if err := h.ruleLogic.CreateRule(rule); err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "规则创建成功", rule)
}

// UpdateRule 更新奖励规则
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的规则ID")
		return
	}

	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := h.ruleLogic.GetRule(id)
	if err != nil {
		FailWithError(c, err)
		return
	}
	rule.Name = req.Name
	rule.Category = req.Category
	rule.MetricType = req.MetricType
	rule.TokenAmount = req.TokenAmount
	rule.Conditions = req.Conditions
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.ruleLogic.UpdateRule(rule); err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "规则更新成功", rule)
}

// SetRuleEnabled 启用/禁用规则
func (h *RuleHandler) SetRuleEnabled(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的规则ID")
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ruleLogic.SetEnabled(id, *req.Enabled); err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "规则状态更新成功", nil)
}

// GetRule 获取单条规则详情
func (h *RuleHandler) GetRule(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的规则ID")
		return
	}

	rule, err := h.ruleLogic.GetRule(id)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", rule)
}

// GetRules 获取规则列表
func (h *RuleHandler) GetRules(c *gin.Context) {
	category := c.Query("category")
	page, pageSize := pageParams(c)

	rules, total, err := h.ruleLogic.GetRules(category, page, pageSize)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules":      rules,
		"pagination": Pagination(page, pageSize, total),
	})
}
