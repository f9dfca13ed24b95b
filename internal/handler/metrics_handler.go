package handler

import (
	"net/http"
	"strconv"

	"github.com/devgrid/rss/internal/logic"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MetricsHandler struct {
	metricsLogic *logic.MetricsLogic
}

func NewMetricsHandler(db *gorm.DB, weights map[string]float64) *MetricsHandler {
	return &MetricsHandler{
		metricsLogic: logic.NewMetricsLogic(db, weights),
	}
}

// CreateMetrics 创建开发者周期评估
func (h *MetricsHandler) CreateMetrics(c *gin.Context) {
	var req CreateMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		ErrorResponse(c, http.StatusBadRequest, "周期结束时间必须晚于开始时间")
		return
	}

	metrics, err := h.metricsLogic.CreateForPeriod(req.DeveloperId, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "评估周期创建成功", metrics)
}

// SubmitScores 提交子指标分数并完成评估
func (h *MetricsHandler) SubmitScores(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的评估ID")
		return
	}

	var req SubmitScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.metricsLogic.CompleteWithScores(id, req.Scores)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "评估完成", metrics)
}

// RerunMetrics 重新评估，覆盖已有分数
func (h *MetricsHandler) RerunMetrics(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的评估ID")
		return
	}

	var req SubmitScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.metricsLogic.Rerun(id, req.Scores)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "重新评估完成", metrics)
}

// GetMetrics 获取评估详情
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的评估ID")
		return
	}

	metrics, err := h.metricsLogic.Get(id)
	if err != nil {
		FailWithError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取成功", metrics)
}

// GetDeveloperMetrics 获取开发者评估列表
func (h *MetricsHandler) GetDeveloperMetrics(c *gin.Context) {
	developerId := c.Param("developer_id")
	page, pageSize := pageParams(c)

	records, total, err := h.metricsLogic.ListByDeveloper(developerId, page, pageSize)
	if err != nil {
		FailWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics":    records,
		"pagination": Pagination(page, pageSize, total),
	})
}
