package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devgrid/rss/internal/model"
	"gorm.io/gorm"
)

// MetricNames 五项子指标名称
var MetricNames = []string{
	"task_completion",
	"code_quality",
	"collaboration",
	"cicd_success",
	"knowledge_sharing",
}

// MetricProvider 外部指标采集器（代码托管、CI、问题跟踪等）
type MetricProvider interface {
	// Collect 返回某开发者在周期内的指标值（0-100）
	Collect(ctx context.Context, developerId string, periodStart, periodEnd time.Time) (float64, error)
}

// MetricsLogic 评估指标聚合业务逻辑
type MetricsLogic struct {
	db      *gorm.DB
	weights map[string]float64
}

// NewMetricsLogic 创建评估指标业务逻辑
func NewMetricsLogic(db *gorm.DB, weights map[string]float64) *MetricsLogic {
	if len(weights) == 0 {
		// 默认等权
		weights = make(map[string]float64, len(MetricNames))
		for _, name := range MetricNames {
			weights[name] = 1
		}
	}
	return &MetricsLogic{db: db, weights: weights}
}

// CreateForPeriod 在周期开始时创建pending评估记录
func (m *MetricsLogic) CreateForPeriod(developerId string, periodStart, periodEnd time.Time) (*model.EvaluationMetricsModel, error) {
	if developerId == "" {
		return nil, fmt.Errorf("%w: 开发者ID不能为空", ErrValidation)
	}
	if !periodStart.Before(periodEnd) {
		return nil, fmt.Errorf("%w: 周期开始时间必须早于结束时间", ErrValidation)
	}

	// 同一开发者同一周期只有一条记录
	var existing model.EvaluationMetricsModel
	err := m.db.Where("developer_id = ? AND period_start = ? AND period_end = ?",
		developerId, periodStart, periodEnd).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询评估记录失败: %w", err)
	}

	metrics := &model.EvaluationMetricsModel{
		DeveloperId: developerId,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      model.MetricsStatusPending,
	}
	if err := m.db.Create(metrics).Error; err != nil {
		return nil, fmt.Errorf("创建评估记录失败: %w", err)
	}

	return metrics, nil
}

// CompleteWithScores 填入全部子指标并完成评估（只允许一次）
func (m *MetricsLogic) CompleteWithScores(id int64, scores map[string]float64) (*model.EvaluationMetricsModel, error) {
	metrics, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if metrics.Status == model.MetricsStatusCompleted {
		return nil, fmt.Errorf("%w: 评估已完成，需显式重跑", ErrTerminalState)
	}

	return m.applyScores(metrics, scores)
}

// Rerun 显式重跑：以新的子指标重算已完成的评估
func (m *MetricsLogic) Rerun(id int64, scores map[string]float64) (*model.EvaluationMetricsModel, error) {
	metrics, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return m.applyScores(metrics, scores)
}

// CollectAndComplete 通过外部采集器获取全部子指标并完成评估
func (m *MetricsLogic) CollectAndComplete(ctx context.Context, id int64, providers map[string]MetricProvider) (*model.EvaluationMetricsModel, error) {
	metrics, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if metrics.Status == model.MetricsStatusCompleted {
		return nil, fmt.Errorf("%w: 评估已完成，需显式重跑", ErrTerminalState)
	}

	scores := make(map[string]float64, len(MetricNames))
	for _, name := range MetricNames {
		provider, ok := providers[name]
		if !ok {
			return nil, fmt.Errorf("%w: 缺少指标采集器 %s", ErrValidation, name)
		}
		value, err := provider.Collect(ctx, metrics.DeveloperId, metrics.PeriodStart, metrics.PeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("采集指标 %s 失败: %w", name, err)
		}
		scores[name] = value
	}

	return m.applyScores(metrics, scores)
}

// applyScores 写入子指标并计算综合分
func (m *MetricsLogic) applyScores(metrics *model.EvaluationMetricsModel, scores map[string]float64) (*model.EvaluationMetricsModel, error) {
	for _, name := range MetricNames {
		value, ok := scores[name]
		if !ok {
			return nil, fmt.Errorf("%w: 缺少子指标 %s", ErrValidation, name)
		}
		if value < 0 || value > 100 {
			return nil, fmt.Errorf("%w: 子指标 %s 必须在 [0,100] 内", ErrValidation, name)
		}
	}

	updates := map[string]interface{}{
		"task_completion":   scores["task_completion"],
		"code_quality":      scores["code_quality"],
		"collaboration":     scores["collaboration"],
		"cicd_success":      scores["cicd_success"],
		"knowledge_sharing": scores["knowledge_sharing"],
		"overall_score":     m.OverallScore(scores),
		"status":            model.MetricsStatusCompleted,
	}
	if err := m.db.Model(metrics).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新评估记录失败: %w", err)
	}

	return m.Get(metrics.Id)
}

// OverallScore 计算加权综合分（权重归一化）
func (m *MetricsLogic) OverallScore(scores map[string]float64) float64 {
	var weightSum, total float64
	for _, name := range MetricNames {
		weight := m.weights[name]
		weightSum += weight
		total += scores[name] * weight
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}

// Get 获取评估记录
func (m *MetricsLogic) Get(id int64) (*model.EvaluationMetricsModel, error) {
	var metrics model.EvaluationMetricsModel
	if err := m.db.First(&metrics, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 评估记录不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取评估记录失败: %w", err)
	}
	return &metrics, nil
}

// GetByPeriod 按开发者与周期获取评估记录
func (m *MetricsLogic) GetByPeriod(developerId string, periodStart, periodEnd time.Time) (*model.EvaluationMetricsModel, error) {
	var metrics model.EvaluationMetricsModel
	err := m.db.Where("developer_id = ? AND period_start = ? AND period_end = ?",
		developerId, periodStart, periodEnd).First(&metrics).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 评估记录不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取评估记录失败: %w", err)
	}
	return &metrics, nil
}

// ListByDeveloper 获取开发者的评估记录
func (m *MetricsLogic) ListByDeveloper(developerId string, page, pageSize int) ([]model.EvaluationMetricsModel, int64, error) {
	var records []model.EvaluationMetricsModel
	var total int64

	query := m.db.Model(&model.EvaluationMetricsModel{}).Where("developer_id = ?", developerId)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取评估记录总数失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("period_start DESC").Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("获取评估记录列表失败: %w", err)
	}

	return records, total, nil
}

// ListCompletedUnrewarded 获取已完成但未发放奖励的评估记录
func (m *MetricsLogic) ListCompletedUnrewarded(limit int) ([]model.EvaluationMetricsModel, error) {
	var records []model.EvaluationMetricsModel
	if err := m.db.Where("status = ? AND rewarded = ?", model.MetricsStatusCompleted, false).
		Order("period_end ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("获取待奖励评估记录失败: %w", err)
	}
	return records, nil
}

// MarkRewarded 标记评估记录已发放奖励
func (m *MetricsLogic) MarkRewarded(id int64) error {
	if err := m.db.Model(&model.EvaluationMetricsModel{}).Where("id = ?", id).
		Update("rewarded", true).Error; err != nil {
		return fmt.Errorf("标记评估记录失败: %w", err)
	}
	return nil
}
