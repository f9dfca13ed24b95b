package model

import (
	"time"
)

// EvaluationMetricsModel 开发者周期评估指标
type EvaluationMetricsModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DeveloperId string    `json:"developer_id" gorm:"not null;index:idx_metrics_dev_period,unique"`
	PeriodStart time.Time `json:"period_start" gorm:"not null;index:idx_metrics_dev_period,unique"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null;index:idx_metrics_dev_period,unique"`

	TaskCompletion   float64 `json:"task_completion"`   // 0-100
	CodeQuality      float64 `json:"code_quality"`      // 0-100
	Collaboration    float64 `json:"collaboration"`     // 0-100
	CicdSuccess      float64 `json:"cicd_success"`      // 0-100
	KnowledgeSharing float64 `json:"knowledge_sharing"` // 0-100
	OverallScore     float64 `json:"overall_score"`     // 加权综合分

	Status   string `json:"status" gorm:"default:'pending'"` // pending, completed
	Rewarded bool   `json:"rewarded" gorm:"default:false"`   // 该周期是否已发放奖励
}

// TableName 自定义表名
func (EvaluationMetricsModel) TableName() string {
	return "evaluation_metrics"
}

// MetricsStatus 评估指标状态
const (
	MetricsStatusPending   = "pending"   // 等待子指标
	MetricsStatusCompleted = "completed" // 已完成
)

// SubScores 五项子指标
func (m *EvaluationMetricsModel) SubScores() map[string]float64 {
	return map[string]float64{
		"task_completion":   m.TaskCompletion,
		"code_quality":      m.CodeQuality,
		"collaboration":     m.Collaboration,
		"cicd_success":      m.CicdSuccess,
		"knowledge_sharing": m.KnowledgeSharing,
	}
}
