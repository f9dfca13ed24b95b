package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RewardRuleModel 奖励规则
type RewardRuleModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string          `json:"name" gorm:"not null"`
	Category    string          `json:"category" gorm:"not null;index"`         // task, code, collaboration, cicd, knowledge, general
	MetricType  string          `json:"metric_type" gorm:"not null"`            // count, percentage, boolean
	TokenAmount decimal.Decimal `json:"token_amount" gorm:"type:numeric(38,18);not null"` // 单条规则触发时发放的代币数量
	Enabled     bool            `json:"enabled" gorm:"default:true;index"`
	Conditions  datatypes.JSON  `json:"conditions" gorm:"type:jsonb"` // 触发条件，加载时解析校验
}

// TableName 自定义表名
func (RewardRuleModel) TableName() string {
	return "reward_rule"
}

// RuleConditions 规则触发条件
type RuleConditions struct {
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	Difficulty string  `json:"difficulty"` // any, easy, medium, hard
	TaskType   string  `json:"task_type"`  // any, feature, bug, improvement
}

// ParseConditions 解析条件JSON
func (r *RewardRuleModel) ParseConditions() (*RuleConditions, error) {
	conditions := &RuleConditions{
		Difficulty: TaskDifficultyAny,
		TaskType:   TaskTypeAny,
	}
	if len(r.Conditions) == 0 {
		return conditions, nil
	}
	if err := json.Unmarshal(r.Conditions, conditions); err != nil {
		return nil, err
	}
	if conditions.Difficulty == "" {
		conditions.Difficulty = TaskDifficultyAny
	}
	if conditions.TaskType == "" {
		conditions.TaskType = TaskTypeAny
	}
	return conditions, nil
}

// RuleCategory 规则分类
const (
	RuleCategoryTask          = "task"          // 任务完成
	RuleCategoryCode          = "code"          // 代码质量
	RuleCategoryCollaboration = "collaboration" // 协作
	RuleCategoryCicd          = "cicd"          // CI/CD
	RuleCategoryKnowledge     = "knowledge"     // 知识分享
	RuleCategoryGeneral       = "general"       // 通用
)

// MetricType 指标类型
const (
	MetricTypeCount      = "count"      // 计数
	MetricTypePercentage = "percentage" // 百分比
	MetricTypeBoolean    = "boolean"    // 布尔
)

// ValidRuleCategories 合法的规则分类
var ValidRuleCategories = map[string]bool{
	RuleCategoryTask:          true,
	RuleCategoryCode:          true,
	RuleCategoryCollaboration: true,
	RuleCategoryCicd:          true,
	RuleCategoryKnowledge:     true,
	RuleCategoryGeneral:       true,
}

// ValidMetricTypes 合法的指标类型
var ValidMetricTypes = map[string]bool{
	MetricTypeCount:      true,
	MetricTypePercentage: true,
	MetricTypeBoolean:    true,
}
