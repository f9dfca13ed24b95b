package logic

import (
	"errors"
	"fmt"

	"github.com/devgrid/rss/internal/model"
	"gorm.io/gorm"
)

// RuleLogic 奖励规则业务逻辑
type RuleLogic struct {
	db *gorm.DB
}

// NewRuleLogic 创建奖励规则业务逻辑
func NewRuleLogic(db *gorm.DB) *RuleLogic {
	return &RuleLogic{db: db}
}

// CreateRule 创建奖励规则
func (r *RuleLogic) CreateRule(rule *model.RewardRuleModel) error {
	if err := r.validateRule(rule); err != nil {
		return err
	}

	if err := r.db.Create(rule).Error; err != nil {
		return fmt.Errorf("创建奖励规则失败: %w", err)
	}

	return nil
}

// UpdateRule 更新奖励规则
func (r *RuleLogic) UpdateRule(rule *model.RewardRuleModel) error {
	if err := r.validateRule(rule); err != nil {
		return err
	}

	var existing model.RewardRuleModel
	if err := r.db.First(&existing, rule.Id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: 规则不存在", ErrNotFound)
		}
		return err
	}

	if err := r.db.Model(&existing).Updates(map[string]interface{}{
		"name":         rule.Name,
		"category":     rule.Category,
		"metric_type":  rule.MetricType,
		"token_amount": rule.TokenAmount,
		"enabled":      rule.Enabled,
		"conditions":   rule.Conditions,
	}).Error; err != nil {
		return fmt.Errorf("更新奖励规则失败: %w", err)
	}

	return nil
}

// SetEnabled 启用或停用规则
func (r *RuleLogic) SetEnabled(id int64, enabled bool) error {
	result := r.db.Model(&model.RewardRuleModel{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("更新规则状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: 规则不存在", ErrNotFound)
	}
	return nil
}

// GetRule 获取单条规则
func (r *RuleLogic) GetRule(id int64) (*model.RewardRuleModel, error) {
	var rule model.RewardRuleModel
	if err := r.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 规则不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("获取规则失败: %w", err)
	}
	return &rule, nil
}

// GetRules 获取规则列表
func (r *RuleLogic) GetRules(category string, page, pageSize int) ([]model.RewardRuleModel, int64, error) {
	var rules []model.RewardRuleModel
	var total int64

	query := r.db.Model(&model.RewardRuleModel{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取规则总数失败: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&rules).Error; err != nil {
		return nil, 0, fmt.Errorf("获取规则列表失败: %w", err)
	}

	return rules, total, nil
}

// GetEnabledRules 获取全部启用规则（结算路径只读）
func (r *RuleLogic) GetEnabledRules() ([]model.RewardRuleModel, error) {
	var rules []model.RewardRuleModel
	if err := r.db.Where("enabled = ?", true).Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("获取启用规则失败: %w", err)
	}
	return rules, nil
}

// validateRule 验证规则数据
func (r *RuleLogic) validateRule(rule *model.RewardRuleModel) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: 规则名称不能为空", ErrValidation)
	}
	if !model.ValidRuleCategories[rule.Category] {
		return fmt.Errorf("%w: 未知的规则分类 %s", ErrValidation, rule.Category)
	}
	if !model.ValidMetricTypes[rule.MetricType] {
		return fmt.Errorf("%w: 未知的指标类型 %s", ErrValidation, rule.MetricType)
	}
	if rule.TokenAmount.IsNegative() {
		return fmt.Errorf("%w: 代币数量不能为负", ErrValidation)
	}

	conditions, err := rule.ParseConditions()
	if err != nil {
		return fmt.Errorf("%w: 条件格式错误: %v", ErrValidation, err)
	}

	// count/percentage 需要有效区间，max_value为0表示无上限
	if rule.MetricType == model.MetricTypeCount || rule.MetricType == model.MetricTypePercentage {
		if conditions.MaxValue > 0 && conditions.MinValue > conditions.MaxValue {
			return fmt.Errorf("%w: min_value 不能大于 max_value", ErrValidation)
		}
	}
	if rule.MetricType == model.MetricTypePercentage {
		if conditions.MinValue < 0 || conditions.MaxValue > 100 {
			return fmt.Errorf("%w: 百分比区间必须在 [0,100] 内", ErrValidation)
		}
	}

	switch conditions.Difficulty {
	case model.TaskDifficultyAny, model.TaskDifficultyEasy, model.TaskDifficultyMedium, model.TaskDifficultyHard:
	default:
		return fmt.Errorf("%w: 未知的任务难度 %s", ErrValidation, conditions.Difficulty)
	}

	switch conditions.TaskType {
	case model.TaskTypeAny, model.TaskTypeFeature, model.TaskTypeBug, model.TaskTypeImprovement:
	default:
		return fmt.Errorf("%w: 未知的任务类型 %s", ErrValidation, conditions.TaskType)
	}

	return nil
}
