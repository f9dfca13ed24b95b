package logic

import (
	"fmt"

	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RuleAward 单条规则的发放结果
type RuleAward struct {
	Rule   model.RewardRuleModel `json:"rule"`
	Amount decimal.Decimal       `json:"amount"`
	Reason string                `json:"reason"` // 确定性的去重键
}

// RewardEngine 奖励规则引擎。求值是纯函数：相同输入必得相同输出，
// 不读时钟、不产生随机数。
type RewardEngine struct {
	baseRewards       map[string]decimal.Decimal // 按任务难度的基础奖励
	typeMultipliers   map[string]int64           // 任务类型乘数（基点）
	statusMultipliers map[string]int64           // 任务状态乘数（基点）
}

// NewRewardEngine 从配置创建规则引擎
func NewRewardEngine(cfg config.RewardConfig) (*RewardEngine, error) {
	baseRewards := make(map[string]decimal.Decimal, len(cfg.BaseRewards))
	for difficulty, raw := range cfg.BaseRewards {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: 难度 %s 的基础奖励 %q 无法解析", ErrValidation, difficulty, raw)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w: 难度 %s 的基础奖励不能为负", ErrValidation, difficulty)
		}
		baseRewards[difficulty] = amount
	}

	return &RewardEngine{
		baseRewards:       baseRewards,
		typeMultipliers:   cfg.TypeMultipliers,
		statusMultipliers: cfg.StatusMultipliers,
	}, nil
}

// EvaluateMetrics 用启用规则对周期评估指标求值。
// 规则彼此独立、金额累加，不互斥。
func (e *RewardEngine) EvaluateMetrics(metrics *model.EvaluationMetricsModel, rules []model.RewardRuleModel) ([]RuleAward, error) {
	if metrics.Status != model.MetricsStatusCompleted {
		return nil, fmt.Errorf("%w: 评估尚未完成，无法发放奖励", ErrValidation)
	}

	var awards []RuleAward
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		value, ok := metricValueForCategory(metrics, rule.Category)
		if !ok {
			return nil, fmt.Errorf("%w: 规则 %d 的分类 %s 无对应指标", ErrValidation, rule.Id, rule.Category)
		}

		conditions, err := rule.ParseConditions()
		if err != nil {
			return nil, fmt.Errorf("%w: 规则 %d 条件格式错误: %v", ErrValidation, rule.Id, err)
		}
		// 绑定了具体难度或类型的规则走任务事件路径，不参与周期结算
		if conditions.Difficulty != model.TaskDifficultyAny || conditions.TaskType != model.TaskTypeAny {
			continue
		}

		fired, err := ruleFires(rule.MetricType, value, conditions)
		if err != nil {
			return nil, fmt.Errorf("规则 %d: %w", rule.Id, err)
		}
		if !fired {
			continue
		}

		awards = append(awards, RuleAward{
			Rule:   rule,
			Amount: rule.TokenAmount,
			Reason: fmt.Sprintf("reward:period:%s:%s:%s:rule:%d",
				metrics.DeveloperId,
				metrics.PeriodStart.UTC().Format("2006-01-02"),
				metrics.PeriodEnd.UTC().Format("2006-01-02"),
				rule.Id),
		})
	}

	return awards, nil
}

// EvaluateTaskEvent 对离散任务事件求值：按难度查基础奖励，
// 再按类型与状态的基点乘数缩放（各除以100），全程定点运算。
func (e *RewardEngine) EvaluateTaskEvent(event *model.TaskEvent) (decimal.Decimal, error) {
	if event.TaskId == "" || event.DeveloperId == "" {
		return decimal.Zero, fmt.Errorf("%w: 任务事件缺少任务ID或开发者ID", ErrValidation)
	}

	base, ok := e.baseRewards[event.Difficulty]
	if !ok {
		// 未知难度是配置错误，拒绝而不是按零处理
		return decimal.Zero, fmt.Errorf("%w: 未知的任务难度 %q", ErrValidation, event.Difficulty)
	}

	typeBP, ok := e.typeMultipliers[event.Type]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: 未知的任务类型 %q", ErrValidation, event.Type)
	}

	statusBP, ok := e.statusMultipliers[event.Status]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: 未知的任务状态 %q", ErrValidation, event.Status)
	}

	amount := base.
		Mul(decimal.NewFromInt(typeBP)).Div(hundred).
		Mul(decimal.NewFromInt(statusBP)).Div(hundred)

	return amount, nil
}

// EvaluateTaskEventRules 用事件范围的任务类规则对离散事件求值。
// 只有条件绑定了具体难度或类型的task规则参与；两者都为any的
// 规则是周期阈值规则，归EvaluateMetrics处理。
func (e *RewardEngine) EvaluateTaskEventRules(event *model.TaskEvent, rules []model.RewardRuleModel) ([]RuleAward, error) {
	var awards []RuleAward
	for _, rule := range rules {
		if !rule.Enabled || rule.Category != model.RuleCategoryTask {
			continue
		}

		conditions, err := rule.ParseConditions()
		if err != nil {
			return nil, fmt.Errorf("%w: 规则 %d 条件格式错误: %v", ErrValidation, rule.Id, err)
		}
		if conditions.Difficulty == model.TaskDifficultyAny && conditions.TaskType == model.TaskTypeAny {
			continue
		}
		if conditions.Difficulty != model.TaskDifficultyAny && conditions.Difficulty != event.Difficulty {
			continue
		}
		if conditions.TaskType != model.TaskTypeAny && conditions.TaskType != event.Type {
			continue
		}

		awards = append(awards, RuleAward{
			Rule:   rule,
			Amount: rule.TokenAmount,
			Reason: fmt.Sprintf("reward:task:%s:%s:rule:%d", event.TaskId, event.Status, rule.Id),
		})
	}

	return awards, nil
}

// TaskEventReason 任务事件奖励的去重键
func TaskEventReason(event *model.TaskEvent) string {
	return fmt.Sprintf("reward:task:%s:%s", event.TaskId, event.Status)
}

// metricValueForCategory 规则分类对应的指标值
func metricValueForCategory(metrics *model.EvaluationMetricsModel, category string) (float64, bool) {
	switch category {
	case model.RuleCategoryTask:
		return metrics.TaskCompletion, true
	case model.RuleCategoryCode:
		return metrics.CodeQuality, true
	case model.RuleCategoryCollaboration:
		return metrics.Collaboration, true
	case model.RuleCategoryCicd:
		return metrics.CicdSuccess, true
	case model.RuleCategoryKnowledge:
		return metrics.KnowledgeSharing, true
	case model.RuleCategoryGeneral:
		return metrics.OverallScore, true
	default:
		return 0, false
	}
}

// ruleFires 规则是否触发
func ruleFires(metricType string, value float64, conditions *model.RuleConditions) (bool, error) {
	switch metricType {
	case model.MetricTypeCount, model.MetricTypePercentage:
		// max_value未设置（0）时视为无上限
		if conditions.MaxValue > 0 && value > conditions.MaxValue {
			return false, nil
		}
		return value >= conditions.MinValue, nil
	case model.MetricTypeBoolean:
		// 布尔指标以非零值表示true
		return value != 0, nil
	default:
		return false, fmt.Errorf("%w: 未知的指标类型 %q", ErrValidation, metricType)
	}
}
