package logic

import (
	"testing"

	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newTestEngine(t *testing.T) *RewardEngine {
	t.Helper()
	engine, err := NewRewardEngine(config.RewardConfig{
		BaseRewards: map[string]string{
			"easy":   "10",
			"medium": "25",
			"hard":   "50",
		},
		TypeMultipliers: map[string]int64{
			"feature":     150,
			"bug":         120,
			"improvement": 100,
		},
		StatusMultipliers: map[string]int64{
			"done":     100,
			"verified": 120,
		},
	})
	require.NoError(t, err)
	return engine
}

func TestRewardEngine_EvaluateTaskEvent(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		event    model.TaskEvent
		expected string
	}{
		{
			name:     "easy feature done",
			event:    model.TaskEvent{TaskId: "T-1", DeveloperId: "dev-a", Difficulty: "easy", Type: "feature", Status: "done"},
			expected: "15",
		},
		{
			name:     "easy feature verified",
			event:    model.TaskEvent{TaskId: "T-1", DeveloperId: "dev-a", Difficulty: "easy", Type: "feature", Status: "verified"},
			expected: "18",
		},
		{
			name:     "medium improvement done",
			event:    model.TaskEvent{TaskId: "T-2", DeveloperId: "dev-a", Difficulty: "medium", Type: "improvement", Status: "done"},
			expected: "25",
		},
		{
			name:     "hard bug verified",
			event:    model.TaskEvent{TaskId: "T-3", DeveloperId: "dev-a", Difficulty: "hard", Type: "bug", Status: "verified"},
			expected: "72",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := engine.EvaluateTaskEvent(&tt.event)
			require.NoError(t, err)
			assert.True(t, amount.Equal(decimal.RequireFromString(tt.expected)),
				"expected %s, got %s", tt.expected, amount.String())
		})
	}
}

func TestRewardEngine_EvaluateTaskEventDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	event := &model.TaskEvent{TaskId: "T-9", DeveloperId: "dev-a", Difficulty: "hard", Type: "feature", Status: "verified"}

	first, err := engine.EvaluateTaskEvent(event)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := engine.EvaluateTaskEvent(event)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}

func TestRewardEngine_EvaluateTaskEventRejectsUnknownInput(t *testing.T) {
	engine := newTestEngine(t)

	base := model.TaskEvent{TaskId: "T-1", DeveloperId: "dev-a", Difficulty: "easy", Type: "feature", Status: "done"}

	event := base
	event.Difficulty = "legendary"
	_, err := engine.EvaluateTaskEvent(&event)
	assert.ErrorIs(t, err, ErrValidation)

	event = base
	event.Type = "refactor"
	_, err = engine.EvaluateTaskEvent(&event)
	assert.ErrorIs(t, err, ErrValidation)

	event = base
	event.Status = "abandoned"
	_, err = engine.EvaluateTaskEvent(&event)
	assert.ErrorIs(t, err, ErrValidation)

	event = base
	event.TaskId = ""
	_, err = engine.EvaluateTaskEvent(&event)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRewardEngine_EvaluateMetrics(t *testing.T) {
	engine := newTestEngine(t)

	metrics := &model.EvaluationMetricsModel{
		Id:          1,
		DeveloperId: "dev-a",
		CodeQuality: 85,
		CicdSuccess: 100,
		Status:      model.MetricsStatusCompleted,
	}

	rules := []model.RewardRuleModel{
		{
			Id: 1, Name: "code quality above 80", Category: model.RuleCategoryCode,
			MetricType: model.MetricTypePercentage, TokenAmount: decimal.NewFromInt(20),
			Enabled: true, Conditions: datatypes.JSON(`{"min_value": 80}`),
		},
		{
			Id: 2, Name: "perfect pipeline", Category: model.RuleCategoryCicd,
			MetricType: model.MetricTypePercentage, TokenAmount: decimal.NewFromInt(30),
			Enabled: true, Conditions: datatypes.JSON(`{"min_value": 100}`),
		},
		{
			Id: 3, Name: "collaboration boolean", Category: model.RuleCategoryCollaboration,
			MetricType: model.MetricTypeBoolean, TokenAmount: decimal.NewFromInt(5),
			Enabled: true,
		},
		{
			Id: 4, Name: "disabled rule", Category: model.RuleCategoryCode,
			MetricType: model.MetricTypePercentage, TokenAmount: decimal.NewFromInt(99),
			Enabled: false, Conditions: datatypes.JSON(`{"min_value": 0}`),
		},
	}

	awards, err := engine.EvaluateMetrics(metrics, rules)
	require.NoError(t, err)

	// 规则1和2触发；规则3布尔值为0不触发；规则4被禁用
	require.Len(t, awards, 2)
	assert.Equal(t, int64(1), awards[0].Rule.Id)
	assert.Equal(t, int64(2), awards[1].Rule.Id)
	assert.True(t, awards[0].Amount.Equal(decimal.NewFromInt(20)))

	// 去重键包含开发者、周期与规则ID
	assert.Contains(t, awards[0].Reason, "dev-a")
	assert.Contains(t, awards[0].Reason, "rule:1")
}

func TestRewardEngine_EvaluateMetricsUpperBound(t *testing.T) {
	engine := newTestEngine(t)

	metrics := &model.EvaluationMetricsModel{
		Id:          1,
		DeveloperId: "dev-a",
		CodeQuality: 95,
		Status:      model.MetricsStatusCompleted,
	}

	rules := []model.RewardRuleModel{
		{
			Id: 1, Name: "mid band only", Category: model.RuleCategoryCode,
			MetricType: model.MetricTypePercentage, TokenAmount: decimal.NewFromInt(10),
			Enabled: true, Conditions: datatypes.JSON(`{"min_value": 50, "max_value": 90}`),
		},
	}

	awards, err := engine.EvaluateMetrics(metrics, rules)
	require.NoError(t, err)
	assert.Empty(t, awards)
}

func TestRewardEngine_EvaluateMetricsRequiresCompleted(t *testing.T) {
	engine := newTestEngine(t)

	metrics := &model.EvaluationMetricsModel{
		Id:          1,
		DeveloperId: "dev-a",
		Status:      model.MetricsStatusPending,
	}

	_, err := engine.EvaluateMetrics(metrics, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTaskEventReason(t *testing.T) {
	event := &model.TaskEvent{TaskId: "T-42", Status: "done"}
	assert.Equal(t, "reward:task:T-42:done", TaskEventReason(event))
}

func TestRewardEngine_EvaluateTaskEventRules(t *testing.T) {
	engine := newTestEngine(t)

	rules := []model.RewardRuleModel{
		{
			Id: 1, Name: "hard bug bonus", Category: model.RuleCategoryTask,
			MetricType: model.MetricTypeCount, TokenAmount: decimal.NewFromInt(5),
			Enabled: true, Conditions: datatypes.JSON(`{"difficulty": "hard", "task_type": "bug"}`),
		},
		{
			Id: 2, Name: "any feature bonus", Category: model.RuleCategoryTask,
			MetricType: model.MetricTypeCount, TokenAmount: decimal.NewFromInt(3),
			Enabled: true, Conditions: datatypes.JSON(`{"task_type": "feature"}`),
		},
		{
			Id: 3, Name: "threshold rule stays in period path", Category: model.RuleCategoryTask,
			MetricType: model.MetricTypePercentage, TokenAmount: decimal.NewFromInt(99),
			Enabled: true, Conditions: datatypes.JSON(`{"min_value": 50}`),
		},
		{
			Id: 4, Name: "disabled", Category: model.RuleCategoryTask,
			MetricType: model.MetricTypeCount, TokenAmount: decimal.NewFromInt(7),
			Enabled: false, Conditions: datatypes.JSON(`{"difficulty": "hard"}`),
		},
		{
			Id: 5, Name: "wrong category", Category: model.RuleCategoryCode,
			MetricType: model.MetricTypeCount, TokenAmount: decimal.NewFromInt(7),
			Enabled: true, Conditions: datatypes.JSON(`{"difficulty": "hard"}`),
		},
	}

	event := &model.TaskEvent{TaskId: "T-1", DeveloperId: "dev-a", Difficulty: "hard", Type: "bug", Status: "verified"}
	awards, err := engine.EvaluateTaskEventRules(event, rules)
	require.NoError(t, err)

	// 只有规则1匹配；规则2类型不符，3是周期阈值规则，4禁用，5非task分类
	require.Len(t, awards, 1)
	assert.Equal(t, int64(1), awards[0].Rule.Id)
	assert.True(t, awards[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "reward:task:T-1:verified:rule:1", awards[0].Reason)

	// 难度通配的规则命中所有feature事件
	event = &model.TaskEvent{TaskId: "T-2", DeveloperId: "dev-a", Difficulty: "easy", Type: "feature", Status: "done"}
	awards, err = engine.EvaluateTaskEventRules(event, rules)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, int64(2), awards[0].Rule.Id)
}

func TestRewardEngine_EvaluateMetricsSkipsEventScopedRules(t *testing.T) {
	engine := newTestEngine(t)

	metrics := &model.EvaluationMetricsModel{
		Id:             1,
		DeveloperId:    "dev-a",
		TaskCompletion: 100,
		Status:         model.MetricsStatusCompleted,
	}

	rules := []model.RewardRuleModel{
		{
			Id: 1, Name: "event scoped", Category: model.RuleCategoryTask,
			MetricType: model.MetricTypeCount, TokenAmount: decimal.NewFromInt(5),
			Enabled: true, Conditions: datatypes.JSON(`{"difficulty": "hard"}`),
		},
		{
			Id: 2, Name: "task completion threshold", Category: model.RuleCategoryTask,
			MetricType: model.MetricTypePercentage, TokenAmount: decimal.NewFromInt(10),
			Enabled: true, Conditions: datatypes.JSON(`{"min_value": 90}`),
		},
	}

	// 事件范围的规则不参与周期结算，阈值规则正常触发
	awards, err := engine.EvaluateMetrics(metrics, rules)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, int64(2), awards[0].Rule.Id)
}
