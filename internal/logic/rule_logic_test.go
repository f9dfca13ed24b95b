package logic

import (
	"testing"

	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func validRule() *model.RewardRuleModel {
	return &model.RewardRuleModel{
		Name:        "code quality above 80",
		Category:    model.RuleCategoryCode,
		MetricType:  model.MetricTypePercentage,
		TokenAmount: decimal.NewFromInt(20),
		Enabled:     true,
		Conditions:  datatypes.JSON(`{"min_value": 80}`),
	}
}

func TestRuleLogic_CreateAndGet(t *testing.T) {
	rules := NewRuleLogic(newTestDB(t))

	rule := validRule()
	require.NoError(t, rules.CreateRule(rule))
	require.NotZero(t, rule.Id)

	got, err := rules.GetRule(rule.Id)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)

	_, err = rules.GetRule(999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRuleLogic_Validation(t *testing.T) {
	rules := NewRuleLogic(newTestDB(t))

	rule := validRule()
	rule.Name = ""
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)

	rule = validRule()
	rule.Category = "velocity"
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)

	rule = validRule()
	rule.MetricType = "gauge"
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)

	rule = validRule()
	rule.TokenAmount = decimal.NewFromInt(-1)
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)

	rule = validRule()
	rule.Conditions = datatypes.JSON(`{"min_value": 90, "max_value": 50}`)
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)

	rule = validRule()
	rule.Conditions = datatypes.JSON(`{"min_value": 0, "max_value": 120}`)
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)

	rule = validRule()
	rule.Conditions = datatypes.JSON(`{"difficulty": "legendary"}`)
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)

	rule = validRule()
	rule.Conditions = datatypes.JSON(`not json`)
	assert.ErrorIs(t, rules.CreateRule(rule), ErrValidation)
}

func TestRuleLogic_SetEnabled(t *testing.T) {
	rules := NewRuleLogic(newTestDB(t))

	rule := validRule()
	require.NoError(t, rules.CreateRule(rule))

	require.NoError(t, rules.SetEnabled(rule.Id, false))
	enabled, err := rules.GetEnabledRules()
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, rules.SetEnabled(rule.Id, true))
	enabled, err = rules.GetEnabledRules()
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	assert.ErrorIs(t, rules.SetEnabled(999, true), ErrNotFound)
}

func TestRuleLogic_UpdateRule(t *testing.T) {
	rules := NewRuleLogic(newTestDB(t))

	rule := validRule()
	require.NoError(t, rules.CreateRule(rule))

	rule.Name = "code quality above 90"
	rule.Conditions = datatypes.JSON(`{"min_value": 90}`)
	require.NoError(t, rules.UpdateRule(rule))

	got, err := rules.GetRule(rule.Id)
	require.NoError(t, err)
	assert.Equal(t, "code quality above 90", got.Name)

	missing := validRule()
	missing.Id = 999
	assert.ErrorIs(t, rules.UpdateRule(missing), ErrNotFound)
}

func TestRuleLogic_GetRulesByCategory(t *testing.T) {
	rules := NewRuleLogic(newTestDB(t))

	require.NoError(t, rules.CreateRule(validRule()))

	taskRule := validRule()
	taskRule.Name = "task throughput"
	taskRule.Category = model.RuleCategoryTask
	taskRule.MetricType = model.MetricTypeCount
	require.NoError(t, rules.CreateRule(taskRule))

	all, total, err := rules.GetRules("", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	filtered, total, err := rules.GetRules(model.RuleCategoryTask, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.RuleCategoryTask, filtered[0].Category)
}
