package logic

import (
	"context"
	"testing"
	"time"

	"github.com/devgrid/rss/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	periodStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
)

func fullScores(value float64) map[string]float64 {
	scores := make(map[string]float64, len(MetricNames))
	for _, name := range MetricNames {
		scores[name] = value
	}
	return scores
}

func TestMetricsLogic_CreateForPeriodIdempotent(t *testing.T) {
	metrics := NewMetricsLogic(newTestDB(t), nil)

	first, err := metrics.CreateForPeriod("dev-a", periodStart, periodEnd)
	require.NoError(t, err)
	assert.Equal(t, model.MetricsStatusPending, first.Status)

	// 同周期重复创建返回已有记录
	again, err := metrics.CreateForPeriod("dev-a", periodStart, periodEnd)
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)

	_, err = metrics.CreateForPeriod("", periodStart, periodEnd)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = metrics.CreateForPeriod("dev-a", periodEnd, periodStart)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMetricsLogic_CompleteWithScores(t *testing.T) {
	metrics := NewMetricsLogic(newTestDB(t), nil)

	record, err := metrics.CreateForPeriod("dev-a", periodStart, periodEnd)
	require.NoError(t, err)

	scores := map[string]float64{
		"task_completion":   90,
		"code_quality":      80,
		"collaboration":     70,
		"cicd_success":      100,
		"knowledge_sharing": 60,
	}
	completed, err := metrics.CompleteWithScores(record.Id, scores)
	require.NoError(t, err)
	assert.Equal(t, model.MetricsStatusCompleted, completed.Status)
	assert.InDelta(t, 80, completed.OverallScore, 1e-9)
	assert.Equal(t, 90.0, completed.TaskCompletion)

	// 完成后只能显式重跑
	_, err = metrics.CompleteWithScores(record.Id, scores)
	assert.ErrorIs(t, err, ErrTerminalState)

	scores["task_completion"] = 100
	rerun, err := metrics.Rerun(record.Id, scores)
	require.NoError(t, err)
	assert.InDelta(t, 82, rerun.OverallScore, 1e-9)
}

func TestMetricsLogic_ScoreValidation(t *testing.T) {
	metrics := NewMetricsLogic(newTestDB(t), nil)

	record, err := metrics.CreateForPeriod("dev-a", periodStart, periodEnd)
	require.NoError(t, err)

	// 缺少子指标
	partial := fullScores(50)
	delete(partial, "cicd_success")
	_, err = metrics.CompleteWithScores(record.Id, partial)
	assert.ErrorIs(t, err, ErrValidation)

	// 超出范围
	invalid := fullScores(50)
	invalid["code_quality"] = 101
	_, err = metrics.CompleteWithScores(record.Id, invalid)
	assert.ErrorIs(t, err, ErrValidation)

	// 校验失败不改变状态
	current, err := metrics.Get(record.Id)
	require.NoError(t, err)
	assert.Equal(t, model.MetricsStatusPending, current.Status)
}

func TestMetricsLogic_WeightedOverallScore(t *testing.T) {
	// 权重不归一也能正确加权
	metrics := NewMetricsLogic(newTestDB(t), map[string]float64{
		"task_completion":   3,
		"code_quality":      1,
		"collaboration":     1,
		"cicd_success":      1,
		"knowledge_sharing": 1,
	})

	scores := fullScores(50)
	scores["task_completion"] = 100
	// (100*3 + 50*4) / 7
	assert.InDelta(t, 500.0/7, metrics.OverallScore(scores), 1e-9)
}

type staticProvider float64

func (p staticProvider) Collect(_ context.Context, _ string, _, _ time.Time) (float64, error) {
	return float64(p), nil
}

func TestMetricsLogic_CollectAndComplete(t *testing.T) {
	metrics := NewMetricsLogic(newTestDB(t), nil)

	record, err := metrics.CreateForPeriod("dev-a", periodStart, periodEnd)
	require.NoError(t, err)

	providers := make(map[string]MetricProvider, len(MetricNames))
	for _, name := range MetricNames {
		providers[name] = staticProvider(75)
	}

	completed, err := metrics.CollectAndComplete(context.Background(), record.Id, providers)
	require.NoError(t, err)
	assert.Equal(t, model.MetricsStatusCompleted, completed.Status)
	assert.InDelta(t, 75, completed.OverallScore, 1e-9)

	// 缺少采集器
	delete(providers, "code_quality")
	fresh, err := metrics.CreateForPeriod("dev-b", periodStart, periodEnd)
	require.NoError(t, err)
	_, err = metrics.CollectAndComplete(context.Background(), fresh.Id, providers)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMetricsLogic_RewardedFlag(t *testing.T) {
	metrics := NewMetricsLogic(newTestDB(t), nil)

	record, err := metrics.CreateForPeriod("dev-a", periodStart, periodEnd)
	require.NoError(t, err)
	_, err = metrics.CompleteWithScores(record.Id, fullScores(80))
	require.NoError(t, err)

	unrewarded, err := metrics.ListCompletedUnrewarded(10)
	require.NoError(t, err)
	require.Len(t, unrewarded, 1)

	require.NoError(t, metrics.MarkRewarded(record.Id))
	unrewarded, err = metrics.ListCompletedUnrewarded(10)
	require.NoError(t, err)
	assert.Empty(t, unrewarded)
}
