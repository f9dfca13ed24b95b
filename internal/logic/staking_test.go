package logic

import (
	"testing"
	"time"

	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakingCalculator_PotentialReward(t *testing.T) {
	calc, err := NewStakingCalculator(5)
	require.NoError(t, err)

	// 100代币，5% APY，整年
	reward := calc.PotentialReward(decimal.NewFromInt(100), decimal.NewFromInt(1))
	assert.True(t, reward.Equal(decimal.NewFromInt(5)), "got %s", reward.String())

	// 半年按比例
	reward = calc.PotentialReward(decimal.NewFromInt(100), decimal.RequireFromString("0.5"))
	assert.True(t, reward.Equal(decimal.RequireFromString("2.5")), "got %s", reward.String())

	// 期限为零或为负严格返回零
	assert.True(t, calc.PotentialReward(decimal.NewFromInt(100), decimal.Zero).IsZero())
	assert.True(t, calc.PotentialReward(decimal.NewFromInt(100), decimal.NewFromInt(-1)).IsZero())
}

func TestStakingCalculator_AccruedReward(t *testing.T) {
	calc, err := NewStakingCalculator(10)
	require.NoError(t, err)

	stakedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// 经过时间为零
	assert.True(t, calc.AccruedReward(decimal.NewFromInt(1000), stakedAt, stakedAt).IsZero())

	// 时钟回拨不产生负收益
	assert.True(t, calc.AccruedReward(decimal.NewFromInt(1000), stakedAt, stakedAt.Add(-time.Hour)).IsZero())

	// 365天 = 整年收益
	fullYear := calc.AccruedReward(decimal.NewFromInt(1000), stakedAt, stakedAt.Add(365*24*time.Hour))
	assert.True(t, fullYear.Equal(decimal.NewFromInt(100)), "got %s", fullYear.String())
}

func TestNewStakingCalculator_RejectsOutOfRangeAPY(t *testing.T) {
	_, err := NewStakingCalculator(-1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewStakingCalculator(101)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStakingLogic_PositionLifecycle(t *testing.T) {
	db := newTestDB(t)
	calc, err := NewStakingCalculator(5)
	require.NoError(t, err)
	staking := NewStakingLogic(db, calc)

	first, err := staking.CreatePosition("dev-a", decimal.NewFromInt(100), 1)
	require.NoError(t, err)
	second, err := staking.CreatePosition("dev-a", decimal.NewFromInt(200), 2)
	require.NoError(t, err)

	// 先进先出：最早的仓位先解除
	oldest, err := staking.OldestUnstakablePosition("dev-a")
	require.NoError(t, err)
	assert.Equal(t, first.Id, oldest.Id)

	// 认领后对后续解除不可见，重复认领被拒绝
	require.NoError(t, staking.MarkUnstaking(first.Id))
	assert.ErrorIs(t, staking.MarkUnstaking(first.Id), ErrNotFound)
	oldest, err = staking.OldestUnstakablePosition("dev-a")
	require.NoError(t, err)
	assert.Equal(t, second.Id, oldest.Id)

	// 只有已认领的仓位能绑定在途交易
	assert.ErrorIs(t, staking.BindUnstakeTx(second.Id, 10), ErrNotFound)
	require.NoError(t, staking.BindUnstakeTx(first.Id, 10))

	// 按交易反查仓位
	found, err := staking.GetByUnstakeTx(10)
	require.NoError(t, err)
	assert.Equal(t, first.Id, found.Id)

	// 失败回滚后恢复活跃，重新可解除
	require.NoError(t, staking.ClearUnstakeTx(first.Id))
	oldest, err = staking.OldestUnstakablePosition("dev-a")
	require.NoError(t, err)
	assert.Equal(t, first.Id, oldest.Id)

	// 关闭仓位记录收益，只接受在途解除的仓位
	closedAt := time.Now()
	assert.ErrorIs(t, staking.ClosePosition(first.Id, decimal.NewFromInt(3), closedAt), ErrNotFound)
	require.NoError(t, staking.MarkUnstaking(first.Id))
	require.NoError(t, staking.ClosePosition(first.Id, decimal.NewFromInt(3), closedAt))
	positions, total, err := staking.ListByDeveloper("dev-a", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	var closedPos *model.StakePositionModel
	for i := range positions {
		if positions[i].Id == first.Id {
			closedPos = &positions[i]
		}
	}
	require.NotNil(t, closedPos)
	assert.Equal(t, model.StakeStatusClosed, closedPos.Status)
	assert.True(t, closedPos.AccruedReward.Equal(decimal.NewFromInt(3)))
}

func TestStakingLogic_NoUnstakablePosition(t *testing.T) {
	db := newTestDB(t)
	calc, err := NewStakingCalculator(5)
	require.NoError(t, err)
	staking := NewStakingLogic(db, calc)

	_, err = staking.OldestUnstakablePosition("dev-a")
	assert.ErrorIs(t, err, ErrNotFound)
}
