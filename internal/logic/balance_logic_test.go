package logic

import (
	"testing"

	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceLogic_GetOrCreate(t *testing.T) {
	balances := NewBalanceLogic(newTestDB(t))

	balance, err := balances.GetOrCreate("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.IsZero())
	assert.True(t, balance.Staked.IsZero())
	assert.True(t, balance.Reserved.IsZero())

	// 幂等：不会创建第二条记录
	again, err := balances.GetOrCreate("dev-a")
	require.NoError(t, err)
	assert.Equal(t, balance.Id, again.Id)

	_, err = balances.GetOrCreate("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBalanceLogic_ReserveAndRelease(t *testing.T) {
	balances := NewBalanceLogic(newTestDB(t))

	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(50)))

	// 预留40后可用余额只剩10
	require.NoError(t, balances.Reserve("dev-a", decimal.NewFromInt(40)))
	balance, err := balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(10)))
	assert.True(t, balance.Reserved.Equal(decimal.NewFromInt(40)))

	// 并发扣减只能花未预留的部分
	err = balances.Reserve("dev-a", decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// 预留释放后恢复原状
	require.NoError(t, balances.ReleaseToAvailable("dev-a", decimal.NewFromInt(40)))
	balance, err = balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(50)))
	assert.True(t, balance.Reserved.IsZero())
}

func TestBalanceLogic_StakeBuckets(t *testing.T) {
	balances := NewBalanceLogic(newTestDB(t))

	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(100)))

	// 质押：可用→预留→质押
	require.NoError(t, balances.Reserve("dev-a", decimal.NewFromInt(60)))
	require.NoError(t, balances.ReservedToStaked("dev-a", decimal.NewFromInt(60)))

	balance, err := balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(40)))
	assert.True(t, balance.Staked.Equal(decimal.NewFromInt(60)))
	assert.True(t, balance.Reserved.IsZero())

	// 解除质押：质押→预留→可用+收益
	require.NoError(t, balances.ReserveStaked("dev-a", decimal.NewFromInt(60)))
	require.NoError(t, balances.ReservedToAvailable("dev-a", decimal.NewFromInt(60), decimal.NewFromInt(3)))

	balance, err = balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(103)))
	assert.True(t, balance.Staked.IsZero())
	assert.True(t, balance.Reserved.IsZero())
}

func TestBalanceLogic_RejectsNegativeBuckets(t *testing.T) {
	balances := NewBalanceLogic(newTestDB(t))

	assert.ErrorIs(t, balances.Reserve("dev-a", decimal.NewFromInt(1)), ErrInsufficientBalance)
	assert.ErrorIs(t, balances.ReserveStaked("dev-a", decimal.NewFromInt(1)), ErrInsufficientBalance)
	assert.ErrorIs(t, balances.ConsumeReserved("dev-a", decimal.NewFromInt(1)), ErrInsufficientBalance)
}

func TestBalanceLogic_Recompute(t *testing.T) {
	db := newTestDB(t)
	balances := NewBalanceLogic(db)
	ledger := NewLedgerLogic(db)

	// 已完成奖励30 + 已完成质押10，缓存同步
	reward := newRewardTx("dev-a", "r1", 30)
	require.NoError(t, ledger.Create(reward))
	_, _, err := ledger.Settle(reward.Id, model.TxStatusCompleted, "")
	require.NoError(t, err)
	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(30)))

	from := "dev-a"
	stake := &model.TransactionModel{
		TxType:        model.TxTypeStake,
		FromDeveloper: &from,
		ToDeveloper:   "dev-a",
		Amount:        decimal.NewFromInt(10),
	}
	require.NoError(t, ledger.Create(stake))
	_, _, err = ledger.Settle(stake.Id, model.TxStatusCompleted, "")
	require.NoError(t, err)
	require.NoError(t, balances.Reserve("dev-a", decimal.NewFromInt(10)))
	require.NoError(t, balances.ReservedToStaked("dev-a", decimal.NewFromInt(10)))

	report, err := balances.Recompute("dev-a", nil)
	require.NoError(t, err)
	assert.Empty(t, report.Discrepancies)
	assert.True(t, report.ComputedAvailable.Equal(decimal.NewFromInt(20)))
	assert.True(t, report.ComputedStaked.Equal(decimal.NewFromInt(10)))

	// 人为制造缓存漂移
	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(5)))
	report, err = balances.Recompute("dev-a", nil)
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "available", report.Discrepancies[0].Field)
	assert.True(t, report.Discrepancies[0].Expected.Equal(decimal.NewFromInt(20)))
	assert.True(t, report.Discrepancies[0].Actual.Equal(decimal.NewFromInt(25)))
}

func TestBalanceLogic_RecomputeAgainstChain(t *testing.T) {
	db := newTestDB(t)
	balances := NewBalanceLogic(db)
	ledger := NewLedgerLogic(db)

	reward := newRewardTx("dev-a", "r1", 30)
	require.NoError(t, ledger.Create(reward))
	_, _, err := ledger.Settle(reward.Id, model.TxStatusCompleted, "")
	require.NoError(t, err)
	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(30)))

	// 链上余额一致
	onChain := decimal.NewFromInt(30)
	report, err := balances.Recompute("dev-a", &onChain)
	require.NoError(t, err)
	assert.Empty(t, report.Discrepancies)

	// 链上余额不一致：上报但不修正
	onChain = decimal.NewFromInt(28)
	report, err = balances.Recompute("dev-a", &onChain)
	require.NoError(t, err)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "on_chain_total", report.Discrepancies[0].Field)

	balance, err := balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(30)))
}
