package logic

import (
	"testing"

	"github.com/devgrid/rss/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRedemptionEnv(t *testing.T) (*gorm.DB, *BalanceLogic, *LedgerLogic, *RedemptionLogic) {
	t.Helper()
	db := newTestDB(t)
	balances := NewBalanceLogic(db)
	ledger := NewLedgerLogic(db)
	return db, balances, ledger, NewRedemptionLogic(db, balances, ledger)
}

func TestRedemptionLogic_CreateReservesAmount(t *testing.T) {
	_, balances, _, redemptions := newRedemptionEnv(t)

	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(50)))

	req := &model.RedemptionRequestModel{
		DeveloperId: "dev-a",
		RedeemType:  model.RedeemTypeMonetary,
		Amount:      decimal.NewFromInt(40),
	}
	require.NoError(t, redemptions.CreateRequest(req))
	assert.Equal(t, model.RedemptionStatusPending, req.Status)

	balance, err := balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(10)))
	assert.True(t, balance.Reserved.Equal(decimal.NewFromInt(40)))

	// 审批期间剩余可用余额不够再扣20
	err = balances.Reserve("dev-a", decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRedemptionLogic_CreateValidation(t *testing.T) {
	_, balances, _, redemptions := newRedemptionEnv(t)

	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(50)))

	err := redemptions.CreateRequest(&model.RedemptionRequestModel{
		DeveloperId: "dev-a", RedeemType: "vacation", Amount: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrValidation)

	err = redemptions.CreateRequest(&model.RedemptionRequestModel{
		DeveloperId: "dev-a", RedeemType: model.RedeemTypeCareer, Amount: decimal.Zero,
	})
	assert.ErrorIs(t, err, ErrValidation)

	// 余额不足：不创建任何记录
	err = redemptions.CreateRequest(&model.RedemptionRequestModel{
		DeveloperId: "dev-a", RedeemType: model.RedeemTypeCareer, Amount: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, total, listErr := redemptions.List("dev-a", "", 1, 10)
	require.NoError(t, listErr)
	assert.Zero(t, total)
}

func TestRedemptionLogic_ApproveConsumesReservation(t *testing.T) {
	_, balances, ledger, redemptions := newRedemptionEnv(t)

	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(50)))
	req := &model.RedemptionRequestModel{
		DeveloperId: "dev-a", RedeemType: model.RedeemTypeBenefits, Amount: decimal.NewFromInt(40),
	}
	require.NoError(t, redemptions.CreateRequest(req))

	approved, err := redemptions.Approve(req.Id, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionStatusApproved, approved.Status)
	assert.Equal(t, "admin", approved.ApprovedBy)
	require.NotNil(t, approved.DecidedAt)
	require.NotNil(t, approved.TransactionId)

	// 扣减落在已完成的redeem交易上
	tx, err := ledger.Get(*approved.TransactionId)
	require.NoError(t, err)
	assert.Equal(t, model.TxTypeRedeem, tx.TxType)
	assert.Equal(t, model.TxStatusCompleted, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(40)))

	balance, err := balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(10)))
	assert.True(t, balance.Reserved.IsZero())
}

func TestRedemptionLogic_RejectRestoresBalance(t *testing.T) {
	_, balances, _, redemptions := newRedemptionEnv(t)

	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(50)))
	req := &model.RedemptionRequestModel{
		DeveloperId: "dev-a", RedeemType: model.RedeemTypeMonetary, Amount: decimal.NewFromInt(40),
	}
	require.NoError(t, redemptions.CreateRequest(req))

	// 驳回必须给出原因
	_, err := redemptions.Reject(req.Id, "admin", "")
	assert.ErrorIs(t, err, ErrValidation)

	rejected, err := redemptions.Reject(req.Id, "admin", "budget freeze")
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionStatusRejected, rejected.Status)
	assert.Equal(t, "budget freeze", rejected.RejectionReason)

	// 余额恢复到申请前的精确值
	balance, err := balances.Get("dev-a")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(50)))
	assert.True(t, balance.Reserved.IsZero())
}

func TestRedemptionLogic_DoubleDecision(t *testing.T) {
	_, balances, _, redemptions := newRedemptionEnv(t)

	require.NoError(t, balances.Credit("dev-a", decimal.NewFromInt(50)))
	req := &model.RedemptionRequestModel{
		DeveloperId: "dev-a", RedeemType: model.RedeemTypeMonetary, Amount: decimal.NewFromInt(40),
	}
	require.NoError(t, redemptions.CreateRequest(req))

	_, err := redemptions.Approve(req.Id, "admin-1")
	require.NoError(t, err)

	// 二次审批必须显式报错，不能静默成功
	_, err = redemptions.Approve(req.Id, "admin-2")
	assert.ErrorIs(t, err, ErrTerminalState)
	_, err = redemptions.Reject(req.Id, "admin-2", "changed mind")
	assert.ErrorIs(t, err, ErrTerminalState)

	// 审批人信息不被覆盖
	final, err := redemptions.Get(req.Id)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", final.ApprovedBy)
}

func TestRedemptionLogic_DecideMissingRequest(t *testing.T) {
	_, _, _, redemptions := newRedemptionEnv(t)

	_, err := redemptions.Approve(999, "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}
