package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrWalletCancelled 签名方在提交前取消了操作
var ErrWalletCancelled = errors.New("wallet signer cancelled the operation")

// WalletOperation 提交给钱包签名广播的操作意图
type WalletOperation struct {
	Type          string          // 交易类型
	FromDeveloper string          // 转出方（系统操作为空）
	ToDeveloper   string          // 转入方
	Amount        decimal.Decimal // 代币数量
}

// WalletClient 钱包协作方。签名与广播的机制在引擎之外：
// 这里只拿到链上交易哈希（提交成功）或取消信号。
type WalletClient interface {
	Submit(ctx context.Context, op WalletOperation) (externalTxRef string, err error)
}

// ExternalLedger 外部账本协作方，按交易哈希查询确认结果，
// 并提供权威的链上余额。
type ExternalLedger interface {
	// TxStatus 返回 confirmed / failed / unknown
	TxStatus(ctx context.Context, externalTxRef string) (string, error)
	// TokenBalance 查询地址的链上代币余额
	TokenBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// 链上确认结果
const (
	TxOutcomeConfirmed = "confirmed"
	TxOutcomeFailed    = "failed"
	TxOutcomeUnknown   = "unknown"
)

// ManualWallet 无链环境的钱包实现：生成本地引用，
// 确认结果由运营方通过核销接口回填。
type ManualWallet struct{}

func (ManualWallet) Submit(ctx context.Context, op WalletOperation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWalletCancelled, err)
	}
	return "manual-" + uuid.NewString(), nil
}
