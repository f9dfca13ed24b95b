package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/logger"
	"github.com/devgrid/rss/internal/model"
	"github.com/devgrid/rss/internal/settlement"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// 结算账本合约ABI。开发者以其ID的keccak256哈希标识，
// 所有方法由国库账户调用。
const ledgerABI = `[
	{
		"inputs": [
			{"name": "from", "type": "bytes32"},
			{"name": "to", "type": "bytes32"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [],
		"type": "function"
	},
	{
		"inputs": [
			{"name": "developer", "type": "bytes32"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "stake",
		"outputs": [],
		"type": "function"
	},
	{
		"inputs": [
			{"name": "developer", "type": "bytes32"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "unstake",
		"outputs": [],
		"type": "function"
	},
	{
		"inputs": [
			{"name": "developer", "type": "bytes32"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "redeem",
		"outputs": [],
		"type": "function"
	}
]`

// walletGasLimit 结算合约调用的固定gas上限
const walletGasLimit = 200000

// Wallet 国库钱包：把扣减型操作签名广播到结算账本合约，
// 返回交易哈希供后续确认查询。
type Wallet struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	chainId    *big.Int
	ledgerAddr common.Address
	ledgerABI  abi.ABI
}

// NewWallet 用国库私钥创建钱包，复用已建立的链连接
func NewWallet(client *Client, cfg config.ChainConfig) (*Wallet, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("no treasury private key configured")
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse treasury private key: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(ledgerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %w", err)
	}

	return &Wallet{
		client:     client.client,
		privateKey: privateKey,
		chainId:    big.NewInt(cfg.ChainId),
		ledgerAddr: common.HexToAddress(cfg.LedgerContract),
		ledgerABI:  parsedABI,
	}, nil
}

// TreasuryAddress 国库账户地址
func (w *Wallet) TreasuryAddress() common.Address {
	return crypto.PubkeyToAddress(w.privateKey.PublicKey)
}

// Submit 签名并广播结算操作，返回交易哈希
func (w *Wallet) Submit(ctx context.Context, op settlement.WalletOperation) (string, error) {
	input, err := w.pack(op)
	if err != nil {
		return "", err
	}

	from := w.TreasuryAddress()
	nonce, err := w.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch treasury nonce: %w", err)
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &w.ledgerAddr,
		Value:    big.NewInt(0),
		Gas:      walletGasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainId), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signed); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", settlement.ErrWalletCancelled, ctx.Err())
		}
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	ref := signed.Hash().Hex()
	logger.Info("Submitted %s operation for developer %s, tx %s", op.Type, op.FromDeveloper, ref)
	return ref, nil
}

// pack 按操作类型编码合约调用
func (w *Wallet) pack(op settlement.WalletOperation) ([]byte, error) {
	amount := tokenUnits(op.Amount)

	switch op.Type {
	case model.TxTypeTransfer:
		return w.ledgerABI.Pack("transfer", developerKey(op.FromDeveloper), developerKey(op.ToDeveloper), amount)
	case model.TxTypeStake:
		return w.ledgerABI.Pack("stake", developerKey(op.FromDeveloper), amount)
	case model.TxTypeUnstake:
		return w.ledgerABI.Pack("unstake", developerKey(op.FromDeveloper), amount)
	case model.TxTypeRedeem:
		return w.ledgerABI.Pack("redeem", developerKey(op.FromDeveloper), amount)
	default:
		return nil, fmt.Errorf("unsupported wallet operation type %s", op.Type)
	}
}

// developerKey 开发者ID的链上标识
func developerKey(developerId string) [32]byte {
	return crypto.Keccak256Hash([]byte(developerId))
}

// tokenUnits 代币数量换算为合约最小单位
func tokenUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(tokenDecimals).BigInt()
}
