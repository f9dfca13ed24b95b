package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/devgrid/rss/internal/config"
	"github.com/devgrid/rss/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// 链上确认结果
const (
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
	TxStatusUnknown   = "unknown"
)

// tokenDecimals 代币合约的小数位数
const tokenDecimals = 18

// 代币合约ABI（只保留余额查询）
const tokenABI = `[
	{
		"constant": true,
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	}
]`

// Client 外部账本客户端：按交易哈希查询确认结果，
// 并读取代币合约上的权威余额。
type Client struct {
	client        *ethclient.Client
	tokenAddr     common.Address
	confirmations int64
	tokenABI      abi.ABI
}

// Init 连接外部账本
func Init(cfg config.ChainConfig) (*Client, error) {
	supported := map[string]bool{
		"ethereum": true, "polygon": true, "bsc": true, "arbitrum": true, "optimism": true,
	}
	if !supported[cfg.ChainType] {
		return nil, fmt.Errorf("unsupported chain type %s", cfg.ChainType)
	}
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}

	logger.Info("Connecting to %s ledger (RPC: %s)", cfg.ChainType, cfg.RpcUrl)
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain client: %w", err)
	}

	// 测试连接
	if _, err := client.BlockNumber(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("chain connection test failed: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	logger.Info("Connected to %s ledger, token contract %s", cfg.ChainType, cfg.TokenContract)

	return &Client{
		client:        client,
		tokenAddr:     common.HexToAddress(cfg.TokenContract),
		confirmations: cfg.Confirmations,
		tokenABI:      parsedABI,
	}, nil
}

// TxStatus 按交易哈希查询确认结果。
// 回执不存在或确认数不足时返回unknown，由调用方限次重试。
func (c *Client) TxStatus(ctx context.Context, externalTxRef string) (string, error) {
	hash := common.HexToHash(externalTxRef)

	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if err == ethereum.NotFound {
			return TxStatusUnknown, nil
		}
		return TxStatusUnknown, fmt.Errorf("failed to fetch receipt for %s: %w", externalTxRef, err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return TxStatusFailed, nil
	}

	currentBlock, err := c.client.BlockNumber(ctx)
	if err != nil {
		return TxStatusUnknown, fmt.Errorf("failed to get current block number: %w", err)
	}

	confirmed := new(big.Int).Sub(new(big.Int).SetUint64(currentBlock), receipt.BlockNumber)
	if confirmed.Cmp(big.NewInt(c.confirmations)) < 0 {
		logger.Debug("Transaction %s has %s confirmations, need %d", externalTxRef, confirmed.String(), c.confirmations)
		return TxStatusUnknown, nil
	}

	return TxStatusConfirmed, nil
}

// TokenBalance 查询地址在代币合约上的余额（换算为18位小数的代币数量）
func (c *Client) TokenBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	input, err := c.tokenABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	output, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.tokenAddr,
		Data: input,
	}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to call token contract: %w", err)
	}

	results, err := c.tokenABI.Unpack("balanceOf", output)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	if len(results) == 0 {
		return decimal.Zero, fmt.Errorf("empty balanceOf result")
	}

	raw, ok := results[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected balanceOf result type %T", results[0])
	}

	return decimal.NewFromBigInt(raw, -tokenDecimals), nil
}

// Close 关闭链连接
func (c *Client) Close() {
	c.client.Close()
}
