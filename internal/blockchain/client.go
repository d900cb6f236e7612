package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"cope-referral-system/internal/config"
	"cope-referral-system/pkg/errors"
	"cope-referral-system/pkg/logger"
)

type Client struct {
	chainCfg *config.ChainConfig
	client   *ethclient.Client
	timeout  time.Duration
}

// NewClient 创建链RPC客户端
func NewClient(chainCfg *config.ChainConfig) (*Client, error) {
	client, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("连接RPC失败: %s", chainCfg.RPCURL), err)
	}

	timeout := time.Duration(chainCfg.RPCTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		chainCfg: chainCfg,
		client:   client,
		timeout:  timeout,
	}, nil
}

// Close 关闭链RPC客户端连接
func (c *Client) Close() {
	c.client.Close()
}

// GetLatestBlockNumber 获取链上最新区块号
func (c *Client) GetLatestBlockNumber(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrBlockFetch, "获取最新区块失败", err)
	}
	return header.Number.Int64(), nil
}

// GetConfirmedBlockNumber 获取应用确认深度后的最新区块号
func (c *Client) GetConfirmedBlockNumber(ctx context.Context) (int64, error) {
	latest, err := c.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := latest - int64(c.chainCfg.ConfirmationBlocks)
	if confirmed < 0 {
		confirmed = 0
	}

	return confirmed, nil
}

// GetTransferLogs 获取代币合约在指定区块范围内的Transfer事件日志
// 注意：RPC节点通常限制单次请求的区块跨度
func (c *Client) GetTransferLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contractAddr := common.HexToAddress(c.chainCfg.TokenContract)
	transferSig := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(startBlock),
		ToBlock:   big.NewInt(endBlock),
		Addresses: []common.Address{contractAddr},
		Topics:    [][]common.Hash{{transferSig}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrEventParse, "过滤Transfer事件失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain":       c.chainCfg.Name,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
	}).Debug("获取Transfer事件日志")

	return logs, nil
}

// GetBlockTimestamp 获取区块的时间戳
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	header, err := c.client.HeaderByNumber(ctx, big.NewInt(blockNumber))
	if err != nil {
		return time.Time{}, errors.New(errors.ErrBlockFetch,
			fmt.Sprintf("获取区块 %d 失败", blockNumber), err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}
