package blockchain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"cope-referral-system/internal/config"
	"cope-referral-system/internal/models"
	"cope-referral-system/pkg/logger"
)

// ChainReader 监听器依赖的链读取能力
type ChainReader interface {
	GetConfirmedBlockNumber(ctx context.Context) (int64, error)
	GetTransferLogs(ctx context.Context, startBlock, endBlock int64) ([]types.Log, error)
	GetBlockTimestamp(ctx context.Context, blockNumber int64) (time.Time, error)
}

// CursorStore 持久化扫描游标
type CursorStore interface {
	GetLastProcessed(ctx context.Context, chainName string) (int64, error)
	Advance(ctx context.Context, chainName string, blockNumber int64) error
}

// SwapRecorder 接收已分类的交易事件，按交易哈希幂等落库
type SwapRecorder interface {
	RecordSwap(ctx context.Context, event *TransferEvent, swapType models.SwapType, trader string, timestamp time.Time) (bool, error)
}

type EventListener struct {
	chainCfg      *config.ChainConfig
	client        ChainReader
	cursors       CursorStore
	recorder      SwapRecorder
	approvedPools map[string]bool
	stopChan      chan struct{}
	isProcessing  int32
}

func NewEventListener(chainCfg *config.ChainConfig, client ChainReader, cursors CursorStore, recorder SwapRecorder) *EventListener {
	return &EventListener{
		chainCfg:      chainCfg,
		client:        client,
		cursors:       cursors,
		recorder:      recorder,
		approvedPools: chainCfg.ApprovedPoolSet(),
		stopChan:      make(chan struct{}),
	}
}

// Start 启动事件监听循环
// 游标单写者：同一游标不允许并发运行两个实例
// 停止信号在批次之间生效，不会丢下推进了游标的半个批次
func (l *EventListener) Start(ctx context.Context) {
	interval := time.Duration(l.chainCfg.PullInterval) * time.Second
	if interval <= 0 {
		interval = 12 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProcessed, err := l.cursors.GetLastProcessed(ctx, l.chainCfg.Name)
	if err != nil {
		logger.Error("读取扫描游标失败:", err)
		return
	}
	if lastProcessed == 0 && l.chainCfg.StartBlock > 0 {
		lastProcessed = l.chainCfg.StartBlock - 1
	}

	logger.WithFields(map[string]interface{}{
		"chain":                l.chainCfg.Name,
		"last_processed_block": lastProcessed,
	}).Info("启动链事件监听器")

	for {
		select {
		case <-ctx.Done():
			logger.Info("事件监听器已停止：上下文已取消")
			return
		case <-l.stopChan:
			logger.Info("事件监听器已停止：收到停止信号")
			return
		case <-ticker.C:
			if atomic.LoadInt32(&l.isProcessing) == 1 {
				logger.WithFields(map[string]interface{}{
					"chain": l.chainCfg.Name,
				}).Warn("上一批处理尚未完成，跳过本次触发")
				continue
			}

			atomic.StoreInt32(&l.isProcessing, 1)

			block, err := l.ProcessBatch(ctx, lastProcessed)
			if err != nil {
				// RPC或落库失败不推进游标，下个周期重试
				// 交易哈希唯一键吸收重放，至少一次投递是安全的
				logger.Error("处理区块批次失败:", err)
			} else if block > lastProcessed {
				lastProcessed = block
			}

			atomic.StoreInt32(&l.isProcessing, 0)
		}
	}
}

// Stop 停止事件监听器
func (l *EventListener) Stop() {
	close(l.stopChan)
}

// IsProcessing 返回是否正在处理批次
func (l *EventListener) IsProcessing() bool {
	return atomic.LoadInt32(&l.isProcessing) == 1
}

// ProcessBatch 处理一个有界批次并在全部落库后推进游标
// 任何事件处理失败都返回原游标，整批下次重放
func (l *EventListener) ProcessBatch(ctx context.Context, lastBlock int64) (int64, error) {
	confirmedBlock, err := l.client.GetConfirmedBlockNumber(ctx)
	if err != nil {
		return lastBlock, err
	}

	if confirmedBlock <= lastBlock {
		return lastBlock, nil
	}

	startBlock := lastBlock + 1

	batchSize := l.chainCfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}

	endBlock := confirmedBlock
	if endBlock-startBlock >= batchSize {
		endBlock = startBlock + batchSize - 1
	}

	logs, err := l.client.GetTransferLogs(ctx, startBlock, endBlock)
	if err != nil {
		return lastBlock, err
	}

	swaps := 0
	timestamps := make(map[int64]time.Time)

	for _, log := range logs {
		event, err := ParseTransferLog(log)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"tx_hash": log.TxHash.Hex(),
			}).Warn("解析Transfer日志失败，跳过")
			continue
		}

		swapType, trader, ok := event.Classify(l.approvedPools)
		if !ok {
			continue
		}

		timestamp, cached := timestamps[event.BlockNum]
		if !cached {
			timestamp, err = l.client.GetBlockTimestamp(ctx, event.BlockNum)
			if err != nil {
				return lastBlock, err
			}
			timestamps[event.BlockNum] = timestamp
		}

		if _, err := l.recorder.RecordSwap(ctx, event, swapType, trader, timestamp); err != nil {
			return lastBlock, err
		}
		swaps++
	}

	if err := l.cursors.Advance(ctx, l.chainCfg.Name, endBlock); err != nil {
		return lastBlock, err
	}

	logger.WithFields(map[string]interface{}{
		"chain":       l.chainCfg.Name,
		"start_block": startBlock,
		"end_block":   endBlock,
		"logs_count":  len(logs),
		"swaps_count": swaps,
	}).Info("区块批次处理完成")

	return endBlock, nil
}

const maxBatchSize = int64(5000)
