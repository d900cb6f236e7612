package service

import (
	"context"
	"strings"
	"time"

	"cope-referral-system/internal/blockchain"
	"cope-referral-system/internal/models"
	"cope-referral-system/internal/repository"
	"cope-referral-system/pkg/errors"
	"cope-referral-system/pkg/logger"
)

type SwapService struct {
	swapRepo    *repository.SwapRepository
	mappingRepo *repository.MappingRepository
	taxRateBps  int64
}

func NewSwapService(
	swapRepo *repository.SwapRepository,
	mappingRepo *repository.MappingRepository,
	taxRateBps int64,
) *SwapService {
	return &SwapService{
		swapRepo:    swapRepo,
		mappingRepo: mappingRepo,
		taxRateBps:  taxRateBps,
	}
}

// RecordSwap 记录一笔已分类的交易事件
// 交易哈希唯一键保证幂等：重复插入静默跳过，不重复计税也不重复触发锁定
// 首次插入成功后锁定交易者的推荐映射（已锁定或未映射时为无操作）
// 无推荐人的交易同样保留，用于社区池与总量统计
func (s *SwapService) RecordSwap(ctx context.Context, event *blockchain.TransferEvent, swapType models.SwapType, trader string, timestamp time.Time) (bool, error) {
	traderWallet := strings.ToLower(trader)
	tax := blockchain.CalculateTax(event.Value, s.taxRateBps)

	swap := &models.SwapEvent{
		TxHash:         strings.ToLower(event.TxHash),
		TraderWallet:   traderWallet,
		SwapType:       swapType,
		TokenAmount:    event.Value.String(),
		NativeAmount:   "0",
		TaxAmount:      tax.String(),
		BlockNumber:    event.BlockNum,
		BlockTimestamp: timestamp,
	}

	inserted, err := s.swapRepo.Insert(ctx, swap)
	if err != nil {
		return false, errors.New(errors.ErrSwapRecord, "记录交易事件失败", err)
	}
	if !inserted {
		logger.WithFields(map[string]interface{}{
			"tx_hash": swap.TxHash,
		}).Debug("交易已记录，跳过")
		return false, nil
	}

	if err := s.mappingRepo.Lock(ctx, traderWallet, swap.TxHash, timestamp); err != nil {
		return true, errors.New(errors.ErrSwapRecord, "锁定推荐映射失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"tx_hash":      swap.TxHash,
		"trader":       traderWallet,
		"swap_type":    swapType,
		"token_amount": swap.TokenAmount,
		"tax_amount":   swap.TaxAmount,
	}).Info("已记录交易事件")

	return true, nil
}
