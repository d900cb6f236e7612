package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sort"
	"strings"
	"time"

	"cope-referral-system/internal/merkle"
	"cope-referral-system/internal/models"
	"cope-referral-system/internal/repository"
	"cope-referral-system/pkg/errors"
	"cope-referral-system/pkg/logger"
)

type SettlementService struct {
	swapRepo         *repository.SwapRepository
	mappingRepo      *repository.MappingRepository
	settlementRepo   *repository.SettlementRepository
	referralShareBps int64
	threshold        *big.Int
}

func NewSettlementService(
	swapRepo *repository.SwapRepository,
	mappingRepo *repository.MappingRepository,
	settlementRepo *repository.SettlementRepository,
	referralShareBps int64,
	threshold *big.Int,
) *SettlementService {
	return &SettlementService{
		swapRepo:         swapRepo,
		mappingRepo:      mappingRepo,
		settlementRepo:   settlementRepo,
		referralShareBps: referralShareBps,
		threshold:        threshold,
	}
}

// PeriodFor 返回时间点所属的结算周期
// 周期为周一00:00:00 UTC（含）到下周一00:00:00 UTC（不含），无缝平铺时间轴
func PeriodFor(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
	return start, start.AddDate(0, 0, 7)
}

// aggregateTax 按推荐人汇总[start, end)内被推荐钱包产生的税额
// 使用查询时的映射状态（锁定不变量保证首笔交易后归属稳定）
func (s *SettlementService) aggregateTax(ctx context.Context, start, end time.Time) (map[string]*big.Int, error) {
	events, err := s.swapRepo.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, errors.New(errors.ErrRewardCalc, "获取周期内交易事件失败", err)
	}
	if len(events) == 0 {
		return map[string]*big.Int{}, nil
	}

	mappings, err := s.mappingRepo.GetAll(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrRewardCalc, "获取推荐映射失败", err)
	}

	referrerOf := make(map[string]string, len(mappings))
	for _, m := range mappings {
		referrerOf[m.ReferredWallet] = m.ReferrerWallet
	}

	taxes := make(map[string]*big.Int)
	for _, e := range events {
		referrer, ok := referrerOf[e.TraderWallet]
		if !ok {
			continue
		}
		total, ok := taxes[referrer]
		if !ok {
			total = big.NewInt(0)
			taxes[referrer] = total
		}
		total.Add(total, parseAmount(e.TaxAmount))
	}

	return taxes, nil
}

// AggregateRewards 计算周期内各推荐人的应得奖励
// 纯函数：仅依赖不可变的交易历史与当前映射，重复执行结果一致
func (s *SettlementService) AggregateRewards(ctx context.Context, start, end time.Time) (map[string]*big.Int, error) {
	taxes, err := s.aggregateTax(ctx, start, end)
	if err != nil {
		return nil, err
	}

	rewards := make(map[string]*big.Int, len(taxes))
	for referrer, tax := range taxes {
		rewards[referrer] = shareOf(tax, s.referralShareBps)
	}
	return rewards, nil
}

// Commitment 一次结算承诺：根哈希与各钱包的叶子位置
type Commitment struct {
	tree    *merkle.Tree
	Root    string
	Wallets []string
	Amounts map[string]*big.Int
	indexOf map[string]int
}

// LeafHash 承诺树叶子哈希
// 公式：sha256(小写钱包地址 ‖ 最小单位整数金额十进制串)
func LeafHash(wallet string, amount *big.Int) []byte {
	h := sha256.Sum256([]byte(strings.ToLower(wallet) + amount.String()))
	return h[:]
}

// BuildCommitment 过滤阈值以下的奖励并构建确定性Merkle承诺
// 叶子按钱包地址升序排列，保证同样的奖励映射得到字节一致的根
// 过滤后为空时返回nil承诺，这是安静周期的正常结果而非错误
func (s *SettlementService) BuildCommitment(rewards map[string]*big.Int) (*Commitment, error) {
	wallets := make([]string, 0, len(rewards))
	for wallet, amount := range rewards {
		if amount.Cmp(s.threshold) >= 0 {
			wallets = append(wallets, strings.ToLower(wallet))
		}
	}
	if len(wallets) == 0 {
		return nil, nil
	}
	sort.Strings(wallets)

	leaves := make([][]byte, len(wallets))
	amounts := make(map[string]*big.Int, len(wallets))
	indexOf := make(map[string]int, len(wallets))
	for i, wallet := range wallets {
		amount := rewards[wallet]
		leaves[i] = LeafHash(wallet, amount)
		amounts[wallet] = amount
		indexOf[wallet] = i
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, errors.New(errors.ErrSettlement, "构建Merkle树失败", err)
	}

	return &Commitment{
		tree:    tree,
		Root:    tree.RootHex(),
		Wallets: wallets,
		Amounts: amounts,
		indexOf: indexOf,
	}, nil
}

// Settle 结算一个周期：聚合奖励、构建承诺、落库结算记录
// 每个有非零奖励的推荐人各一条记录，阈值以下的奖励照记但不进树
// 已结算的周期拒绝重复结算
// 无奖励的周期返回空根，属于正常结果
func (s *SettlementService) Settle(ctx context.Context, start, end time.Time) (string, error) {
	settled, err := s.settlementRepo.PeriodSettled(ctx, start)
	if err != nil {
		return "", errors.New(errors.ErrSettlement, "查询周期结算状态失败", err)
	}
	if settled {
		return "", errors.New(errors.ErrPeriodSettled, "周期已结算", nil)
	}

	taxes, err := s.aggregateTax(ctx, start, end)
	if err != nil {
		return "", err
	}
	if len(taxes) == 0 {
		logger.WithFields(map[string]interface{}{
			"period_start": start,
			"period_end":   end,
		}).Info("周期内无应结奖励")
		return "", nil
	}

	rewards := make(map[string]*big.Int, len(taxes))
	for referrer, tax := range taxes {
		rewards[referrer] = shareOf(tax, s.referralShareBps)
	}

	commitment, err := s.BuildCommitment(rewards)
	if err != nil {
		return "", err
	}

	root := ""
	if commitment != nil {
		root = commitment.Root
	}

	referrers := make([]string, 0, len(taxes))
	for referrer := range taxes {
		referrers = append(referrers, referrer)
	}
	sort.Strings(referrers)

	for _, referrer := range referrers {
		tax := taxes[referrer]
		reward := rewards[referrer]
		community := new(big.Int).Sub(tax, reward)

		record := &models.SettlementRecord{
			ReferrerWallet:    referrer,
			PeriodStart:       start,
			PeriodEnd:         end,
			TotalTaxGenerated: tax.String(),
			ReferralReward:    reward.String(),
			CommunityPool:     community.String(),
			MerkleRoot:        root,
		}

		if err := s.settlementRepo.Create(ctx, record); err != nil {
			return "", errors.New(errors.ErrSettlement, "保存结算记录失败", err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"period_start": start,
		"period_end":   end,
		"referrers":    len(referrers),
		"merkle_root":  root,
	}).Info("周期结算完成")

	return root, nil
}

// ClaimProof 钱包在某周期的领取证明
type ClaimProof struct {
	Wallet     string       `json:"wallet"`
	Amount     string       `json:"amount"`
	Proof      []ProofEntry `json:"proof"`
	MerkleRoot string       `json:"merkle_root"`
}

type ProofEntry struct {
	Hash     string `json:"hash"`
	Position string `json:"position"`
}

// ProofFor 为钱包重新生成包含性证明
// 每次从不可变历史重算，不依赖缓存的树，保证结算后任意时刻可复现
// 钱包不在承诺中或低于阈值时返回nil
func (s *SettlementService) ProofFor(ctx context.Context, walletAddress string, start, end time.Time) (*ClaimProof, error) {
	wallet := strings.ToLower(walletAddress)

	rewards, err := s.AggregateRewards(ctx, start, end)
	if err != nil {
		return nil, err
	}

	amount, ok := rewards[wallet]
	if !ok || amount.Cmp(s.threshold) < 0 {
		return nil, nil
	}

	commitment, err := s.BuildCommitment(rewards)
	if err != nil {
		return nil, err
	}
	if commitment == nil {
		return nil, nil
	}

	index, ok := commitment.indexOf[wallet]
	if !ok {
		return nil, nil
	}

	steps, err := commitment.tree.Proof(index)
	if err != nil {
		return nil, errors.New(errors.ErrSettlement, "生成包含性证明失败", err)
	}

	proof := make([]ProofEntry, len(steps))
	for i, step := range steps {
		position := "left"
		if step.Right {
			position = "right"
		}
		proof[i] = ProofEntry{
			Hash:     hex.EncodeToString(step.Hash),
			Position: position,
		}
	}

	return &ClaimProof{
		Wallet:     wallet,
		Amount:     amount.String(),
		Proof:      proof,
		MerkleRoot: commitment.Root,
	}, nil
}
