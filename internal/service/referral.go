package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	stderrors "errors"

	"cope-referral-system/internal/models"
	"cope-referral-system/internal/repository"
	"cope-referral-system/pkg/errors"
	"cope-referral-system/pkg/logger"
)

type ReferralService struct {
	userRepo         *repository.UserRepository
	walletRepo       *repository.WalletRepository
	codeRepo         *repository.CodeRepository
	mappingRepo      *repository.MappingRepository
	swapRepo         *repository.SwapRepository
	referralShareBps int64
	threshold        *big.Int
}

func NewReferralService(
	userRepo *repository.UserRepository,
	walletRepo *repository.WalletRepository,
	codeRepo *repository.CodeRepository,
	mappingRepo *repository.MappingRepository,
	swapRepo *repository.SwapRepository,
	referralShareBps int64,
	threshold *big.Int,
) *ReferralService {
	return &ReferralService{
		userRepo:         userRepo,
		walletRepo:       walletRepo,
		codeRepo:         codeRepo,
		mappingRepo:      mappingRepo,
		swapRepo:         swapRepo,
		referralShareBps: referralShareBps,
		threshold:        threshold,
	}
}

// RegisterUser 首次接触时创建用户，之后仅刷新显示名
func (s *ReferralService) RegisterUser(ctx context.Context, identityID, displayName string) error {
	return s.userRepo.Upsert(ctx, identityID, displayName)
}

// BindWallet 绑定钱包与外部身份，双向一对一
// 同一身份重复绑定同一钱包视为成功，其余冲突由唯一索引裁决
func (s *ReferralService) BindWallet(ctx context.Context, identityID, walletAddress, signature, message string) error {
	wallet := strings.ToLower(walletAddress)

	existing, err := s.walletRepo.GetByWallet(ctx, wallet)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.IdentityID == identityID {
			return nil
		}
		return errors.New(errors.ErrWalletBound, "钱包已绑定其他身份", nil)
	}

	binding := &models.WalletBinding{
		IdentityID:    identityID,
		WalletAddress: wallet,
		Signature:     signature,
		Message:       message,
	}

	if err := s.walletRepo.Bind(ctx, binding); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.New(errors.ErrWalletBound, "钱包或身份已绑定", err)
		}
		return err
	}

	return nil
}

// CreateOrGetReferralCode 获取或惰性生成推荐码
// 码由钱包地址哈希确定性派生，碰撞时追加序号重试
func (s *ReferralService) CreateOrGetReferralCode(ctx context.Context, walletAddress string) (string, error) {
	wallet := strings.ToLower(walletAddress)

	existing, err := s.codeRepo.GetByWallet(ctx, wallet)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.Code, nil
	}

	code := generateReferralCode(wallet)
	for attempts := 0; attempts < 10; attempts++ {
		taken, err := s.codeRepo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
		code = generateReferralCode(wallet + strconv.Itoa(attempts))
	}

	record := &models.ReferralCode{
		Code:           code,
		ReferrerWallet: wallet,
	}

	if err := s.codeRepo.Create(ctx, record); err != nil {
		// 并发首次请求同一钱包时以先到者为准
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			winner, lookupErr := s.codeRepo.GetByWallet(ctx, wallet)
			if lookupErr == nil && winner != nil {
				return winner.Code, nil
			}
		}
		return "", err
	}

	return code, nil
}

// ResolveCode 解析推荐码为推荐人钱包，不存在时返回空串
func (s *ReferralService) ResolveCode(ctx context.Context, code string) (string, error) {
	record, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return record.ReferrerWallet, nil
}

// BindReferral 建立被推荐钱包到推荐人的映射
// 自我推荐与重复映射均拒绝，不覆盖已有映射
func (s *ReferralService) BindReferral(ctx context.Context, referredWallet, referrerWallet string) error {
	referred := strings.ToLower(referredWallet)
	referrer := strings.ToLower(referrerWallet)

	if referred == referrer {
		return errors.New(errors.ErrSelfReferral, "不能推荐自己", nil)
	}

	mapping := &models.ReferralMapping{
		ReferredWallet: referred,
		ReferrerWallet: referrer,
	}

	if err := s.mappingRepo.Create(ctx, mapping); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.New(errors.ErrAlreadyMapped, "钱包已有推荐映射", err)
		}
		return err
	}

	logger.WithFields(map[string]interface{}{
		"referred": referred,
		"referrer": referrer,
	}).Info("已建立推荐映射")

	return nil
}

// LookupReferrer 查询钱包的推荐人，未映射时返回空串
func (s *ReferralService) LookupReferrer(ctx context.Context, walletAddress string) (string, error) {
	mapping, err := s.mappingRepo.GetByReferred(ctx, strings.ToLower(walletAddress))
	if err != nil {
		return "", err
	}
	if mapping == nil {
		return "", nil
	}
	return mapping.ReferrerWallet, nil
}

// LockOnFirstTrade 首笔交易时锁定映射，幂等
func (s *ReferralService) LockOnFirstTrade(ctx context.Context, walletAddress, txHash string, tradeAt time.Time) error {
	return s.mappingRepo.Lock(ctx, strings.ToLower(walletAddress), txHash, tradeAt)
}

type ReferralStats struct {
	ReferredCount     int64  `json:"referred_count"`
	TotalVolume       string `json:"total_volume"`
	TotalTaxGenerated string `json:"total_tax_generated"`
	AccruedRewards    string `json:"accrued_rewards"`
	Withdrawable      bool   `json:"withdrawable"`
}

// GetStats 统计推荐人名下的交易量、税额与应计奖励
func (s *ReferralService) GetStats(ctx context.Context, referrerWallet string) (*ReferralStats, error) {
	referrer := strings.ToLower(referrerWallet)

	mappings, err := s.mappingRepo.ListByReferrer(ctx, referrer)
	if err != nil {
		return nil, err
	}

	wallets := make([]string, 0, len(mappings))
	for _, m := range mappings {
		wallets = append(wallets, m.ReferredWallet)
	}

	events, err := s.swapRepo.GetByTraders(ctx, wallets)
	if err != nil {
		return nil, err
	}

	totalVolume := big.NewInt(0)
	totalTax := big.NewInt(0)
	for _, e := range events {
		totalVolume.Add(totalVolume, parseAmount(e.TokenAmount))
		totalTax.Add(totalTax, parseAmount(e.TaxAmount))
	}

	accrued := shareOf(totalTax, s.referralShareBps)

	return &ReferralStats{
		ReferredCount:     int64(len(mappings)),
		TotalVolume:       totalVolume.String(),
		TotalTaxGenerated: totalTax.String(),
		AccruedRewards:    accrued.String(),
		Withdrawable:      accrued.Cmp(s.threshold) >= 0,
	}, nil
}

type LeaderboardEntry struct {
	Wallet        string `json:"wallet"`
	Rewards       string `json:"rewards"`
	ReferredCount int64  `json:"referred_count"`
}

// GetLeaderboard 按应计奖励降序返回前n名推荐人
func (s *ReferralService) GetLeaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 {
		n = 10
	}

	mappings, err := s.mappingRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, nil
	}

	referrerOf := make(map[string]string, len(mappings))
	referredCount := make(map[string]int64)
	wallets := make([]string, 0, len(mappings))
	for _, m := range mappings {
		referrerOf[m.ReferredWallet] = m.ReferrerWallet
		referredCount[m.ReferrerWallet]++
		wallets = append(wallets, m.ReferredWallet)
	}

	events, err := s.swapRepo.GetByTraders(ctx, wallets)
	if err != nil {
		return nil, err
	}

	taxByReferrer := make(map[string]*big.Int)
	for _, e := range events {
		referrer, ok := referrerOf[e.TraderWallet]
		if !ok {
			continue
		}
		total, ok := taxByReferrer[referrer]
		if !ok {
			total = big.NewInt(0)
			taxByReferrer[referrer] = total
		}
		total.Add(total, parseAmount(e.TaxAmount))
	}

	entries := make([]LeaderboardEntry, 0, len(taxByReferrer))
	rewards := make(map[string]*big.Int, len(taxByReferrer))
	for referrer, tax := range taxByReferrer {
		reward := shareOf(tax, s.referralShareBps)
		rewards[referrer] = reward
		entries = append(entries, LeaderboardEntry{
			Wallet:        referrer,
			Rewards:       reward.String(),
			ReferredCount: referredCount[referrer],
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		cmp := rewards[entries[i].Wallet].Cmp(rewards[entries[j].Wallet])
		if cmp != 0 {
			return cmp > 0
		}
		return entries[i].Wallet < entries[j].Wallet
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func generateReferralCode(seed string) string {
	hash := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:])[:16]
}

func parseAmount(s string) *big.Int {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return amount
}

func shareOf(amount *big.Int, bps int64) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(bps))
	return share.Div(share, big.NewInt(10000))
}
