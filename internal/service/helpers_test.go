package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cope-referral-system/internal/models"
	"cope-referral-system/internal/repository"
	"cope-referral-system/pkg/logger"
)

func init() {
	logger.Init("error", "text", "stderr")
}

type fixture struct {
	db             *gorm.DB
	userRepo       *repository.UserRepository
	walletRepo     *repository.WalletRepository
	codeRepo       *repository.CodeRepository
	mappingRepo    *repository.MappingRepository
	swapRepo       *repository.SwapRepository
	settlementRepo *repository.SettlementRepository

	referralSvc   *ReferralService
	swapSvc       *SwapService
	settlementSvc *SettlementService
}

const (
	testShareBps   = int64(5000)
	testTaxRateBps = int64(600)
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.WalletBinding{},
		&models.ReferralCode{},
		&models.ReferralMapping{},
		&models.SwapEvent{},
		&models.SettlementRecord{},
		&models.IngestionCursor{},
	))

	f := &fixture{
		db:             db,
		userRepo:       repository.NewUserRepository(db),
		walletRepo:     repository.NewWalletRepository(db),
		codeRepo:       repository.NewCodeRepository(db),
		mappingRepo:    repository.NewMappingRepository(db),
		swapRepo:       repository.NewSwapRepository(db),
		settlementRepo: repository.NewSettlementRepository(db),
	}

	threshold := big.NewInt(100000)
	f.referralSvc = NewReferralService(f.userRepo, f.walletRepo, f.codeRepo, f.mappingRepo, f.swapRepo,
		testShareBps, threshold)
	f.swapSvc = NewSwapService(f.swapRepo, f.mappingRepo, testTaxRateBps)
	f.settlementSvc = NewSettlementService(f.swapRepo, f.mappingRepo, f.settlementRepo,
		testShareBps, threshold)

	return f
}

// insertSwap 直接落一条已分类的交易事件，交易量按税额十倍填充
func (f *fixture) insertSwap(t *testing.T, txHash, trader, taxAmount string, ts time.Time) {
	t.Helper()
	inserted, err := f.swapRepo.Insert(context.Background(), &models.SwapEvent{
		TxHash:         txHash,
		TraderWallet:   trader,
		SwapType:       models.SwapTypeBuy,
		TokenAmount:    new(big.Int).Mul(parseAmount(taxAmount), big.NewInt(10)).String(),
		NativeAmount:   "0",
		TaxAmount:      taxAmount,
		BlockNumber:    100,
		BlockTimestamp: ts,
	})
	require.NoError(t, err)
	require.True(t, inserted)
}
