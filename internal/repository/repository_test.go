package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cope-referral-system/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
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

	return db
}

func testSwap(txHash, trader string, ts time.Time) *models.SwapEvent {
	return &models.SwapEvent{
		TxHash:         txHash,
		TraderWallet:   trader,
		SwapType:       models.SwapTypeBuy,
		TokenAmount:    "1000000",
		NativeAmount:   "0",
		TaxAmount:      "60000",
		BlockNumber:    100,
		BlockTimestamp: ts,
	}
}

func TestSwapInsertDeduplicates(t *testing.T) {
	db := newTestDB(t)
	repo := NewSwapRepository(db)
	ctx := context.Background()
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	inserted, err := repo.Insert(ctx, testSwap("0xabc", "0xaaa", ts))
	require.NoError(t, err)
	assert.True(t, inserted)

	// 同一交易哈希重复插入：静默跳过，无副作用
	inserted, err = repo.Insert(ctx, testSwap("0xabc", "0xaaa", ts))
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := repo.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSwapGetByTimeRangeHalfOpen(t *testing.T) {
	db := newTestDB(t)
	repo := NewSwapRepository(db)
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	_, err := repo.Insert(ctx, testSwap("0x01", "0xaaa", start))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, testSwap("0x02", "0xaaa", end.Add(-time.Second)))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, testSwap("0x03", "0xaaa", end))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, testSwap("0x04", "0xaaa", start.Add(-time.Second)))
	require.NoError(t, err)

	events, err := repo.GetByTimeRange(ctx, start, end)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMappingUniquePerReferredWallet(t *testing.T) {
	db := newTestDB(t)
	repo := NewMappingRepository(db)
	ctx := context.Background()

	err := repo.Create(ctx, &models.ReferralMapping{ReferredWallet: "0xccc", ReferrerWallet: "0xddd"})
	require.NoError(t, err)

	err = repo.Create(ctx, &models.ReferralMapping{ReferredWallet: "0xccc", ReferrerWallet: "0xeee"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	mapping, err := repo.GetByReferred(ctx, "0xccc")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, "0xddd", mapping.ReferrerWallet)
}

func TestMappingLockIsConditional(t *testing.T) {
	db := newTestDB(t)
	repo := NewMappingRepository(db)
	ctx := context.Background()
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &models.ReferralMapping{ReferredWallet: "0xaaa", ReferrerWallet: "0xbbb"}))

	require.NoError(t, repo.Lock(ctx, "0xaaa", "0xhash1", ts))

	mapping, err := repo.GetByReferred(ctx, "0xaaa")
	require.NoError(t, err)
	assert.True(t, mapping.Locked)
	assert.Equal(t, "0xhash1", mapping.FirstTradeHash)

	// 已锁定的映射再次锁定为无操作，首笔交易信息不变
	require.NoError(t, repo.Lock(ctx, "0xaaa", "0xhash2", ts.Add(time.Hour)))

	mapping, err = repo.GetByReferred(ctx, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, "0xhash1", mapping.FirstTradeHash)

	// 未映射钱包锁定为无操作
	require.NoError(t, repo.Lock(ctx, "0xfff", "0xhash3", ts))
}

func TestWalletBindingUniqueBothWays(t *testing.T) {
	db := newTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Bind(ctx, &models.WalletBinding{IdentityID: "tg-1", WalletAddress: "0xaaa"}))

	err := repo.Bind(ctx, &models.WalletBinding{IdentityID: "tg-2", WalletAddress: "0xaaa"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	err = repo.Bind(ctx, &models.WalletBinding{IdentityID: "tg-1", WalletAddress: "0xbbb"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestCursorAdvanceMonotonic(t *testing.T) {
	db := newTestDB(t)
	repo := NewCursorRepository(db)
	ctx := context.Background()

	block, err := repo.GetLastProcessed(ctx, "bsc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), block)

	require.NoError(t, repo.Advance(ctx, "bsc", 100))
	require.NoError(t, repo.Advance(ctx, "bsc", 50))

	block, err = repo.GetLastProcessed(ctx, "bsc")
	require.NoError(t, err)
	assert.Equal(t, int64(100), block)

	require.NoError(t, repo.Advance(ctx, "bsc", 150))
	block, err = repo.GetLastProcessed(ctx, "bsc")
	require.NoError(t, err)
	assert.Equal(t, int64(150), block)
}

func TestSettlementPeriodUniquePerReferrer(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	record := &models.SettlementRecord{
		ReferrerWallet:    "0xbbb",
		PeriodStart:       start,
		PeriodEnd:         start.AddDate(0, 0, 7),
		TotalTaxGenerated: "300000",
		ReferralReward:    "150000",
		CommunityPool:     "150000",
		MerkleRoot:        "deadbeef",
	}
	require.NoError(t, repo.Create(ctx, record))

	dup := *record
	dup.ID = 0
	err := repo.Create(ctx, &dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	settled, err := repo.PeriodSettled(ctx, start)
	require.NoError(t, err)
	assert.True(t, settled)

	settled, err = repo.PeriodSettled(ctx, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.False(t, settled)
}

func TestCodeRepositoryLookups(t *testing.T) {
	db := newTestDB(t)
	repo := NewCodeRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.ReferralCode{Code: "abcd1234", ReferrerWallet: "0xbbb"}))

	byWallet, err := repo.GetByWallet(ctx, "0xbbb")
	require.NoError(t, err)
	require.NotNil(t, byWallet)
	assert.Equal(t, "abcd1234", byWallet.Code)

	byCode, err := repo.GetByCode(ctx, "abcd1234")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, "0xbbb", byCode.ReferrerWallet)

	missing, err := repo.GetByCode(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	taken, err := repo.CodeExists(ctx, "abcd1234")
	require.NoError(t, err)
	assert.True(t, taken)
}
