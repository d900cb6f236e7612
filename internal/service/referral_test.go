package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cope-referral-system/pkg/errors"
)

func TestBindReferralRejectsSelfReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.referralSvc.BindReferral(ctx, "0xCCC", "0xccc")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrSelfReferral, appErr.Code)
}

func TestBindReferralNeverOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xccc", "0xddd"))

	err := f.referralSvc.BindReferral(ctx, "0xccc", "0xeee")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrAlreadyMapped, appErr.Code)

	referrer, err := f.referralSvc.LookupReferrer(ctx, "0xccc")
	require.NoError(t, err)
	assert.Equal(t, "0xddd", referrer)
}

func TestLookupReferrerStableAfterLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xaaa", "0xbbb"))
	require.NoError(t, f.referralSvc.LockOnFirstTrade(ctx, "0xAAA", "0xhash", ts))

	err := f.referralSvc.BindReferral(ctx, "0xaaa", "0xeee")
	require.Error(t, err)

	referrer, err := f.referralSvc.LookupReferrer(ctx, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, "0xbbb", referrer)

	// 重复锁定为无操作
	require.NoError(t, f.referralSvc.LockOnFirstTrade(ctx, "0xaaa", "0xother", ts.Add(time.Hour)))
	mapping, err := f.mappingRepo.GetByReferred(ctx, "0xaaa")
	require.NoError(t, err)
	assert.Equal(t, "0xhash", mapping.FirstTradeHash)
}

func TestLookupReferrerUnmapped(t *testing.T) {
	f := newFixture(t)

	referrer, err := f.referralSvc.LookupReferrer(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.Empty(t, referrer)
}

func TestCreateOrGetReferralCodeIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wallet := "0x14EB783EE20eD7970Ad5e008044002d2c71D9148"

	code1, err := f.referralSvc.CreateOrGetReferralCode(ctx, wallet)
	require.NoError(t, err)
	assert.Len(t, code1, 16)

	code2, err := f.referralSvc.CreateOrGetReferralCode(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, code1, code2)

	resolved, err := f.referralSvc.ResolveCode(ctx, code1)
	require.NoError(t, err)
	assert.Equal(t, "0x14eb783ee20ed7970ad5e008044002d2c71d9148", resolved)
}

func TestResolveUnknownCode(t *testing.T) {
	f := newFixture(t)

	resolved, err := f.referralSvc.ResolveCode(context.Background(), "ffffffffffffffff")
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestBindWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.referralSvc.RegisterUser(ctx, "tg-1", "alice"))
	require.NoError(t, f.referralSvc.BindWallet(ctx, "tg-1", "0xAAA", "", ""))

	// 同一身份重复绑定同一钱包幂等
	require.NoError(t, f.referralSvc.BindWallet(ctx, "tg-1", "0xaaa", "", ""))

	// 钱包已归属其他身份
	err := f.referralSvc.BindWallet(ctx, "tg-2", "0xaaa", "", "")
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrWalletBound, appErr.Code)

	// 身份已绑定其他钱包
	err = f.referralSvc.BindWallet(ctx, "tg-1", "0xbbb", "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xaaa", "0xbbb"))
	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xccc", "0xbbb"))

	f.insertSwap(t, "0x01", "0xaaa", "300000", ts)
	f.insertSwap(t, "0x02", "0xccc", "100000", ts)

	stats, err := f.referralSvc.GetStats(ctx, "0xBBB")
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.ReferredCount)
	assert.Equal(t, "400000", stats.TotalTaxGenerated)
	assert.Equal(t, "4000000", stats.TotalVolume)
	assert.Equal(t, "200000", stats.AccruedRewards)
	assert.True(t, stats.Withdrawable)
}

func TestGetStatsBelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xaaa", "0xbbb"))
	f.insertSwap(t, "0x01", "0xaaa", "100000", ts)

	stats, err := f.referralSvc.GetStats(ctx, "0xbbb")
	require.NoError(t, err)

	assert.Equal(t, "50000", stats.AccruedRewards)
	assert.False(t, stats.Withdrawable)
}

func TestGetLeaderboardOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)

	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xaaa", "0xbbb"))
	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xccc", "0xddd"))
	require.NoError(t, f.referralSvc.BindReferral(ctx, "0xeee", "0xddd"))

	f.insertSwap(t, "0x01", "0xaaa", "300000", ts)
	f.insertSwap(t, "0x02", "0xccc", "400000", ts)
	f.insertSwap(t, "0x03", "0xeee", "200000", ts)

	entries, err := f.referralSvc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "0xddd", entries[0].Wallet)
	assert.Equal(t, "300000", entries[0].Rewards)
	assert.Equal(t, int64(2), entries[0].ReferredCount)

	assert.Equal(t, "0xbbb", entries[1].Wallet)
	assert.Equal(t, "150000", entries[1].Rewards)

	top1, err := f.referralSvc.GetLeaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top1, 1)
	assert.Equal(t, "0xddd", top1[0].Wallet)
}
