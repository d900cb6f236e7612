package blockchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cope-referral-system/internal/models"
)

const (
	poolAddr   = "0x7d39a0cfe597a92bed702844d42b063204ed4d85"
	traderAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	otherAddr  = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func addressTopic(addr string) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(common.HexToAddress(addr).Bytes(), 32))
}

func transferLog(from, to string, value *big.Int) types.Log {
	transferSig := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	return types.Log{
		Topics:      []common.Hash{transferSig, addressTopic(from), addressTopic(to)},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		TxHash:      common.HexToHash("0x01"),
		BlockNumber: 100,
	}
}

func TestParseTransferLog(t *testing.T) {
	value := big.NewInt(5000000)
	event, err := ParseTransferLog(transferLog(traderAddr, poolAddr, value))
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress(traderAddr), event.From)
	assert.Equal(t, common.HexToAddress(poolAddr), event.To)
	assert.Equal(t, 0, event.Value.Cmp(value))
	assert.Equal(t, int64(100), event.BlockNum)
}

func TestParseTransferLogInsufficientTopics(t *testing.T) {
	log := types.Log{Topics: []common.Hash{common.HexToHash("0x01")}}
	_, err := ParseTransferLog(log)
	assert.ErrorIs(t, err, ErrInvalidLogFormat)
}

func TestClassifySell(t *testing.T) {
	pools := map[string]bool{poolAddr: true}

	event, err := ParseTransferLog(transferLog(traderAddr, poolAddr, big.NewInt(1)))
	require.NoError(t, err)

	swapType, trader, ok := event.Classify(pools)
	require.True(t, ok)
	assert.Equal(t, models.SwapTypeSell, swapType)
	assert.Equal(t, traderAddr, trader)
}

func TestClassifyBuy(t *testing.T) {
	pools := map[string]bool{poolAddr: true}

	event, err := ParseTransferLog(transferLog(poolAddr, traderAddr, big.NewInt(1)))
	require.NoError(t, err)

	swapType, trader, ok := event.Classify(pools)
	require.True(t, ok)
	assert.Equal(t, models.SwapTypeBuy, swapType)
	assert.Equal(t, traderAddr, trader)
}

func TestClassifyNotASwap(t *testing.T) {
	pools := map[string]bool{poolAddr: true}

	event, err := ParseTransferLog(transferLog(traderAddr, otherAddr, big.NewInt(1)))
	require.NoError(t, err)

	_, _, ok := event.Classify(pools)
	assert.False(t, ok)
}

func TestCalculateTax(t *testing.T) {
	// 600bps = 6%
	tax := CalculateTax(big.NewInt(1000000), 600)
	assert.Equal(t, "60000", tax.String())

	// 向下取整
	tax = CalculateTax(big.NewInt(3), 600)
	assert.Equal(t, "0", tax.String())

	big18, _ := new(big.Int).SetString("5000000000000000000000", 10)
	tax = CalculateTax(big18, 600)
	assert.Equal(t, "300000000000000000000", tax.String())
}
