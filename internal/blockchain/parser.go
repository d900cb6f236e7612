package blockchain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"cope-referral-system/internal/models"
)

type TransferEvent struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	TxHash   string
	BlockNum int64
}

func ParseTransferLog(log types.Log) (*TransferEvent, error) {
	if len(log.Topics) < 3 {
		return nil, ErrInvalidLogFormat
	}

	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())

	value := new(big.Int)
	if len(log.Data) > 0 {
		value.SetBytes(log.Data)
	}

	return &TransferEvent{
		From:     from,
		To:       to,
		Value:    value,
		TxHash:   log.TxHash.Hex(),
		BlockNum: int64(log.BlockNumber),
	}, nil
}

// Classify 根据流动性池集合判定交易方向
// 转入池为卖出，转出池为买入，交易者为非池一侧；都不涉及池则不是交易
func (e *TransferEvent) Classify(approvedPools map[string]bool) (models.SwapType, string, bool) {
	from := strings.ToLower(e.From.Hex())
	to := strings.ToLower(e.To.Hex())

	if approvedPools[to] {
		return models.SwapTypeSell, from, true
	}
	if approvedPools[from] {
		return models.SwapTypeBuy, to, true
	}
	return "", "", false
}

// CalculateTax 按配置费率从转账金额计算税额
// 费率为策略常量而非链上真实逻辑，近似值，见配置说明
func CalculateTax(amount *big.Int, taxRateBps int64) *big.Int {
	tax := new(big.Int).Mul(amount, big.NewInt(taxRateBps))
	return tax.Div(tax, big.NewInt(10000))
}

var ErrInvalidLogFormat = &InvalidLogFormatError{}

type InvalidLogFormatError struct{}

func (e *InvalidLogFormatError) Error() string {
	return "invalid log format: insufficient topics"
}
