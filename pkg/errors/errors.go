package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsConflict 判断错误是否属于冲突类（拒绝操作，不产生部分写入）
func IsConflict(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case ErrWalletBound, ErrAlreadyMapped, ErrSelfReferral, ErrDuplicateSwap, ErrPeriodSettled:
		return true
	}
	return false
}

var (
	ErrConfigLoad       = "CONFIG_LOAD_ERROR"
	ErrConfigInvalid    = "CONFIG_INVALID_ERROR"
	ErrDatabaseConnect  = "DATABASE_CONNECT_ERROR"
	ErrRPConnect        = "RPC_CONNECT_ERROR"
	ErrBlockFetch       = "BLOCK_FETCH_ERROR"
	ErrEventParse       = "EVENT_PARSE_ERROR"
	ErrSwapRecord       = "SWAP_RECORD_ERROR"
	ErrDuplicateSwap    = "DUPLICATE_SWAP"
	ErrWalletBound      = "WALLET_ALREADY_BOUND"
	ErrAlreadyMapped    = "WALLET_ALREADY_MAPPED"
	ErrSelfReferral     = "SELF_REFERRAL"
	ErrInvalidAddress   = "INVALID_ADDRESS"
	ErrInvalidSignature = "INVALID_SIGNATURE"
	ErrRewardCalc       = "REWARD_CALCULATION_ERROR"
	ErrSettlement       = "SETTLEMENT_ERROR"
	ErrPeriodSettled    = "PERIOD_ALREADY_SETTLED"
)
