package service

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// GenerateVerificationMessage 生成钱包连接签名消息
// 消息签名即可完成绑定，不需要上链交易
func GenerateVerificationMessage(identityID string) (string, string) {
	nonce := uuid.NewString()
	message := fmt.Sprintf(`COPE Referral - Wallet Connection

Identity: %s
Nonce: %s

Sign this message to connect your wallet.
This does not require a transaction or cost any gas.`, identityID, nonce)
	return message, nonce
}

// VerifySignature 校验personal_sign签名是否出自指定钱包
func VerifySignature(message, signature, walletAddress string) bool {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != 65 {
		return false
	}

	// personal_sign的v值为27/28，恢复时归一化为0/1
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recovered.Hex(), walletAddress)
}

// FormatWalletAddress 截断中间部分用于展示
func FormatWalletAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
