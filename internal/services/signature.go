package services

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidSignature = errors.New("invalid signature")

// ChallengeMessage — текст, который пользователь подписывает кошельком.
// Формат зафиксирован побайтово: его же собирает фронтенд перед personal_sign,
// менять нельзя, иначе старые подписи перестанут проходить.
func ChallengeMessage(token string) string {
	return fmt.Sprintf("Verify Monadverse NFT ownership for Discord\nToken: %s", token)
}

// RecoverAddress восстанавливает адрес подписанта из подписи personal_sign
// (EIP-191). Возвращает адрес в исходном hex-виде с префиксом 0x.
func RecoverAddress(message, signature string) (string, error) {
	sigHex := strings.TrimPrefix(signature, "0x")
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("%w: length %d, want 65", ErrInvalidSignature, len(sig))
	}
	// кошельки отдают V как 27/28, go-ethereum ждёт 0/1
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] != 0 && sig[64] != 1 {
		return "", fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[64])
	}

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256([]byte(prefixed))

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
