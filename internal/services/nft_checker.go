package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrOracle — нода недоступна или вернула мусор. Это НЕ то же самое, что
// нулевой баланс: ноль — легитимный ответ ("не холдер"), ошибка ноды — нет.
var ErrOracle = errors.New("nft balance check failed")

var ErrBadAddress = errors.New("invalid wallet address")

// selector balanceOf(address) из ERC-721
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

type OwnershipOracle interface {
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
}

// NFTChecker ходит в контракт NFT через JSON-RPC и возвращает текущий баланс.
// Без кеша: каждый вызов отражает состояние сети на момент обращения.
type NFTChecker struct {
	rpcURL   string
	contract common.Address
	timeout  time.Duration

	mu     sync.Mutex
	client *ethclient.Client // ленивое подключение, как и у провайдера на фронте
}

func NewNFTChecker(rpcURL, contract string, timeout time.Duration) *NFTChecker {
	return &NFTChecker{
		rpcURL:   rpcURL,
		contract: common.HexToAddress(contract),
		timeout:  timeout,
	}
}

func (n *NFTChecker) getClient(ctx context.Context) (*ethclient.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil {
		return n.client, nil
	}
	client, err := ethclient.DialContext(ctx, n.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	n.client = client
	return client, nil
}

func (n *NFTChecker) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrBadAddress, address)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	client, err := n.getClient(ctx)
	if err != nil {
		log.Printf("[oracle][dial][err] %v", err)
		return nil, fmt.Errorf("%w: %v", ErrOracle, err)
	}

	owner := common.HexToAddress(address)
	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(owner.Bytes(), 32)...)

	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &n.contract, Data: data}, nil)
	if err != nil {
		log.Printf("[oracle][call][err] address=%s: %v", address, err)
		return nil, fmt.Errorf("%w: %v", ErrOracle, err)
	}
	if len(out) == 0 || len(out) > 32 {
		log.Printf("[oracle][call][err] address=%s: malformed response (%d bytes)", address, len(out))
		return nil, fmt.Errorf("%w: malformed response", ErrOracle)
	}
	return new(big.Int).SetBytes(out), nil
}
