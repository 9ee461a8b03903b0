package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"nftverify/internal/models"
	"nftverify/internal/repositories"
)

var (
	ErrTokenNotFound   = errors.New("token not found")
	ErrTokenExpired    = errors.New("token expired")
	ErrAddressMismatch = errors.New("signature does not match address")
	ErrNoHoldings      = errors.New("no nft in wallet")
	ErrNotVerified     = errors.New("user is not verified")
	// ErrRoleAssign — подпись и баланс прошли, запись в БД сделана, но роль
	// выдать не удалось. Пользователь остаётся "верифицирован, но без роли"
	// до ручного вмешательства или следующего прохода планировщика.
	ErrRoleAssign = errors.New("verified but role assignment failed")
)

const defaultTokenTTL = 15 * time.Minute

type VerifyResult struct {
	Balance *big.Int
	Wallet  string
}

// VerificationService — вся логика жизненного цикла верификации:
// выдача токена -> проверка подписи -> проверка баланса -> выдача роли,
// плюс обратный переход (снятие кошелька).
type VerificationService struct {
	Repo   repositories.VerificationRepository
	Oracle OwnershipOracle
	Roles  RoleManager

	// Recover и Now подменяются в тестах
	Recover func(message, signature string) (string, error)
	Now     func() time.Time
	TTL     time.Duration
}

func NewVerificationService(repo repositories.VerificationRepository, oracle OwnershipOracle, roles RoleManager) *VerificationService {
	return &VerificationService{
		Repo:    repo,
		Oracle:  oracle,
		Roles:   roles,
		Recover: RecoverAddress,
		Now:     time.Now,
		TTL:     defaultTokenTTL,
	}
}

// IssueToken выдаёт новый одноразовый токен. Upsert перезаписывает старый
// токен, так что живой токен у пользователя всегда максимум один.
// Существующую привязку кошелька выдача токена не трогает.
func (s *VerificationService) IssueToken(ctx context.Context, discordID string) (string, time.Time, error) {
	token := uuid.NewString()
	expiresAt := s.Now().Add(s.TTL)
	if err := s.Repo.UpsertToken(ctx, discordID, token, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	log.Printf("[verify][issue] token issued: user=%s expires_at=%s", discordID, expiresAt.UTC().Format(time.RFC3339))
	return token, expiresAt, nil
}

// CheckToken находит запись по токену и проверяет срок.
// Срок проверяется на чтении: просроченный токен мёртв, даже если лежит в БД.
func (s *VerificationService) CheckToken(ctx context.Context, token string) (*models.Verification, error) {
	rec, err := s.Repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrTokenNotFound
	}
	if rec.TokenExpired(s.Now()) {
		return nil, ErrTokenExpired
	}
	return rec, nil
}

// Verify — переход TokenIssued -> Verified. Порядок строгий:
// живой токен -> подпись сходится с заявленным адресом -> баланс > 0.
// Любой сбой до записи в БД ничего не мутирует: токен остаётся валидным,
// пользователь может повторить попытку до истечения срока.
func (s *VerificationService) Verify(ctx context.Context, token, address, signature string) (*VerifyResult, error) {
	rec, err := s.CheckToken(ctx, token)
	if err != nil {
		return nil, err
	}

	recovered, err := s.Recover(ChallengeMessage(token), signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(recovered, address) {
		// это не кривая подпись, а попытка выдать чужой адрес за свой
		log.Printf("[verify][mismatch] user=%s claimed=%s recovered=%s", rec.DiscordID, address, recovered)
		return nil, ErrAddressMismatch
	}

	balance, err := s.Oracle.BalanceOf(ctx, address)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNoHoldings
	}

	wallet := strings.ToLower(address)
	if err := s.Repo.MarkVerified(ctx, rec.DiscordID, wallet, s.Now()); err != nil {
		return nil, err
	}
	log.Printf("[verify][ok] user=%s wallet=%s balance=%s", rec.DiscordID, wallet, balance)

	result := &VerifyResult{Balance: balance, Wallet: wallet}

	// Запись в БД сделана до выдачи роли: если Discord сейчас упадёт,
	// проделанная криптографическая работа не теряется.
	if err := s.Roles.Grant(ctx, rec.DiscordID); err != nil {
		log.Printf("[verify][role][err] user=%s: %v", rec.DiscordID, err)
		return result, fmt.Errorf("%w: %v", ErrRoleAssign, err)
	}
	return result, nil
}

// RemoveWallet — переход Verified -> Unlinked. Порядок обратный выдаче:
// сначала чистим БД, потом снимаем роль. Если снятие роли упало, запись
// назад не откатываем — лучше потерять доступ, чем оставить роль тому,
// кто явно попросил отвязку.
func (s *VerificationService) RemoveWallet(ctx context.Context, discordID string) error {
	rec, err := s.Repo.GetByDiscordID(ctx, discordID)
	if err != nil {
		return err
	}
	if rec == nil || !rec.HasWallet() {
		return ErrNotVerified
	}
	if err := s.Repo.ClearWallet(ctx, discordID); err != nil {
		return err
	}
	log.Printf("[verify][unlink] wallet cleared: user=%s", discordID)
	if err := s.Roles.Revoke(ctx, discordID); err != nil {
		return err
	}
	return nil
}

// Status — только чтение, без побочных эффектов. Отсутствие записи — не ошибка.
func (s *VerificationService) Status(ctx context.Context, discordID string) (*models.Verification, error) {
	return s.Repo.GetByDiscordID(ctx, discordID)
}
