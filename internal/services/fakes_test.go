package services

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"nftverify/internal/models"
)

// fakeRepo — хранилище в памяти с семантикой постгресового репозитория:
// upsert перезаписывает токен, MarkVerified гасит его.
type fakeRepo struct {
	recs   map[string]*models.Verification
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{recs: map[string]*models.Verification{}}
}

func (r *fakeRepo) UpsertToken(_ context.Context, discordID, token string, expiresAt time.Time) error {
	rec, ok := r.recs[discordID]
	if !ok {
		r.nextID++
		rec = &models.Verification{ID: r.nextID, DiscordID: discordID, CreatedAt: time.Now()}
		r.recs[discordID] = rec
	}
	t := token
	e := expiresAt
	rec.Token = &t
	rec.TokenExpires = &e
	return nil
}

func (r *fakeRepo) GetByToken(_ context.Context, token string) (*models.Verification, error) {
	for _, rec := range r.recs {
		if rec.Token != nil && *rec.Token == token {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetByDiscordID(_ context.Context, discordID string) (*models.Verification, error) {
	rec, ok := r.recs[discordID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) MarkVerified(_ context.Context, discordID, wallet string, verifiedAt time.Time) error {
	rec, ok := r.recs[discordID]
	if !ok {
		return fmt.Errorf("no record for %s", discordID)
	}
	w := wallet
	v := verifiedAt
	rec.WalletAddress = &w
	rec.VerifiedAt = &v
	rec.Token = nil
	rec.TokenExpires = nil
	return nil
}

func (r *fakeRepo) ListVerified(_ context.Context) ([]models.Verification, error) {
	var out []models.Verification
	for _, rec := range r.recs {
		if rec.WalletAddress != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) ClearWallet(_ context.Context, discordID string) error {
	rec, ok := r.recs[discordID]
	if !ok {
		return nil
	}
	rec.WalletAddress = nil
	rec.VerifiedAt = nil
	return nil
}

type fakeOracle struct {
	balances map[string]*big.Int
	err      error
	calls    int
}

func (o *fakeOracle) BalanceOf(_ context.Context, address string) (*big.Int, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	if b, ok := o.balances[strings.ToLower(address)]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

type fakeRoles struct {
	granted   map[string]bool
	grantErr  error
	revokeErr error
	grants    int
	revokes   int
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{granted: map[string]bool{}}
}

func (r *fakeRoles) Grant(_ context.Context, discordID string) error {
	if r.grantErr != nil {
		return r.grantErr
	}
	r.grants++
	r.granted[discordID] = true
	return nil
}

func (r *fakeRoles) Revoke(_ context.Context, discordID string) error {
	if r.revokeErr != nil {
		return r.revokeErr
	}
	r.revokes++
	delete(r.granted, discordID)
	return nil
}

func (r *fakeRoles) Has(_ context.Context, discordID string) (bool, error) {
	return r.granted[discordID], nil
}

func recordWithWallet(discordID, wallet string) *models.Verification {
	now := time.Now()
	return &models.Verification{
		ID:            1,
		DiscordID:     discordID,
		WalletAddress: &wallet,
		VerifiedAt:    &now,
		CreatedAt:     now,
	}
}

// signChallenge подписывает challenge так же, как это делает кошелёк
// через personal_sign (с V = 27/28).
func signChallenge(t *testing.T, key *ecdsa.PrivateKey, token string) string {
	t.Helper()
	msg := ChallengeMessage(token)
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig)
}

func keyAddress(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}
