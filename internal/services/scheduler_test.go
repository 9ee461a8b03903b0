package services

import (
	"context"
	"math/big"
	"testing"
	"time"
)

func TestSweepRevokesNonHoldersReaffirmsHolders(t *testing.T) {
	repo := newFakeRepo()
	roles := newFakeRoles()
	repo.recs["holder"] = recordWithWallet("holder", "0xaaaa000000000000000000000000000000000001")
	repo.recs["seller"] = recordWithWallet("seller", "0xbbbb000000000000000000000000000000000002")
	roles.granted["holder"] = true
	roles.granted["seller"] = true

	oracle := &fakeOracle{balances: map[string]*big.Int{
		"0xaaaa000000000000000000000000000000000001": big.NewInt(2),
		// seller продал NFT — баланс нулевой
	}}

	s := NewScheduler(repo, oracle, roles, 0)
	stats := s.Sweep(context.Background())

	if stats.Reaffirmed != 1 || stats.Revoked != 1 || stats.Errors != 0 {
		t.Fatalf("stats = %+v, want reaffirmed=1 revoked=1 errors=0", stats)
	}
	if roles.revokes != 1 {
		t.Fatalf("revokes = %d, want exactly 1", roles.revokes)
	}
	if roles.grants != 1 {
		t.Fatalf("grants = %d, want exactly 1 re-affirmation", roles.grants)
	}
	if repo.recs["seller"].WalletAddress != nil {
		t.Fatalf("seller wallet binding must be cleared")
	}
	if repo.recs["holder"].WalletAddress == nil {
		t.Fatalf("holder binding must survive")
	}
}

func TestSweepIdempotent(t *testing.T) {
	repo := newFakeRepo()
	roles := newFakeRoles()
	repo.recs["holder"] = recordWithWallet("holder", "0xaaaa000000000000000000000000000000000001")
	repo.recs["seller"] = recordWithWallet("seller", "0xbbbb000000000000000000000000000000000002")
	roles.granted["holder"] = true
	roles.granted["seller"] = true

	oracle := &fakeOracle{balances: map[string]*big.Int{
		"0xaaaa000000000000000000000000000000000001": big.NewInt(1),
	}}
	s := NewScheduler(repo, oracle, roles, 0)

	s.Sweep(context.Background())
	second := s.Sweep(context.Background())

	// состояние сети не менялось — второй проход ничего не отзывает
	if second.Revoked != 0 {
		t.Fatalf("second sweep revoked %d, want 0", second.Revoked)
	}
	if second.Reaffirmed != 1 {
		t.Fatalf("second sweep reaffirmed %d, want 1", second.Reaffirmed)
	}
	if _, stillGranted := roles.granted["seller"]; stillGranted {
		t.Fatalf("seller must stay revoked")
	}
	if !roles.granted["holder"] {
		t.Fatalf("holder must stay granted")
	}
}

func TestSweepIsolatesPerUserErrors(t *testing.T) {
	repo := newFakeRepo()
	roles := newFakeRoles()
	repo.recs["broken"] = recordWithWallet("broken", "0xcccc000000000000000000000000000000000003")
	repo.recs["holder"] = recordWithWallet("holder", "0xaaaa000000000000000000000000000000000001")
	roles.granted["holder"] = true

	oracle := &failFirstOracle{
		failFor: "0xcccc000000000000000000000000000000000003",
		inner:   &fakeOracle{balances: map[string]*big.Int{"0xaaaa000000000000000000000000000000000001": big.NewInt(1)}},
	}

	s := NewScheduler(repo, oracle, roles, 0)
	stats := s.Sweep(context.Background())

	// сбой по одному пользователю не валит остальной батч
	if stats.Errors != 1 {
		t.Fatalf("errors = %d, want 1", stats.Errors)
	}
	if stats.Reaffirmed != 1 {
		t.Fatalf("reaffirmed = %d, want 1 (batch must continue past the failure)", stats.Reaffirmed)
	}
	if repo.recs["broken"].WalletAddress == nil {
		t.Fatalf("oracle failure must not clear the wallet")
	}
}

func TestSweepPacesCalls(t *testing.T) {
	repo := newFakeRepo()
	roles := newFakeRoles()
	for _, id := range []string{"u1", "u2", "u3"} {
		repo.recs[id] = recordWithWallet(id, "0xaaaa00000000000000000000000000000000000"+id[1:])
		roles.granted[id] = true
	}
	oracle := &fakeOracle{balances: map[string]*big.Int{}}

	var sleeps int
	s := NewScheduler(repo, oracle, roles, 500*time.Millisecond)
	s.Sleep = func(d time.Duration) {
		if d != 500*time.Millisecond {
			t.Errorf("sleep = %s, want 500ms", d)
		}
		sleeps++
	}

	s.Sweep(context.Background())
	if sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2 between 3 users", sleeps)
	}
}

type failFirstOracle struct {
	failFor string
	inner   *fakeOracle
}

func (o *failFirstOracle) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	if address == o.failFor {
		return nil, ErrOracle
	}
	return o.inner.BalanceOf(ctx, address)
}
