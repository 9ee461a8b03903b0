package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"nftverify/internal/repositories"
)

// SweepStats — итог одного прохода переверификации.
type SweepStats struct {
	Reaffirmed int
	Revoked    int
	Errors     int
}

// Scheduler раз в сутки перепроверяет всех верифицированных: NFT могли
// продать или перевести после верификации, а первичная проверка — разовый
// снимок, не бессрочная гарантия.
type Scheduler struct {
	Repo   repositories.VerificationRepository
	Oracle OwnershipOracle
	Roles  RoleManager

	// Delay — пауза между пользователями: батч идёт строго последовательно,
	// чтобы не ушатать rate limit'ы RPC-ноды и Discord API.
	Delay time.Duration
	Sleep func(time.Duration) // подменяется в тестах

	cron *cron.Cron
}

func NewScheduler(repo repositories.VerificationRepository, oracle OwnershipOracle, roles RoleManager, delay time.Duration) *Scheduler {
	return &Scheduler{
		Repo:   repo,
		Oracle: oracle,
		Roles:  roles,
		Delay:  delay,
		Sleep:  time.Sleep,
	}
}

// Start вешает Sweep на cron-расписание (UTC). Блокирует только сам запуск
// планировщика, не выполнение.
func (s *Scheduler) Start(spec string) error {
	s.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := s.cron.AddFunc(spec, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[scheduler] daily re-verification scheduled: spec=%q (UTC)", spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep перепроверяет все записи с привязанным кошельком. Ошибка по одному
// пользователю считается и логируется, но не прерывает остальных.
// Повторный прогон при неизменном состоянии сети ничего не меняет:
// Grant/Revoke идемпотентны, ClearWallet зовётся только при нулевом балансе.
func (s *Scheduler) Sweep(ctx context.Context) SweepStats {
	log.Printf("[scheduler] starting re-verification sweep")

	var stats SweepStats

	users, err := s.Repo.ListVerified(ctx)
	if err != nil {
		log.Printf("[scheduler][err] list verified: %v", err)
		stats.Errors++
		return stats
	}
	log.Printf("[scheduler] found %d verified users to check", len(users))

	for i, u := range users {
		if i > 0 && s.Delay > 0 {
			s.Sleep(s.Delay)
		}
		if u.WalletAddress == nil {
			continue
		}

		balance, err := s.Oracle.BalanceOf(ctx, *u.WalletAddress)
		if err != nil {
			log.Printf("[scheduler][err] user=%s: %v", u.DiscordID, err)
			stats.Errors++
			continue
		}

		if balance.Sign() > 0 {
			// всё ещё холдер — подтверждаем роль (no-op, если она и так есть)
			if err := s.Roles.Grant(ctx, u.DiscordID); err != nil {
				log.Printf("[scheduler][err] grant user=%s: %v", u.DiscordID, err)
				stats.Errors++
				continue
			}
			stats.Reaffirmed++
			continue
		}

		// NFT больше нет: снимаем роль и чистим привязку
		if err := s.Roles.Revoke(ctx, u.DiscordID); err != nil {
			log.Printf("[scheduler][err] revoke user=%s: %v", u.DiscordID, err)
			stats.Errors++
			continue
		}
		if err := s.Repo.ClearWallet(ctx, u.DiscordID); err != nil {
			log.Printf("[scheduler][err] clear wallet user=%s: %v", u.DiscordID, err)
			stats.Errors++
			continue
		}
		stats.Revoked++
		log.Printf("[scheduler] revoked: user=%s no longer holds the nft", u.DiscordID)
	}

	log.Printf("[scheduler] sweep complete: reaffirmed=%d revoked=%d errors=%d",
		stats.Reaffirmed, stats.Revoked, stats.Errors)
	return stats
}
