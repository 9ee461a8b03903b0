package models

import "time"

// Verification — одна запись на каждого пользователя Discord (уникальный discord_id).
// WalletAddress заполнен тогда и только тогда, когда пользователь верифицирован;
// Token/TokenExpiresAt — пока висит незавершённая попытка верификации.
type Verification struct {
	ID            int64      `json:"id"`
	DiscordID     string     `json:"discord_id"`
	WalletAddress *string    `json:"wallet_address,omitempty"`
	Token         *string    `json:"-"`
	TokenExpires  *time.Time `json:"-"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasWallet — пользователь сейчас считается верифицированным.
func (v *Verification) HasWallet() bool {
	return v.WalletAddress != nil && *v.WalletAddress != ""
}

// TokenExpired — токен есть, но его срок уже вышел.
// Просроченный токен логически мёртв, даже если строка ещё лежит в БД.
func (v *Verification) TokenExpired(now time.Time) bool {
	return v.TokenExpires != nil && now.After(*v.TokenExpires)
}

// MaskedWallet — сокращённый адрес вида 0x1234...abcd для ответов пользователю.
func (v *Verification) MaskedWallet() string {
	if !v.HasWallet() {
		return ""
	}
	w := *v.WalletAddress
	if len(w) <= 10 {
		return w
	}
	return w[:6] + "..." + w[len(w)-4:]
}
