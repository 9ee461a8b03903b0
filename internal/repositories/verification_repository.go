package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nftverify/internal/models"
)

type VerificationRepository interface {
	// UpsertToken атомарно создаёт запись или перезаписывает токен существующей.
	// Старый токен при этом перестаёт существовать — двух живых токенов на одного
	// пользователя быть не может. Привязку кошелька upsert не трогает.
	UpsertToken(ctx context.Context, discordID, token string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*models.Verification, error)
	GetByDiscordID(ctx context.Context, discordID string) (*models.Verification, error)
	// MarkVerified привязывает кошелёк и одновременно гасит токен.
	MarkVerified(ctx context.Context, discordID, wallet string, verifiedAt time.Time) error
	ListVerified(ctx context.Context) ([]models.Verification, error)
	// ClearWallet снимает привязку кошелька; сама запись остаётся.
	ClearWallet(ctx context.Context, discordID string) error
}

type verificationRepository struct{ db *sql.DB }

func NewVerificationRepository(db *sql.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

// EnsureSchema — создаём таблицу и индекс по токену при старте.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS verifications (
			id BIGSERIAL PRIMARY KEY,
			discord_id TEXT UNIQUE NOT NULL,
			wallet_address TEXT,
			verification_token TEXT,
			token_expires_at TIMESTAMPTZ,
			verified_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("verifications schema: %w", err)
	}
	const idx = `CREATE INDEX IF NOT EXISTS idx_verifications_token ON verifications (verification_token)`
	if _, err := db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("verifications token index: %w", err)
	}
	return nil
}

const verificationColumns = `id, discord_id, wallet_address, verification_token, token_expires_at, verified_at, created_at`

func scanVerification(row interface{ Scan(...any) error }) (*models.Verification, error) {
	var (
		v      models.Verification
		wallet sql.NullString
		token  sql.NullString
		tokExp sql.NullTime
		verAt  sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.DiscordID, &wallet, &token, &tokExp, &verAt, &v.CreatedAt); err != nil {
		return nil, err
	}
	if wallet.Valid {
		v.WalletAddress = &wallet.String
	}
	if token.Valid {
		v.Token = &token.String
	}
	if tokExp.Valid {
		t := tokExp.Time
		v.TokenExpires = &t
	}
	if verAt.Valid {
		t := verAt.Time
		v.VerifiedAt = &t
	}
	return &v, nil
}

func (r *verificationRepository) UpsertToken(ctx context.Context, discordID, token string, expiresAt time.Time) error {
	const q = `
		INSERT INTO verifications (discord_id, verification_token, token_expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (discord_id) DO UPDATE SET
			verification_token = excluded.verification_token,
			token_expires_at = excluded.token_expires_at
	`
	if _, err := r.db.ExecContext(ctx, q, discordID, token, expiresAt); err != nil {
		return fmt.Errorf("verification upsert token: %w", err)
	}
	return nil
}

func (r *verificationRepository) GetByToken(ctx context.Context, token string) (*models.Verification, error) {
	q := `SELECT ` + verificationColumns + ` FROM verifications WHERE verification_token = $1`
	v, err := scanVerification(r.db.QueryRowContext(ctx, q, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("verification by token: %w", err)
	}
	return v, nil
}

func (r *verificationRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.Verification, error) {
	q := `SELECT ` + verificationColumns + ` FROM verifications WHERE discord_id = $1`
	v, err := scanVerification(r.db.QueryRowContext(ctx, q, discordID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("verification by discord_id: %w", err)
	}
	return v, nil
}

func (r *verificationRepository) MarkVerified(ctx context.Context, discordID, wallet string, verifiedAt time.Time) error {
	const q = `
		UPDATE verifications
		SET wallet_address = $1, verified_at = $2, verification_token = NULL, token_expires_at = NULL
		WHERE discord_id = $3
	`
	if _, err := r.db.ExecContext(ctx, q, wallet, verifiedAt, discordID); err != nil {
		return fmt.Errorf("verification mark verified: %w", err)
	}
	return nil
}

func (r *verificationRepository) ListVerified(ctx context.Context) ([]models.Verification, error) {
	q := `SELECT ` + verificationColumns + ` FROM verifications WHERE wallet_address IS NOT NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("verification list verified: %w", err)
	}
	defer rows.Close()

	var out []models.Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("verification list scan: %w", err)
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("verification list rows: %w", err)
	}
	return out, nil
}

func (r *verificationRepository) ClearWallet(ctx context.Context, discordID string) error {
	const q = `UPDATE verifications SET wallet_address = NULL, verified_at = NULL WHERE discord_id = $1`
	if _, err := r.db.ExecContext(ctx, q, discordID); err != nil {
		return fmt.Errorf("verification clear wallet: %w", err)
	}
	return nil
}
