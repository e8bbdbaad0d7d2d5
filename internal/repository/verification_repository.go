package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureshare/portal/internal/domain"
)

// VerificationRepository manages email verification tokens.
type VerificationRepository interface {
	Create(ctx context.Context, token *domain.VerificationToken) error
	GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error)
	// MarkUsed flags the token used; it reports false when it was already used.
	MarkUsed(ctx context.Context, id string) (bool, error)
}

type verificationRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationRepository constructs repository.
func NewVerificationRepository(pool *pgxpool.Pool) VerificationRepository {
	return &verificationRepository{pool: pool}
}

func (r *verificationRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	const query = `
        INSERT INTO verification_tokens (account_id, email, token, expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		token.AccountID,
		token.Email,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	return mapWriteError(err)
}

func (r *verificationRepository) GetByToken(ctx context.Context, tokenStr string) (*domain.VerificationToken, error) {
	const query = `
        SELECT id, account_id, email, token, expires_at, used_at, created_at
        FROM verification_tokens WHERE token=$1`
	var token domain.VerificationToken
	if err := r.pool.QueryRow(ctx, query, tokenStr).Scan(
		&token.ID,
		&token.AccountID,
		&token.Email,
		&token.Token,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *verificationRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE verification_tokens SET used_at=NOW()
        WHERE id=$1 AND used_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
