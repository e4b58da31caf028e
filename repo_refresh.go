package session

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ClaimRefreshTokenSQL = `UPDATE "refresh_tokens" AS "rft"
SET
	"revoked_at" = ?,
	"last_used_at" = ?,
	"updated_at" = ?
WHERE
	"rft"."token_hash" = ?
AND "rft"."revoked_at" IS NULL
RETURNING *;`

var RevokeRefreshTokenSQL = `UPDATE "refresh_tokens" AS "rft"
SET
	"revoked_at" = ?,
	"updated_at" = ?
WHERE
	"rft"."token_hash" = ?
AND "rft"."revoked_at" IS NULL
RETURNING *;`

var RevokeAllRefreshTokensSQL = `UPDATE "refresh_tokens" AS "rft"
SET
	"revoked_at" = ?,
	"updated_at" = ?
WHERE
	"rft"."user_id" = ?
AND "rft"."revoked_at" IS NULL
RETURNING *;`

type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, hash string) (*RefreshToken, error)

	Claim(ctx context.Context, hash string) (*RefreshToken, bool, error)
	ClaimTx(ctx context.Context, tx bun.IDB, hash string) (*RefreshToken, bool, error)

	Revoke(ctx context.Context, hash string) (bool, error)
	RevokeTx(ctx context.Context, tx bun.IDB, hash string) (bool, error)

	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	RevokeAllByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error)

	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var (
	_ RefreshTokens                        = (*refreshTokens)(nil)
	_ repository.Repository[*RefreshToken] = (*refreshTokens)(nil)
)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(t *RefreshToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *RefreshToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token_hash"
		},
	})

	return &refreshTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *refreshTokens) GetByHash(ctx context.Context, hash string) (*RefreshToken, error) {
	return r.GetByHashTx(ctx, r.db, hash)
}

func (r *refreshTokens) GetByHashTx(ctx context.Context, tx bun.IDB, hash string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	return record, nil
}

func (r *refreshTokens) Claim(ctx context.Context, hash string) (*RefreshToken, bool, error) {
	return r.ClaimTx(ctx, r.db, hash)
}

// ClaimTx revokes an active token and returns it in one statement. The
// revoked_at guard means a replayed token claims zero rows, so exactly one
// caller wins a rotation race. The bool reports whether this caller won.
func (r *refreshTokens) ClaimTx(ctx context.Context, tx bun.IDB, hash string) (*RefreshToken, bool, error) {
	now := time.Now()
	res, err := r.Repository.RawTx(ctx, tx, ClaimRefreshTokenSQL, now, now, now, hash)
	if err != nil {
		return nil, false, err
	}

	if len(res) == 0 {
		return nil, false, nil
	}

	return res[0], true, nil
}

func (r *refreshTokens) Revoke(ctx context.Context, hash string) (bool, error) {
	return r.RevokeTx(ctx, r.db, hash)
}

// RevokeTx marks a token revoked. Idempotent: revoking an already revoked or
// absent token affects zero rows and returns false without error.
func (r *refreshTokens) RevokeTx(ctx context.Context, tx bun.IDB, hash string) (bool, error) {
	now := time.Now()
	res, err := r.Repository.RawTx(ctx, tx, RevokeRefreshTokenSQL, now, now, hash)
	if err != nil {
		return false, err
	}

	return len(res) > 0, nil
}

func (r *refreshTokens) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.RevokeAllByUserIDTx(ctx, r.db, userID)
}

// RevokeAllByUserIDTx revokes every active session for a user, returning the
// number revoked.
func (r *refreshTokens) RevokeAllByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	now := time.Now()
	res, err := r.Repository.RawTx(ctx, tx, RevokeAllRefreshTokensSQL, now, now, userID.String())
	if err != nil {
		return 0, err
	}

	return len(res), nil
}

// DeleteExpired removes rows that can never be exchanged again: expired
// before olderThan, or already revoked. Revocation state only matters while
// a client could still present the raw token.
func (r *refreshTokens) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("?TableAlias.expires_at <= ?", olderThan).
		WhereOr("?TableAlias.revoked_at IS NOT NULL").
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return affected, nil
}
