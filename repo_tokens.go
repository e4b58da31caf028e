package session

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var DeprecatePendingTokensSQL = `UPDATE "single_use_tokens" AS "sut"
SET
	"status" = 'deprecated'
WHERE
	"sut"."user_id" = ?
AND "sut"."token_type" = ?
AND "sut"."status" = 'pending';`

var ConsumeTokenSQL = `UPDATE "single_use_tokens" AS "sut"
SET
	"status" = 'used',
	"used_at" = ?
WHERE
	"sut"."id" = ?
AND "sut"."status" = 'pending'
RETURNING *;`

// IssueOption customizes a single token issuance.
type IssueOption func(*issueOptions)

type issueOptions struct {
	ttl      time.Duration
	metadata map[string]any
}

// WithTokenTTL overrides the per-type default lifetime.
func WithTokenTTL(ttl time.Duration) IssueOption {
	return func(o *issueOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithTokenMetadata attaches host-defined metadata to the issued token.
func WithTokenMetadata(metadata map[string]any) IssueOption {
	return func(o *issueOptions) {
		o.metadata = metadata
	}
}

type SingleUseTokens interface {
	repository.Repository[*SingleUseToken]

	GetByToken(ctx context.Context, token string) (*SingleUseToken, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*SingleUseToken, error)

	Issue(ctx context.Context, userID uuid.UUID, tokenType TokenType, opts ...IssueOption) (*SingleUseToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType, opts ...IssueOption) (*SingleUseToken, error)

	Consume(ctx context.Context, id uuid.UUID) (*SingleUseToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*SingleUseToken, error)

	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

type singleUseTokens struct {
	repository.Repository[*SingleUseToken]
	db *bun.DB
}

var (
	_ SingleUseTokens                        = (*singleUseTokens)(nil)
	_ repository.Repository[*SingleUseToken] = (*singleUseTokens)(nil)
)

func NewSingleUseTokensRepository(db *bun.DB) SingleUseTokens {
	repo := repository.NewRepository[*SingleUseToken](db, repository.ModelHandlers[*SingleUseToken]{
		NewRecord: func() *SingleUseToken { return &SingleUseToken{} },
		GetID: func(t *SingleUseToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *SingleUseToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &singleUseTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *singleUseTokens) GetByToken(ctx context.Context, token string) (*SingleUseToken, error) {
	return r.GetByTokenTx(ctx, r.db, token)
}

func (r *singleUseTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*SingleUseToken, error) {
	record := &SingleUseToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return record, nil
}

func (r *singleUseTokens) Issue(ctx context.Context, userID uuid.UUID, tokenType TokenType, opts ...IssueOption) (*SingleUseToken, error) {
	return r.IssueTx(ctx, r.db, userID, tokenType, opts...)
}

// IssueTx creates a new pending token and deprecates any prior pending token
// for the same (user, type) pair. Run inside a transaction when the caller
// needs both effects to land atomically.
func (r *singleUseTokens) IssueTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenType TokenType, opts ...IssueOption) (*SingleUseToken, error) {
	if !tokenType.IsValid() {
		return nil, goerrors.New("invalid token type", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{
				"token_type": string(tokenType),
			})
	}

	options := issueOptions{ttl: TokenTTL(tokenType)}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	if _, err := tx.NewRaw(DeprecatePendingTokensSQL, userID, string(tokenType)).Exec(ctx); err != nil {
		return nil, err
	}

	value, err := NewTokenString()
	if err != nil {
		return nil, err
	}

	record := &SingleUseToken{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      tokenType,
		Token:     value,
		Status:    SingleUsePending,
		ExpiresAt: time.Now().Add(options.ttl),
		Metadata:  options.metadata,
	}

	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *singleUseTokens) Consume(ctx context.Context, id uuid.UUID) (*SingleUseToken, error) {
	return r.ConsumeTx(ctx, r.db, id)
}

// ConsumeTx marks a pending token as used. The status guard in the UPDATE
// makes consumption atomic: when two requests race on the same token exactly
// one wins, the loser sees ErrTokenAlreadyUsed.
func (r *singleUseTokens) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*SingleUseToken, error) {
	res, err := r.Repository.RawTx(ctx, tx, ConsumeTokenSQL, time.Now(), id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrTokenAlreadyUsed
	}

	return res[0], nil
}

// DeleteExpired removes tokens whose expiry predates olderThan regardless of
// status. Used and deprecated rows past the horizon go too.
func (r *singleUseTokens) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*SingleUseToken)(nil)).
		Where("?TableAlias.expires_at <= ?", olderThan).
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
