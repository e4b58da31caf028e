package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultAccessTokenTTL bounds how long a verified claim set stays valid
// without a database round trip.
const DefaultAccessTokenTTL = 15 * time.Minute

// TokenSubject is the claim subset callers provide at signing time.
type TokenSubject struct {
	ID           string
	Email        string
	Role         UserRole
	Status       UserStatus
	TokenVersion int
}

// SignOption customizes a single signing operation.
type SignOption func(*signOptions)

type signOptions struct {
	ttl      time.Duration
	issuedAt time.Time
}

// WithTTL overrides the codec's default expiration for one token.
func WithTTL(ttl time.Duration) SignOption {
	return func(o *signOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithIssuedAt overrides the issuance time, useful for tests.
func WithIssuedAt(at time.Time) SignOption {
	return func(o *signOptions) {
		if !at.IsZero() {
			o.issuedAt = at
		}
	}
}

// TokenCodec signs and verifies access tokens. Verification accepts tokens
// signed with either the current or, when configured, the previous secret so
// secrets rotate with zero downtime: in-flight tokens stay valid until their
// natural expiry while all new tokens use the current secret exclusively.
type TokenCodec struct {
	secret         []byte
	previousSecret []byte
	ttl            time.Duration
	issuer         string
	audience       jwt.ClaimStrings
	logger         Logger
	now            func() time.Time
}

var _ TokenSigner = (*TokenCodec)(nil)
var _ TokenValidator = (*TokenCodec)(nil)

// NewTokenCodec creates a codec from the given configuration.
func NewTokenCodec(cfg Config) *TokenCodec {
	ttl := cfg.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	var previous []byte
	if prev := cfg.GetPreviousSigningSecret(); prev != "" {
		previous = []byte(prev)
	}

	return &TokenCodec{
		secret:         []byte(cfg.GetSigningSecret()),
		previousSecret: previous,
		ttl:            ttl,
		issuer:         cfg.GetIssuer(),
		audience:       jwt.ClaimStrings(cfg.GetAudience()),
		logger:         defLogger{},
		now:            time.Now,
	}
}

func (c *TokenCodec) WithLogger(logger Logger) *TokenCodec {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithClock injects a custom clock (useful for tests).
func (c *TokenCodec) WithClock(clock func() time.Time) *TokenCodec {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Sign creates an access token for the given subject.
func (c *TokenCodec) Sign(subject TokenSubject, opts ...SignOption) (string, error) {
	options := signOptions{ttl: c.ttl, issuedAt: c.now()}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	var aud jwt.ClaimStrings
	if len(c.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(c.audience))
		copy(aud, c.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject.ID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(options.issuedAt),
			NotBefore: jwt.NewNumericDate(options.issuedAt),
			ExpiresAt: jwt.NewNumericDate(options.issuedAt.Add(options.ttl)),
		},
		UID:          subject.ID,
		UserEmail:    subject.Email,
		UserRole:     subject.Role,
		UserStatus:   subject.Status,
		TokenVersion: subject.TokenVersion,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return c.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the current signing secret.
// The previous secret is never used for signing.
func (c *TokenCodec) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(c.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and verifies a token string, returning structured claims.
// It tries the current secret first; on any failure it retries with the
// previous secret when one is configured, and fails closed otherwise. All
// failure modes surface as the same unauthorized error so the codec never
// acts as a verification oracle.
func (c *TokenCodec) Validate(tokenString string) (AuthClaims, error) {
	claims, err := c.verifyWithSecret(tokenString, c.secret)
	if err == nil {
		return claims, nil
	}

	if len(c.previousSecret) > 0 {
		if claims, prevErr := c.verifyWithSecret(tokenString, c.previousSecret); prevErr == nil {
			return claims, nil
		}
	}

	return nil, err
}

func (c *TokenCodec) verifyWithSecret(tokenString string, secret []byte) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}
	if len(c.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(c.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("TokenCodec validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrUnauthorized.Category, ErrUnauthorized.Message).
			WithTextCode(ErrUnauthorized.TextCode).
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		c.logger.Error("TokenCodec validate could not decode or validate claims")
		return nil, ErrUnauthorized
	}

	if err := claims.ValidateShape(); err != nil {
		return nil, err
	}

	return claims, nil
}
