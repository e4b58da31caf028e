package gateware

import (
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
)

// JWKSValidator validates tokens signed by an external issuer whose keys are
// published as a JWK Set. Hosts compose it with the local codec through
// session.NewMultiTokenValidator to accept both token populations.
type JWKSValidator struct {
	keyfunc jwt.Keyfunc
	issuer  string
}

var _ session.TokenValidator = (*JWKSValidator)(nil)

// NewJWKSValidator fetches and caches the JWK Sets at the given URLs,
// refreshing them in the background.
func NewJWKSValidator(jwkSetURLs []string, issuer string) (*JWKSValidator, error) {
	if len(jwkSetURLs) == 0 {
		return nil, goerrors.New("at least one JWK Set URL is required", goerrors.CategoryBadInput)
	}

	opts := keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	m := make(map[string]keyfunc.Options, len(jwkSetURLs))
	for _, url := range jwkSetURLs {
		m[url] = opts
	}

	multi, err := keyfunc.GetMultiple(m, keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to get JWK Set URLs")
	}

	return &JWKSValidator{
		keyfunc: multi.Keyfunc,
		issuer:  issuer,
	}, nil
}

// Validate parses and verifies a token against the cached JWK Sets. The
// claims shape requirements are the same as for locally signed tokens.
func (v *JWKSValidator) Validate(tokenString string) (session.AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 1)
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &session.JWTClaims{}, v.keyfunc, parserOptions...)
	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, session.ErrTokenExpired
		}
		return nil, session.AsUnauthorized(err)
	}

	claims, ok := token.Claims.(*session.JWTClaims)
	if !ok || !token.Valid {
		return nil, session.ErrUnauthorized
	}

	if err := claims.ValidateShape(); err != nil {
		return nil, err
	}

	return claims, nil
}
