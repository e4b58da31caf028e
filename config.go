package session

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Default configuration values applied by NewConfig.
const (
	DefaultTokenLookup = "header:Authorization,cookie:session_token"
	DefaultAuthScheme  = "Bearer"
	DefaultContextKey  = "session"
)

// BaseConfig is a concrete Config. Hosts that manage configuration elsewhere
// can implement the Config interface directly instead.
type BaseConfig struct {
	SigningSecret         string        `json:"signing_secret"`
	PreviousSigningSecret string        `json:"previous_signing_secret"`
	AccessTokenTTL        time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL       time.Duration `json:"refresh_token_ttl"`
	Issuer                string        `json:"issuer"`
	Audience              []string      `json:"audience"`
	TokenLookup           string        `json:"token_lookup"`
	AuthScheme            string        `json:"auth_scheme"`
	ContextKey            string        `json:"context_key"`
}

var _ Config = (*BaseConfig)(nil)

// NewConfig returns a BaseConfig with defaults for everything but the secret.
func NewConfig(signingSecret string) *BaseConfig {
	return &BaseConfig{
		SigningSecret:   signingSecret,
		AccessTokenTTL:  DefaultAccessTokenTTL,
		RefreshTokenTTL: DefaultRefreshTokenTTL,
		TokenLookup:     DefaultTokenLookup,
		AuthScheme:      DefaultAuthScheme,
		ContextKey:      DefaultContextKey,
	}
}

// Validate will validate the configuration
func (c BaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningSecret, validation.Required, validation.Length(10, 0)),
		validation.Field(&c.PreviousSigningSecret, validation.Length(10, 0)),
	)
}

func (c *BaseConfig) GetSigningSecret() string {
	return c.SigningSecret
}

func (c *BaseConfig) GetPreviousSigningSecret() string {
	return c.PreviousSigningSecret
}

func (c *BaseConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return DefaultAccessTokenTTL
	}
	return c.AccessTokenTTL
}

func (c *BaseConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return DefaultRefreshTokenTTL
	}
	return c.RefreshTokenTTL
}

func (c *BaseConfig) GetIssuer() string {
	return c.Issuer
}

func (c *BaseConfig) GetAudience() []string {
	return c.Audience
}

func (c *BaseConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return DefaultTokenLookup
	}
	return c.TokenLookup
}

func (c *BaseConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return c.AuthScheme
}

func (c *BaseConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return DefaultContextKey
	}
	return c.ContextKey
}
