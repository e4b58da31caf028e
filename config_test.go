package session_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := session.NewConfig("a-long-enough-secret")

	assert.Equal(t, "a-long-enough-secret", cfg.GetSigningSecret())
	assert.Equal(t, "", cfg.GetPreviousSigningSecret())
	assert.Equal(t, session.DefaultAccessTokenTTL, cfg.GetAccessTokenTTL())
	assert.Equal(t, session.DefaultRefreshTokenTTL, cfg.GetRefreshTokenTTL())
	assert.Equal(t, session.DefaultTokenLookup, cfg.GetTokenLookup())
	assert.Equal(t, session.DefaultAuthScheme, cfg.GetAuthScheme())
	assert.Equal(t, session.DefaultContextKey, cfg.GetContextKey())
}

func TestBaseConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := session.NewConfig("a-long-enough-secret")
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing secret", func(t *testing.T) {
		cfg := session.NewConfig("")
		assert.Error(t, cfg.Validate())
	})

	t.Run("short secret", func(t *testing.T) {
		cfg := session.NewConfig("short")
		assert.Error(t, cfg.Validate())
	})

	t.Run("short previous secret", func(t *testing.T) {
		cfg := session.NewConfig("a-long-enough-secret")
		cfg.PreviousSigningSecret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty previous secret is fine", func(t *testing.T) {
		cfg := session.NewConfig("a-long-enough-secret")
		cfg.PreviousSigningSecret = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestBaseConfigGetterFallbacks(t *testing.T) {
	cfg := &session.BaseConfig{SigningSecret: "a-long-enough-secret"}

	assert.Equal(t, session.DefaultAccessTokenTTL, cfg.GetAccessTokenTTL())
	assert.Equal(t, session.DefaultRefreshTokenTTL, cfg.GetRefreshTokenTTL())
	assert.Equal(t, session.DefaultTokenLookup, cfg.GetTokenLookup())
	assert.Equal(t, session.DefaultAuthScheme, cfg.GetAuthScheme())
	assert.Equal(t, session.DefaultContextKey, cfg.GetContextKey())

	cfg.AccessTokenTTL = time.Hour
	assert.Equal(t, time.Hour, cfg.GetAccessTokenTTL())
}
