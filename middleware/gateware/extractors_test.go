package gateware_test

import (
	"testing"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-session"
	"github.com/goliatone/go-session/middleware/gateware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExtractors(t *testing.T) {
	t.Run("parses every source kind", func(t *testing.T) {
		extractors := gateware.GetExtractors("header:Authorization,query:token,param:jwt,cookie:session_token")
		assert.Len(t, extractors, 4)
	})

	t.Run("default lookup yields header and cookie", func(t *testing.T) {
		extractors := gateware.GetExtractors(session.DefaultTokenLookup)
		assert.Len(t, extractors, 2)
	})

	t.Run("malformed segments are skipped", func(t *testing.T) {
		extractors := gateware.GetExtractors("header:Authorization,garbage,query:token")
		assert.Len(t, extractors, 2)
	})

	t.Run("unknown source kinds are skipped", func(t *testing.T) {
		extractors := gateware.GetExtractors("body:token,header:Authorization")
		assert.Len(t, extractors, 1)
	})

	t.Run("whitespace is tolerated", func(t *testing.T) {
		extractors := gateware.GetExtractors(" header : Authorization , cookie : session_token ")
		assert.Len(t, extractors, 2)
	})
}

func TestTokenFromHeader(t *testing.T) {
	extractors := gateware.GetExtractors("header:Authorization", "Bearer")
	require.Len(t, extractors, 1)

	t.Run("strips the scheme", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer abc123")

		raw, err := extractors[0](ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc123", raw)
	})

	t.Run("scheme match is case insensitive", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("bearer abc123")

		raw, err := extractors[0](ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc123", raw)
	})

	t.Run("missing header", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")

		_, err := extractors[0](ctx)
		assert.ErrorIs(t, err, session.ErrNoToken)
	})

	t.Run("scheme without a token", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer")

		_, err := extractors[0](ctx)
		assert.ErrorIs(t, err, session.ErrNoToken)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Basic abc123")

		_, err := extractors[0](ctx)
		assert.ErrorIs(t, err, session.ErrNoToken)
	})
}

func TestTokenFromOtherSources(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		extractors := gateware.GetExtractors("query:auth_token")
		require.Len(t, extractors, 1)

		ctx := router.NewMockContext()
		ctx.QueriesM["auth_token"] = "qtok"

		raw, err := extractors[0](ctx)
		require.NoError(t, err)
		assert.Equal(t, "qtok", raw)

		_, err = extractors[0](router.NewMockContext())
		assert.ErrorIs(t, err, session.ErrNoToken)
	})

	t.Run("param", func(t *testing.T) {
		extractors := gateware.GetExtractors("param:token")
		require.Len(t, extractors, 1)

		ctx := router.NewMockContext()
		ctx.ParamsM["token"] = "ptok"

		raw, err := extractors[0](ctx)
		require.NoError(t, err)
		assert.Equal(t, "ptok", raw)
	})

	t.Run("cookie", func(t *testing.T) {
		extractors := gateware.GetExtractors("cookie:session_token")
		require.Len(t, extractors, 1)

		ctx := router.NewMockContext()
		ctx.CookiesM["session_token"] = "ctok"

		raw, err := extractors[0](ctx)
		require.NoError(t, err)
		assert.Equal(t, "ctok", raw)
	})
}

func TestExtractRawTokenFromContext(t *testing.T) {
	t.Run("first non-empty source wins", func(t *testing.T) {
		extractors := gateware.GetExtractors("header:Authorization,cookie:session_token")

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")
		ctx.CookiesM["session_token"] = "from-cookie"

		raw, err := gateware.ExtractRawTokenFromContext(ctx, extractors)
		require.NoError(t, err)
		assert.Equal(t, "from-cookie", raw)
	})

	t.Run("header takes precedence over cookie", func(t *testing.T) {
		extractors := gateware.GetExtractors("header:Authorization,cookie:session_token")

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer from-header")
		ctx.CookiesM["session_token"] = "from-cookie"

		raw, err := gateware.ExtractRawTokenFromContext(ctx, extractors)
		require.NoError(t, err)
		assert.Equal(t, "from-header", raw)
	})

	t.Run("empty extractor chain reports a missing token", func(t *testing.T) {
		_, err := gateware.ExtractRawTokenFromContext(router.NewMockContext(), nil)
		assert.ErrorIs(t, err, session.ErrNoToken)

		_, err = gateware.ExtractRawTokenFromContext(router.NewMockContext(), gateware.GetExtractors("garbage"))
		assert.ErrorIs(t, err, session.ErrNoToken)
	})

	t.Run("nothing found", func(t *testing.T) {
		extractors := gateware.GetExtractors(session.DefaultTokenLookup)

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")

		_, err := gateware.ExtractRawTokenFromContext(ctx, extractors)
		assert.ErrorIs(t, err, session.ErrNoToken)
	})
}
