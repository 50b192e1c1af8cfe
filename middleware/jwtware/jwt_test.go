package jwtware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleCheck(credential, required string) (any, error) {
	if credential != "Bearer "+required {
		return nil, errors.New("denied")
	}
	return "user:" + required, nil
}

func newServer() router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{DisableStartupMessage: true})
	})
}

func TestNewAdmitsMatchingRole(t *testing.T) {
	srv := newServer()
	srv.Router().Get("/admin", func(ctx router.Context) error {
		return ctx.SendString(ctx.Locals("identity").(string))
	}, New(Config{Authorize: roleCheck, RequiredRole: "ADMIN"}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(router.HeaderAuthorization, "Bearer ADMIN")
	resp, err := srv.WrappedRouter().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "user:ADMIN", string(body))
}

func TestNewStopsChainOnRejection(t *testing.T) {
	reached := false
	srv := newServer()
	srv.Router().Get("/admin", func(ctx router.Context) error {
		reached = true
		return nil
	}, New(Config{Authorize: roleCheck, RequiredRole: "ADMIN"}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(router.HeaderAuthorization, "Bearer EMPLOYEE")
	resp, err := srv.WrappedRouter().Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, reached)
}

func TestNewCustomLookupAndHandlers(t *testing.T) {
	var seenErr error
	reached := false
	srv := newServer()
	srv.Router().Get("/", func(ctx router.Context) error {
		reached = true
		return ctx.SendString("handler")
	}, New(Config{
		Authorize:    roleCheck,
		RequiredRole: "HR",
		TokenLookup:  "header:X-Api-Key",
		ContextKey:   "who",
		Filter: func(ctx router.Context) bool {
			return ctx.Query("skip") == "1"
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			seenErr = err
			return ctx.SendStatus(http.StatusTeapot)
		},
		SuccessHandler: func(ctx router.Context) error {
			return ctx.SendString("ok " + ctx.Locals("who").(string))
		},
	}))
	app := srv.WrappedRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Api-Key", "Bearer HR")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok user:HR", string(body))
	assert.False(t, reached)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(router.HeaderAuthorization, "Bearer HR")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.EqualError(t, seenErr, "denied")

	req = httptest.NewRequest(http.MethodGet, "/?skip=1", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "handler", string(body))
	assert.True(t, reached)
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig(Config{Authorize: roleCheck})
	assert.Equal(t, "header:Authorization", cfg.TokenLookup)
	assert.Equal(t, "identity", cfg.ContextKey)
	assert.NotNil(t, cfg.ErrorHandler)
	assert.Nil(t, cfg.SuccessHandler)

	assert.Panics(t, func() { GetDefaultConfig() })
	assert.Panics(t, func() { New(Config{Authorize: roleCheck, TokenLookup: "query:token"}) })
}

func TestHeaderName(t *testing.T) {
	name, err := headerName(" header: X-Token ")
	require.NoError(t, err)
	assert.Equal(t, "X-Token", name)

	for _, bad := range []string{"", "header", "header:", "cookie:jwt"} {
		_, err := headerName(bad)
		assert.ErrorIs(t, err, ErrUnsupportedLookup, bad)
	}
}
