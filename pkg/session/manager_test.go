package session

import (
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/browserd/pkg/session/sessiontest"
)

func newTestManager(env sessiontest.Env) (*Manager, *sessiontest.Engine) {
	engine := sessiontest.NewEngine()
	if env == nil {
		env = sessiontest.Env{}
	}
	return NewManager(engine, env, Options{}), engine
}

func TestEnsureReadyCreatesTriple(t *testing.T) {
	m, engine := newTestManager(nil)

	require.NoError(t, m.EnsureReady())
	require.NotNil(t, m.Browser())
	require.NotNil(t, m.Context())
	require.NotNil(t, m.Page())
	assert.Equal(t, 1, engine.Launches())
	assert.Len(t, engine.Types["chromium"].Launched, 1)
}

func TestEnsureReadyIsIdempotent(t *testing.T) {
	m, engine := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	browser, ctx, page := m.Browser(), m.Context(), m.Page()
	require.NoError(t, m.EnsureReady())

	assert.Same(t, browser, m.Browser())
	assert.Same(t, ctx, m.Context())
	assert.Same(t, page, m.Page())
	assert.Equal(t, 1, engine.Launches())
}

func TestEnsureReadyReplacesClosedPage(t *testing.T) {
	m, _ := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	ctx := m.Context()
	old := m.Page().(*sessiontest.Page)
	old.Closed = true

	require.NoError(t, m.EnsureReady())
	assert.NotSame(t, old, m.Page())
	assert.Same(t, ctx, m.Context())
}

func TestEnsureReadyReplacesClosedContext(t *testing.T) {
	m, engine := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	browser := m.Browser()
	oldCtx := m.Context().(*sessiontest.Context)
	oldPage := m.Page()
	oldCtx.EmitClose()

	require.NoError(t, m.EnsureReady())
	assert.Same(t, browser, m.Browser())
	assert.NotSame(t, oldCtx, m.Context())
	assert.NotSame(t, oldPage, m.Page())
	assert.Equal(t, 1, engine.Launches())
}

func TestEnsureReadyRelaunchesDisconnectedBrowser(t *testing.T) {
	m, engine := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	old := m.Browser().(*sessiontest.Browser)
	oldCtx := m.Context()
	old.Connected = false

	require.NoError(t, m.EnsureReady())
	assert.NotSame(t, old, m.Browser())
	assert.NotSame(t, oldCtx, m.Context())
	assert.Equal(t, 2, engine.Launches())
}

func TestEnsureReadyLaunchSettings(t *testing.T) {
	m, engine := newTestManager(sessiontest.Env{
		BrowserTypeEnv: " Firefox ",
		HeadlessEnv:    "true",
	})

	require.NoError(t, m.EnsureReady())
	ff := engine.Types["firefox"]
	require.Len(t, ff.Options, 1)
	require.NotNil(t, ff.Options[0].Headless)
	assert.True(t, *ff.Options[0].Headless)
	assert.Empty(t, engine.Types["chromium"].Launched)
}

func TestEnsureReadyDefaults(t *testing.T) {
	engine := sessiontest.NewEngine()
	m := NewManager(engine, sessiontest.Env{HeadlessEnv: "not-a-bool"}, Options{BrowserType: "WebKit", Headless: true})

	require.NoError(t, m.EnsureReady())
	wk := engine.Types["webkit"]
	require.Len(t, wk.Options, 1)
	assert.True(t, *wk.Options[0].Headless)
}

func TestEnsureReadyErrors(t *testing.T) {
	t.Run("engine unavailable", func(t *testing.T) {
		m, engine := newTestManager(nil)
		engine.Err = errors.New("driver missing")

		err := m.EnsureReady()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "driver missing")
		assert.Nil(t, m.Browser())
	})

	t.Run("unknown browser type", func(t *testing.T) {
		m, _ := newTestManager(sessiontest.Env{BrowserTypeEnv: "opera"})
		assert.Error(t, m.EnsureReady())
	})

	t.Run("launch failure", func(t *testing.T) {
		m, engine := newTestManager(nil)
		engine.Types["chromium"].LaunchErr = errors.New("no display")

		err := m.EnsureReady()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no display")
	})
}

func TestEnsureReadyContextHeaders(t *testing.T) {
	m, _ := newTestManager(sessiontest.Env{
		HeaderNameEnv:  "X-Trace",
		HeaderValueEnv: "abc",
	})
	require.NoError(t, m.EnsureReady())

	ctx := m.Context().(*sessiontest.Context)
	assert.Equal(t, map[string]string{"X-Trace": "abc"}, ctx.Options.ExtraHttpHeaders)
}

func TestContextOptionsCallerWins(t *testing.T) {
	m, _ := newTestManager(sessiontest.Env{
		ExtraHeadersEnv: `{"X-A":"env","X-B":"env"}`,
	})

	opts := m.ContextOptions(playwright.BrowserNewContextOptions{
		ExtraHttpHeaders: map[string]string{"X-B": "caller"},
	})
	assert.Equal(t, map[string]string{"X-A": "env", "X-B": "caller"}, opts.ExtraHttpHeaders)
}

func TestAdopt(t *testing.T) {
	m, _ := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	browser := sessiontest.NewBrowser()
	raw, err := browser.NewContext()
	require.NoError(t, err)
	ctx := raw.(*sessiontest.Context)
	page, err := ctx.NewPage()
	require.NoError(t, err)

	m.Adopt(browser, ctx, page)
	assert.Same(t, browser, m.Browser())
	assert.Same(t, ctx, m.Context())
	assert.Same(t, page, m.Page())

	// The adopted context is tracked: closing it forces a new one.
	ctx.EmitClose()
	require.NoError(t, m.EnsureReady())
	assert.NotSame(t, ctx, m.Context())
	assert.Same(t, browser, m.Browser())
}

func TestAdoptNil(t *testing.T) {
	m, engine := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	browser := m.Browser()
	m.Adopt(browser, m.Context(), nil)
	assert.Nil(t, m.Page())
	assert.False(t, m.PageURL().Valid)

	require.NoError(t, m.EnsureReady())
	assert.NotNil(t, m.Page())
	assert.Equal(t, 1, engine.Launches())
}

func TestPageURL(t *testing.T) {
	m, _ := newTestManager(nil)
	assert.False(t, m.PageURL().Valid)

	require.NoError(t, m.EnsureReady())
	page := m.Page().(*sessiontest.Page)
	page.Address = "https://example.com/"

	url := m.PageURL()
	assert.True(t, url.Valid)
	assert.Equal(t, "https://example.com/", url.String)

	page.Closed = true
	url = m.PageURL()
	assert.True(t, url.Valid)
	assert.Equal(t, "https://example.com/", url.String)
}

func TestClose(t *testing.T) {
	m, engine := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	browser := m.Browser().(*sessiontest.Browser)
	ctx := m.Context().(*sessiontest.Context)
	page := m.Page().(*sessiontest.Page)

	m.Close()
	assert.Equal(t, 1, page.Closes)
	assert.Equal(t, 1, ctx.Closes)
	assert.Equal(t, 1, browser.Closes)
	assert.Equal(t, 1, engine.Stops)
	assert.Equal(t, []string{"page", "context", "browser"}, browser.CloseOrder)
	assert.Nil(t, m.Browser())
	assert.Nil(t, m.Context())
	assert.Nil(t, m.Page())
}

func TestCloseContinuesPastFailures(t *testing.T) {
	m, engine := newTestManager(nil)
	require.NoError(t, m.EnsureReady())

	browser := m.Browser().(*sessiontest.Browser)
	ctx := m.Context().(*sessiontest.Context)
	page := m.Page().(*sessiontest.Page)
	page.CloseErr = errors.New("page gone")
	ctx.CloseErr = errors.New("context gone")
	browser.ClosePanic = true
	engine.StopErr = errors.New("driver gone")

	assert.NotPanics(t, m.Close)
	assert.Equal(t, 1, ctx.Closes)
	assert.Equal(t, 1, engine.Stops)
	assert.Nil(t, m.Browser())
}

func TestCloseEmptySession(t *testing.T) {
	m, engine := newTestManager(nil)
	assert.NotPanics(t, m.Close)
	assert.Equal(t, 1, engine.Stops)
}
