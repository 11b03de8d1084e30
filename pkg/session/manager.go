// Package session holds the single browser, context and page triple that
// persists across exec requests.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/playwright-community/playwright-go"
	"gopkg.in/guregu/null.v3"

	"github.com/entrhq/browserd/pkg/logging"
)

// Environment variables read at browser launch time.
const (
	BrowserTypeEnv = "PW_BROWSER_TYPE"
	HeadlessEnv    = "PW_HEADLESS"
)

// Engine supplies browser launchers and owns the driver process.
type Engine interface {
	BrowserType(name string) (playwright.BrowserType, error)
	Stop() error
}

// Env is a read-only view of the process environment.
type Env interface {
	Lookup(key string) (string, bool)
}

// Options are launch defaults used when the environment does not override them.
type Options struct {
	BrowserType string
	Headless    bool
}

// trackedContext remembers whether a context has emitted its close event.
type trackedContext struct {
	context playwright.BrowserContext
	closed  atomic.Bool
}

// Manager owns the session triple. Its methods are called from the single
// request worker and are not safe for concurrent use.
type Manager struct {
	engine Engine
	env    Env
	opts   Options

	browser playwright.Browser
	context *trackedContext
	page    playwright.Page

	logger *logging.Logger
}

// NewManager creates an empty session.
func NewManager(engine Engine, env Env, opts Options) *Manager {
	return &Manager{
		engine: engine,
		env:    env,
		opts:   opts,
		logger: logging.NewLogger("session"),
	}
}

// Browser returns the current browser or nil.
func (m *Manager) Browser() playwright.Browser { return m.browser }

// Context returns the current context or nil.
func (m *Manager) Context() playwright.BrowserContext {
	if m.context == nil {
		return nil
	}
	return m.context.context
}

// Page returns the current page or nil.
func (m *Manager) Page() playwright.Page { return m.page }

// EnsureReady brings the triple to a usable state, replacing any handle that
// is missing or no longer usable. It is a no-op when everything is live.
func (m *Manager) EnsureReady() error {
	if m.browser == nil || !m.browser.IsConnected() {
		if m.browser != nil {
			m.logger.Infof("browser disconnected, relaunching")
		}
		browser, err := m.Launch(nil)
		if err != nil {
			return err
		}
		m.browser = browser
		m.context = nil
		m.page = nil
	}

	if m.context == nil || m.context.closed.Load() {
		ctx, err := m.browser.NewContext(m.ContextOptions(playwright.BrowserNewContextOptions{}))
		if err != nil {
			return fmt.Errorf("failed to create context: %w", err)
		}
		m.context = m.track(ctx)
		m.page = nil
	}

	if m.page == nil || m.page.IsClosed() {
		page, err := m.context.context.NewPage()
		if err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
		m.page = page
	}

	return nil
}

// Launch starts a new browser of the type named by the launch-time
// environment. The returned browser is not adopted into the session.
func (m *Manager) Launch(opts *playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	return m.LaunchType(m.BrowserTypeName(), opts)
}

// LaunchType starts a new browser of the named type. Headless mode defaults
// to PW_HEADLESS when opts leaves it unset.
func (m *Manager) LaunchType(name string, opts *playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	bt, err := m.engine.BrowserType(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load browser engine: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{}
	if opts != nil {
		launch = *opts
	}
	if launch.Headless == nil {
		launch.Headless = playwright.Bool(m.headless())
	}

	m.logger.Debugf("launching %s (headless=%v)", name, *launch.Headless)
	browser, err := bt.Launch(launch)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", name, err)
	}
	return browser, nil
}

// BrowserTypeName returns the engine to launch, read from PW_BROWSER_TYPE.
func (m *Manager) BrowserTypeName() string {
	if v, ok := m.env.Lookup(BrowserTypeEnv); ok && strings.TrimSpace(v) != "" {
		return strings.ToLower(strings.TrimSpace(v))
	}
	if m.opts.BrowserType != "" {
		return strings.ToLower(m.opts.BrowserType)
	}
	return "chromium"
}

func (m *Manager) headless() bool {
	if v, ok := m.env.Lookup(HeadlessEnv); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return m.opts.Headless
}

// ContextOptions merges the environment's extra headers into opts. Headers
// already present in opts win.
func (m *Manager) ContextOptions(opts playwright.BrowserNewContextOptions) playwright.BrowserNewContextOptions {
	extra := ExtraHeadersFromEnv(m.env)
	if extra == nil {
		return opts
	}
	opts.ExtraHttpHeaders = MergeHeaders(extra, opts.ExtraHttpHeaders)
	return opts
}

// ExtraHeaders returns the headers derived from the environment, or nil.
func (m *Manager) ExtraHeaders() map[string]string {
	return ExtraHeadersFromEnv(m.env)
}

func (m *Manager) track(ctx playwright.BrowserContext) *trackedContext {
	tc := &trackedContext{context: ctx}
	ctx.OnClose(func(playwright.BrowserContext) {
		tc.closed.Store(true)
	})
	return tc
}

// Adopt replaces the triple with handles left behind by a script. Nil
// values clear the corresponding slot.
func (m *Manager) Adopt(browser playwright.Browser, ctx playwright.BrowserContext, page playwright.Page) {
	m.browser = browser

	switch {
	case ctx == nil:
		m.context = nil
	case m.context == nil || m.context.context != ctx:
		m.context = m.track(ctx)
	}

	m.page = page
}

// PageURL returns the address of the current page, or null when the session
// holds no page. A page closed by the script still reports its last address.
func (m *Manager) PageURL() null.String {
	if m.page == nil {
		return null.String{}
	}
	return null.StringFrom(m.page.URL())
}

// Close tears the session down page first, then context, browser and the
// driver. Each step is attempted even if an earlier one fails.
func (m *Manager) Close() {
	if m.page != nil {
		page := m.page
		m.closeQuietly("page", func() error { return page.Close() })
	}
	if m.context != nil {
		ctx := m.context.context
		m.closeQuietly("context", func() error { return ctx.Close() })
	}
	if m.browser != nil {
		browser := m.browser
		m.closeQuietly("browser", func() error { return browser.Close() })
	}
	if m.engine != nil {
		m.closeQuietly("driver", m.engine.Stop)
	}

	m.page = nil
	m.context = nil
	m.browser = nil
}

func (m *Manager) closeQuietly(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warnf("panic closing %s: %v", what, r)
		}
	}()
	if err := fn(); err != nil {
		m.logger.Warnf("failed to close %s: %v", what, err)
	}
}
