// Package sessiontest provides in-memory stand-ins for Playwright handles.
// Each fake embeds the Playwright interface it replaces and implements only
// the methods browserd calls; anything else panics on a nil embedded value.
package sessiontest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Env is a map-backed environment.
type Env map[string]string

// Lookup implements session.Env.
func (e Env) Lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// Engine hands out fake browser types.
type Engine struct {
	mu          sync.Mutex
	Types       map[string]*BrowserType
	Descriptors map[string]*playwright.DeviceDescriptor
	Err         error
	StopErr     error
	Stops       int
}

// NewEngine returns an engine with chromium, firefox and webkit types.
func NewEngine() *Engine {
	return &Engine{
		Types: map[string]*BrowserType{
			"chromium": {TypeName: "chromium"},
			"firefox":  {TypeName: "firefox"},
			"webkit":   {TypeName: "webkit"},
		},
		Descriptors: map[string]*playwright.DeviceDescriptor{
			"Pixel 5": {
				UserAgent:          "Mozilla/5.0 (Linux; Android 11; Pixel 5)",
				Viewport:           &playwright.Size{Width: 393, Height: 851},
				DeviceScaleFactor:  2.75,
				IsMobile:           true,
				HasTouch:           true,
				DefaultBrowserType: "chromium",
			},
		},
	}
}

// BrowserType implements session.Engine.
func (e *Engine) BrowserType(name string) (playwright.BrowserType, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if name == "" {
		name = "chromium"
	}
	bt, ok := e.Types[name]
	if !ok {
		return nil, fmt.Errorf("unknown browser type %q", name)
	}
	return bt, nil
}

// BrowserTypes returns all fake browser types.
func (e *Engine) BrowserTypes() (map[string]playwright.BrowserType, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	out := make(map[string]playwright.BrowserType, len(e.Types))
	for k, v := range e.Types {
		out[k] = v
	}
	return out, nil
}

// Devices returns the configured device descriptors.
func (e *Engine) Devices() map[string]*playwright.DeviceDescriptor {
	return e.Descriptors
}

// Stop implements session.Engine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Stops++
	return e.StopErr
}

// Launches counts launches across all browser types.
func (e *Engine) Launches() int {
	n := 0
	for _, bt := range e.Types {
		n += len(bt.Launched)
	}
	return n
}

// BrowserType launches fake browsers.
type BrowserType struct {
	playwright.BrowserType
	TypeName  string
	LaunchErr error
	Launched  []*Browser
	Options   []playwright.BrowserTypeLaunchOptions
}

// Name implements playwright.BrowserType.
func (b *BrowserType) Name() string { return b.TypeName }

// Launch implements playwright.BrowserType.
func (b *BrowserType) Launch(options ...playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	if b.LaunchErr != nil {
		return nil, b.LaunchErr
	}
	var opts playwright.BrowserTypeLaunchOptions
	if len(options) > 0 {
		opts = options[0]
	}
	b.Options = append(b.Options, opts)
	browser := NewBrowser()
	browser.Type = b
	b.Launched = append(b.Launched, browser)
	return browser, nil
}

// Browser is a fake browser.
type Browser struct {
	playwright.Browser
	Type       *BrowserType
	Connected  bool
	CloseErr   error
	ClosePanic bool
	Closes     int
	Opened     []*Context
	ContextErr error

	// CloseOrder records explicit Close calls on this browser and the
	// contexts and pages it owns.
	CloseOrder []string
}

// NewBrowser returns a connected fake browser.
func NewBrowser() *Browser {
	return &Browser{Connected: true}
}

// IsConnected implements playwright.Browser.
func (b *Browser) IsConnected() bool { return b.Connected }

// Version implements playwright.Browser.
func (b *Browser) Version() string { return "1.0.0-fake" }

// Contexts implements playwright.Browser.
func (b *Browser) Contexts() []playwright.BrowserContext {
	out := make([]playwright.BrowserContext, 0, len(b.Opened))
	for _, c := range b.Opened {
		out = append(out, c)
	}
	return out
}

// NewContext implements playwright.Browser.
func (b *Browser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	if b.ContextErr != nil {
		return nil, b.ContextErr
	}
	ctx := NewContext()
	ctx.Owner = b
	if len(options) > 0 {
		ctx.Options = options[0]
	}
	b.Opened = append(b.Opened, ctx)
	return ctx, nil
}

// NewPage implements playwright.Browser.
func (b *Browser) NewPage(options ...playwright.BrowserNewPageOptions) (playwright.Page, error) {
	ctx, err := b.NewContext()
	if err != nil {
		return nil, err
	}
	return ctx.NewPage()
}

// Close implements playwright.Browser.
func (b *Browser) Close(options ...playwright.BrowserCloseOptions) error {
	if b.ClosePanic {
		panic("browser close exploded")
	}
	b.Closes++
	b.Connected = false
	b.CloseOrder = append(b.CloseOrder, "browser")
	for _, c := range b.Opened {
		c.EmitClose()
	}
	return b.CloseErr
}

// Context is a fake browser context.
type Context struct {
	playwright.BrowserContext
	Owner    *Browser
	Options  playwright.BrowserNewContextOptions
	Opened   []*Page
	PageErr  error
	CloseErr error
	Closes   int
	Headers  map[string]string

	closed   bool
	handlers []func(playwright.BrowserContext)
}

// NewContext returns an open fake context.
func NewContext() *Context {
	return &Context{}
}

// Browser implements playwright.BrowserContext.
func (c *Context) Browser() playwright.Browser {
	if c.Owner == nil {
		return nil
	}
	return c.Owner
}

// OnClose implements playwright.BrowserContext.
func (c *Context) OnClose(fn func(playwright.BrowserContext)) {
	c.handlers = append(c.handlers, fn)
}

// NewPage implements playwright.BrowserContext.
func (c *Context) NewPage() (playwright.Page, error) {
	if c.PageErr != nil {
		return nil, c.PageErr
	}
	p := NewPage()
	p.Owner = c
	c.Opened = append(c.Opened, p)
	return p, nil
}

// Pages implements playwright.BrowserContext.
func (c *Context) Pages() []playwright.Page {
	out := make([]playwright.Page, 0, len(c.Opened))
	for _, p := range c.Opened {
		if !p.Closed {
			out = append(out, p)
		}
	}
	return out
}

// SetExtraHTTPHeaders implements playwright.BrowserContext.
func (c *Context) SetExtraHTTPHeaders(headers map[string]string) error {
	c.Headers = headers
	return nil
}

// Close implements playwright.BrowserContext and fires close handlers once.
func (c *Context) Close(options ...playwright.BrowserContextCloseOptions) error {
	c.Closes++
	if c.Owner != nil {
		c.Owner.CloseOrder = append(c.Owner.CloseOrder, "context")
	}
	c.EmitClose()
	return c.CloseErr
}

// EmitClose simulates the context closing without an explicit Close call.
func (c *Context) EmitClose() {
	if c.closed {
		return
	}
	c.closed = true
	for _, p := range c.Opened {
		p.Closed = true
	}
	for _, fn := range c.handlers {
		fn(c)
	}
}

// Page is a fake page. Navigation only records the URL.
type Page struct {
	playwright.Page
	Owner      *Context
	Address    string
	PageTitle  string
	HTML       string
	Closed     bool
	CloseErr   error
	Closes     int
	GotoErr    error
	Clicks     []string
	Fills      map[string]string
	Texts      map[string][]string
	Shots      []playwright.PageScreenshotOptions
	Evaluated  []string
	LoadStates []string
	Waited     []float64
	Keys       *Keyboard
	Pointer    *Mouse
}

// NewPage returns an open fake page at about:blank.
func NewPage() *Page {
	return &Page{
		Address: "about:blank",
		Fills:   map[string]string{},
		Texts:   map[string][]string{},
		Keys:    &Keyboard{},
		Pointer: &Mouse{},
	}
}

// URL implements playwright.Page.
func (p *Page) URL() string { return p.Address }

// IsClosed implements playwright.Page.
func (p *Page) IsClosed() bool { return p.Closed }

// Context implements playwright.Page.
func (p *Page) Context() playwright.BrowserContext {
	if p.Owner == nil {
		return nil
	}
	return p.Owner
}

// Close implements playwright.Page.
func (p *Page) Close(options ...playwright.PageCloseOptions) error {
	p.Closes++
	p.Closed = true
	if p.Owner != nil && p.Owner.Owner != nil {
		p.Owner.Owner.CloseOrder = append(p.Owner.Owner.CloseOrder, "page")
	}
	return p.CloseErr
}

// Goto implements playwright.Page.
func (p *Page) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	if p.GotoErr != nil {
		return nil, p.GotoErr
	}
	p.Address = url
	return &Response{Address: url, Code: 200}, nil
}

// Title implements playwright.Page.
func (p *Page) Title() (string, error) { return p.PageTitle, nil }

// Content implements playwright.Page.
func (p *Page) Content() (string, error) { return p.HTML, nil }

// Keyboard implements playwright.Page.
func (p *Page) Keyboard() playwright.Keyboard { return p.Keys }

// Mouse implements playwright.Page.
func (p *Page) Mouse() playwright.Mouse { return p.Pointer }

// WaitForSelector implements playwright.Page. Selectors starting with
// "#missing" time out; "#gone" resolves to no element.
func (p *Page) WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	switch {
	case strings.HasPrefix(selector, "#missing"):
		return nil, errors.New("timeout waiting for " + selector)
	case strings.HasPrefix(selector, "#gone"):
		return nil, nil
	}
	return &ElementHandle{Owner: p, Selector: selector}, nil
}

// Locator implements playwright.Page.
func (p *Page) Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator {
	return &Locator{Owner: p, Selector: selector}
}

// WaitForLoadState implements playwright.Page.
func (p *Page) WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error {
	state := "load"
	if len(options) > 0 && options[0].State != nil {
		state = string(*options[0].State)
	}
	p.LoadStates = append(p.LoadStates, state)
	return nil
}

// WaitForTimeout implements playwright.Page.
func (p *Page) WaitForTimeout(timeout float64) {
	p.Waited = append(p.Waited, timeout)
}

// Screenshot implements playwright.Page.
func (p *Page) Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error) {
	var opts playwright.PageScreenshotOptions
	if len(options) > 0 {
		opts = options[0]
	}
	p.Shots = append(p.Shots, opts)
	return []byte("\x89PNG"), nil
}

// Evaluate implements playwright.Page.
func (p *Page) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.Evaluated = append(p.Evaluated, expression)
	return nil, nil
}

// pwLocator lets Locator embed the interface without a field named Locator,
// which would collide with the Locator method.
type pwLocator = playwright.Locator

// Locator is a fake locator bound to a page and selector.
type Locator struct {
	pwLocator
	Owner    *Page
	Selector string
}

// Click implements playwright.Locator.
func (l *Locator) Click(options ...playwright.LocatorClickOptions) error {
	if strings.HasPrefix(l.Selector, "#missing") {
		return errors.New("timeout waiting for " + l.Selector)
	}
	l.Owner.Clicks = append(l.Owner.Clicks, l.Selector)
	return nil
}

// Fill implements playwright.Locator.
func (l *Locator) Fill(value string, options ...playwright.LocatorFillOptions) error {
	l.Owner.Fills[l.Selector] = value
	return nil
}

// PressSequentially implements playwright.Locator.
func (l *Locator) PressSequentially(text string, options ...playwright.LocatorPressSequentiallyOptions) error {
	l.Owner.Fills[l.Selector] += text
	return nil
}

// WaitFor implements playwright.Locator.
func (l *Locator) WaitFor(options ...playwright.LocatorWaitForOptions) error {
	if strings.HasPrefix(l.Selector, "#missing") {
		return errors.New("timeout waiting for " + l.Selector)
	}
	return nil
}

// TextContent implements playwright.Locator.
func (l *Locator) TextContent(options ...playwright.LocatorTextContentOptions) (string, error) {
	texts := l.Owner.Texts[l.Selector]
	if len(texts) == 0 {
		return "", nil
	}
	return texts[0], nil
}

// InnerText implements playwright.Locator.
func (l *Locator) InnerText(options ...playwright.LocatorInnerTextOptions) (string, error) {
	return l.TextContent()
}

// AllTextContents implements playwright.Locator.
func (l *Locator) AllTextContents() ([]string, error) {
	return append([]string{}, l.Owner.Texts[l.Selector]...), nil
}

// Count implements playwright.Locator.
func (l *Locator) Count() (int, error) {
	return len(l.Owner.Texts[l.Selector]), nil
}

// First implements playwright.Locator.
func (l *Locator) First() playwright.Locator { return l }

// Keyboard records key presses and typed text.
type Keyboard struct {
	playwright.Keyboard
	Pressed []string
	Typed   []string
}

// Press implements playwright.Keyboard.
func (k *Keyboard) Press(key string, options ...playwright.KeyboardPressOptions) error {
	k.Pressed = append(k.Pressed, key)
	return nil
}

// Type implements playwright.Keyboard.
func (k *Keyboard) Type(text string, options ...playwright.KeyboardTypeOptions) error {
	k.Typed = append(k.Typed, text)
	return nil
}

// Mouse records clicks as "x,y" pairs.
type Mouse struct {
	playwright.Mouse
	Clicks []string
}

// Click implements playwright.Mouse.
func (m *Mouse) Click(x, y float64, options ...playwright.MouseClickOptions) error {
	m.Clicks = append(m.Clicks, fmt.Sprintf("%g,%g", x, y))
	return nil
}

// ElementHandle is a fake element found by Page.WaitForSelector.
type ElementHandle struct {
	playwright.ElementHandle
	Owner    *Page
	Selector string
}

// Click implements playwright.ElementHandle.
func (e *ElementHandle) Click(options ...playwright.ElementHandleClickOptions) error {
	e.Owner.Clicks = append(e.Owner.Clicks, e.Selector)
	return nil
}

// TextContent implements playwright.ElementHandle.
func (e *ElementHandle) TextContent() (string, error) {
	texts := e.Owner.Texts[e.Selector]
	if len(texts) == 0 {
		return "", nil
	}
	return texts[0], nil
}

// Response is a fake navigation response.
type Response struct {
	playwright.Response
	Address string
	Code    int
}

// URL implements playwright.Response.
func (r *Response) URL() string { return r.Address }

// Status implements playwright.Response.
func (r *Response) Status() int { return r.Code }

// Ok implements playwright.Response.
func (r *Response) Ok() bool { return r.Code >= 200 && r.Code < 300 }
