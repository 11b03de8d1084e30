package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/playwright-community/playwright-go"
)

// Helper defaults.
const (
	DefaultClickRetries  = 3
	DefaultClickDelay    = 500
	DefaultScrollStep    = 500
	DefaultScreenshotDir = "screenshots"
)

var errNoPage = errors.New("no page available")

type readyOptions struct {
	State   string   `json:"state"`
	Timeout *float64 `json:"timeout"`
}

type clickOptions struct {
	Retries *int     `json:"retries"`
	Timeout *float64 `json:"timeout"`
	Delay   *float64 `json:"delay"`
}

type typeOptions struct {
	Clear *bool    `json:"clear"`
	Delay *float64 `json:"delay"`
}

type screenshotOptions struct {
	FullPage *bool `json:"fullPage"`
}

// helpers is the helpers object handed to every exec.
//
//nolint:funlen
func (b *binder) helpers() mapping {
	return mapping{
		"launchBrowser": func(kind, opts goja.Value) *goja.Promise {
			name := b.sb.session.BrowserTypeName()
			if goja.IsString(kind) {
				name = strings.ToLower(kind.String())
			} else if exists(kind) {
				opts = kind
			}
			var o playwright.BrowserTypeLaunchOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) {
				browser, err := b.sb.session.LaunchType(name, &o)
				if err != nil {
					return nil, err
				}
				return b.browser(browser), nil
			})
		},
		"createContext": func(first, second goja.Value) *goja.Promise {
			browser := b.browserOf(first)
			opts := second
			if browser == nil {
				browser = b.sb.session.Browser()
				opts = first
			}
			var o playwright.BrowserNewContextOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) {
				if browser == nil {
					return nil, errors.New("no browser available")
				}
				ctx, err := browser.NewContext(b.sb.session.ContextOptions(o))
				if err != nil {
					return nil, err
				}
				return b.context(ctx), nil
			})
		},
		"createPage": func(ctxArg goja.Value) *goja.Promise {
			ctx := b.contextOf(ctxArg)
			if ctx == nil {
				ctx = b.sb.session.Context()
			}
			return b.promise(func() (any, error) {
				if ctx == nil {
					return nil, errors.New("no browser context available")
				}
				page, err := ctx.NewPage()
				if err != nil {
					return nil, err
				}
				return b.page(page), nil
			})
		},
		"waitForPageReady": func(pageArg, opts goja.Value) *goja.Promise {
			var o readyOptions
			b.mustDecode(opts, &o)
			page := b.pageOrCurrent(pageArg)
			return b.settle(func() error {
				if page == nil {
					return errNoPage
				}
				state := *playwright.LoadStateLoad
				if o.State != "" {
					state = playwright.LoadState(o.State)
				}
				return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
					State:   &state,
					Timeout: o.Timeout,
				})
			})
		},
		"safeClick": func(pageArg goja.Value, selector string, opts goja.Value) *goja.Promise {
			var o clickOptions
			b.mustDecode(opts, &o)
			page := b.pageOrCurrent(pageArg)
			return b.settle(func() error {
				if page == nil {
					return errNoPage
				}
				return safeClick(page, selector, o)
			})
		},
		"safeType": func(pageArg goja.Value, selector, text string, opts goja.Value) *goja.Promise {
			var o typeOptions
			b.mustDecode(opts, &o)
			page := b.pageOrCurrent(pageArg)
			return b.settle(func() error {
				if page == nil {
					return errNoPage
				}
				return safeType(page, selector, text, o)
			})
		},
		"extractTexts": func(pageArg goja.Value, selector string) *goja.Promise {
			page := b.pageOrCurrent(pageArg)
			return b.promise(func() (any, error) {
				if page == nil {
					return nil, errNoPage
				}
				texts, err := page.Locator(selector).AllTextContents()
				if err != nil {
					return nil, fmt.Errorf("extracting %q: %w", selector, err)
				}
				for i := range texts {
					texts[i] = strings.TrimSpace(texts[i])
				}
				return b.stringArray(texts), nil
			})
		},
		"takeScreenshot": func(pageArg goja.Value, name goja.Value, opts goja.Value) *goja.Promise {
			var o screenshotOptions
			b.mustDecode(opts, &o)
			page := b.pageOrCurrent(pageArg)
			return b.promise(func() (any, error) {
				if page == nil {
					return nil, errNoPage
				}
				return b.sb.takeScreenshot(page, optString(name), o)
			})
		},
		"scrollPage": func(pageArg goja.Value, direction goja.Value, distance goja.Value) *goja.Promise {
			page := b.pageOrCurrent(pageArg)
			step := int64(DefaultScrollStep)
			if exists(distance) {
				step = distance.ToInteger()
			}
			return b.settle(func() error {
				if page == nil {
					return errNoPage
				}
				expression, err := scrollExpression(optString(direction), step)
				if err != nil {
					return err
				}
				_, err = page.Evaluate(expression)
				return err
			})
		},
		"cleanHTML": func(raw string, maxLength goja.Value) goja.Value {
			limit := DefaultCleanHTMLLength
			if exists(maxLength) {
				limit = int(maxLength.ToInteger())
			}
			cleaned, err := cleanHTML(raw, limit)
			if err != nil {
				panic(b.vm.NewGoError(err))
			}
			return b.object(mapping{
				"html":        cleaned.HTML,
				"title":       cleaned.Title,
				"description": cleaned.Description,
				"truncated":   cleaned.Truncated,
			})
		},
		"getExtraHeadersFromEnv": func() goja.Value {
			return b.stringMap(b.sb.session.ExtraHeaders())
		},
	}
}

func (b *binder) pageOrCurrent(v goja.Value) playwright.Page {
	if p := b.pageOf(v); p != nil {
		return p
	}
	return b.sb.session.Page()
}

// contextOptionsWithHeaders returns a copy of options whose extraHTTPHeaders
// also carry the headers configured through the environment. Headers set by
// the caller win.
func (b *binder) contextOptionsWithHeaders(options goja.Value) goja.Value {
	extra := b.sb.session.ExtraHeaders()
	if extra == nil {
		if !exists(options) {
			return b.vm.NewObject()
		}
		return options
	}

	out := b.vm.NewObject()
	headers := b.vm.NewObject()
	for k, v := range extra {
		_ = headers.Set(k, v)
	}
	if src, ok := options.(*goja.Object); ok && exists(options) {
		for _, key := range src.Keys() {
			_ = out.Set(key, src.Get(key))
		}
		if caller, ok := src.Get("extraHTTPHeaders").(*goja.Object); ok {
			for _, key := range caller.Keys() {
				_ = headers.Set(key, caller.Get(key))
			}
		}
	}
	_ = out.Set("extraHTTPHeaders", headers)
	return out
}

func safeClick(page playwright.Page, selector string, o clickOptions) error {
	retries := DefaultClickRetries
	if o.Retries != nil && *o.Retries > 0 {
		retries = *o.Retries
	}
	delay := float64(DefaultClickDelay)
	if o.Delay != nil {
		delay = *o.Delay
	}

	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		loc := page.Locator(selector)
		if err = loc.WaitFor(playwright.LocatorWaitForOptions{Timeout: o.Timeout}); err == nil {
			if err = loc.Click(playwright.LocatorClickOptions{Timeout: o.Timeout}); err == nil {
				return nil
			}
		}
		if attempt < retries {
			page.WaitForTimeout(delay)
		}
	}
	return fmt.Errorf("click %q failed after %d attempts: %w", selector, retries, err)
}

func safeType(page playwright.Page, selector, text string, o typeOptions) error {
	loc := page.Locator(selector)
	clear := o.Clear == nil || *o.Clear
	if o.Delay == nil || *o.Delay <= 0 {
		if clear {
			return loc.Fill(text)
		}
		return loc.PressSequentially(text)
	}
	if clear {
		if err := loc.Fill(""); err != nil {
			return err
		}
	}
	return loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{Delay: o.Delay})
}

func scrollExpression(direction string, step int64) (string, error) {
	switch strings.ToLower(direction) {
	case "", "down":
		return fmt.Sprintf("window.scrollBy(0, %d)", step), nil
	case "up":
		return fmt.Sprintf("window.scrollBy(0, -%d)", step), nil
	case "top":
		return "window.scrollTo(0, 0)", nil
	case "bottom":
		return "window.scrollTo(0, document.body.scrollHeight)", nil
	default:
		return "", fmt.Errorf("unknown scroll direction %q", direction)
	}
}

// takeScreenshot writes a PNG under the working directory and returns its
// path. Bare names land in the screenshots directory.
func (sb *Sandbox) takeScreenshot(page playwright.Page, name string, o screenshotOptions) (string, error) {
	if name == "" {
		name = fmt.Sprintf("screenshot-%d", time.Now().UnixMilli())
	}
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	if !strings.ContainsRune(filepath.ToSlash(name), '/') {
		name = filepath.Join(DefaultScreenshotDir, name)
	}

	path, err := sb.guard.ValidatePath(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}

	fullPage := o.FullPage == nil || *o.FullPage
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
	}); err != nil {
		return "", fmt.Errorf("taking screenshot: %w", err)
	}
	return path, nil
}
