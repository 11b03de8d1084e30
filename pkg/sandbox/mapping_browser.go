package sandbox

import (
	"encoding/json"

	"github.com/dop251/goja"
	"github.com/playwright-community/playwright-go"
)

// mapBrowserType exposes chromium, firefox and webkit.
func (b *binder) mapBrowserType(bt playwright.BrowserType) mapping {
	return mapping{
		"name":           func() string { return bt.Name() },
		"executablePath": func() string { return bt.ExecutablePath() },
		"launch": func(opts goja.Value) *goja.Promise {
			var launch playwright.BrowserTypeLaunchOptions
			b.mustDecode(opts, &launch)
			return b.promise(func() (any, error) {
				browser, err := bt.Launch(launch)
				if err != nil {
					return nil, err
				}
				return b.browser(browser), nil
			})
		},
	}
}

func (b *binder) mapBrowser(br playwright.Browser) mapping {
	return mapping{
		"isConnected": func() bool { return br.IsConnected() },
		"version":     func() string { return br.Version() },
		"contexts": func() goja.Value {
			var out []any
			for _, c := range br.Contexts() {
				out = append(out, b.context(c))
			}
			return b.vm.NewArray(out...)
		},
		"newContext": func(opts goja.Value) *goja.Promise {
			var ctxOpts playwright.BrowserNewContextOptions
			b.mustDecode(opts, &ctxOpts)
			return b.promise(func() (any, error) {
				ctx, err := br.NewContext(ctxOpts)
				if err != nil {
					return nil, err
				}
				return b.context(ctx), nil
			})
		},
		"newPage": func(opts goja.Value) *goja.Promise {
			var pageOpts playwright.BrowserNewPageOptions
			b.mustDecode(opts, &pageOpts)
			return b.promise(func() (any, error) {
				page, err := br.NewPage(pageOpts)
				if err != nil {
					return nil, err
				}
				return b.page(page), nil
			})
		},
		"close": func() *goja.Promise {
			return b.settle(func() error { return br.Close() })
		},
	}
}

func (b *binder) mapContext(ctx playwright.BrowserContext) mapping {
	return mapping{
		"browser": func() goja.Value {
			return b.browser(ctx.Browser())
		},
		"pages": func() goja.Value {
			var out []any
			for _, p := range ctx.Pages() {
				out = append(out, b.page(p))
			}
			return b.vm.NewArray(out...)
		},
		"setDefaultTimeout":           func(ms float64) { ctx.SetDefaultTimeout(ms) },
		"setDefaultNavigationTimeout": func(ms float64) { ctx.SetDefaultNavigationTimeout(ms) },
		"newPage": func() *goja.Promise {
			return b.promise(func() (any, error) {
				page, err := ctx.NewPage()
				if err != nil {
					return nil, err
				}
				return b.page(page), nil
			})
		},
		"setExtraHTTPHeaders": func(headers map[string]string) *goja.Promise {
			return b.settle(func() error { return ctx.SetExtraHTTPHeaders(headers) })
		},
		"cookies": func(call goja.FunctionCall) goja.Value {
			var urls []string
			for _, arg := range call.Arguments {
				if exists(arg) {
					urls = append(urls, arg.String())
				}
			}
			return b.vm.ToValue(b.promise(func() (any, error) {
				cookies, err := ctx.Cookies(urls...)
				if err != nil {
					return nil, err
				}
				return b.vm.ToValue(cookies), nil
			}))
		},
		"addCookies": func(cookies goja.Value) *goja.Promise {
			var list []playwright.OptionalCookie
			if obj, ok := cookies.(*goja.Object); ok {
				data, err := obj.MarshalJSON()
				if err == nil {
					err = json.Unmarshal(data, &list)
				}
				if err != nil {
					panic(b.vm.NewTypeError("invalid cookies: %v", err))
				}
			}
			return b.settle(func() error { return ctx.AddCookies(list) })
		},
		"close": func() *goja.Promise {
			return b.settle(func() error { return ctx.Close() })
		},
	}
}

func (b *binder) mapResponse(r playwright.Response) mapping {
	return mapping{
		"url":        func() string { return r.URL() },
		"status":     func() int { return r.Status() },
		"statusText": func() string { return r.StatusText() },
		"ok":         func() bool { return r.Ok() },
		"headers":    func() map[string]string { return r.Headers() },
		"text": func() *goja.Promise {
			return b.promise(func() (any, error) {
				return r.Text()
			})
		},
		"json": func() *goja.Promise {
			return b.promise(func() (any, error) {
				var v any
				if err := r.JSON(&v); err != nil {
					return nil, err
				}
				return b.vm.ToValue(v), nil
			})
		},
	}
}

// devices converts Playwright's device table into plain JS objects that can
// be spread into newContext options.
func (b *binder) devices(table map[string]*playwright.DeviceDescriptor) *goja.Object {
	out := b.vm.NewObject()
	for name, d := range table {
		if d == nil {
			continue
		}
		desc := mapping{
			"userAgent":          d.UserAgent,
			"deviceScaleFactor":  d.DeviceScaleFactor,
			"isMobile":           d.IsMobile,
			"hasTouch":           d.HasTouch,
			"defaultBrowserType": d.DefaultBrowserType,
		}
		if d.Viewport != nil {
			desc["viewport"] = b.object(mapping{"width": d.Viewport.Width, "height": d.Viewport.Height})
		}
		if d.Screen != nil {
			desc["screen"] = b.object(mapping{"width": d.Screen.Width, "height": d.Screen.Height})
		}
		_ = out.Set(name, b.object(desc))
	}
	return out
}
