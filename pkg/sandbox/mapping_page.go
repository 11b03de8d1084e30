package sandbox

import (
	"github.com/dop251/goja"
	"github.com/playwright-community/playwright-go"
)

//nolint:funlen
func (b *binder) mapPage(p playwright.Page) mapping {
	nav := func(call func() (playwright.Response, error)) *goja.Promise {
		return b.promise(func() (any, error) {
			resp, err := call()
			if err != nil {
				return nil, err
			}
			return b.response(resp), nil
		})
	}

	return mapping{
		"url":      func() string { return p.URL() },
		"isClosed": func() bool { return p.IsClosed() },
		"context": func() goja.Value {
			return b.context(p.Context())
		},
		"locator": func(selector string, opts goja.Value) goja.Value {
			var o playwright.PageLocatorOptions
			b.mustDecode(opts, &o)
			return b.locator(p.Locator(selector, o))
		},
		"getByText": func(text string, opts goja.Value) goja.Value {
			var o playwright.PageGetByTextOptions
			b.mustDecode(opts, &o)
			return b.locator(p.GetByText(text, o))
		},
		"getByRole": func(role string, opts goja.Value) goja.Value {
			var o playwright.PageGetByRoleOptions
			b.mustDecode(opts, &o)
			return b.locator(p.GetByRole(playwright.AriaRole(role), o))
		},
		"getByLabel": func(text string, opts goja.Value) goja.Value {
			var o playwright.PageGetByLabelOptions
			b.mustDecode(opts, &o)
			return b.locator(p.GetByLabel(text, o))
		},
		"getByPlaceholder": func(text string, opts goja.Value) goja.Value {
			var o playwright.PageGetByPlaceholderOptions
			b.mustDecode(opts, &o)
			return b.locator(p.GetByPlaceholder(text, o))
		},
		"getByTestId": func(id string) goja.Value {
			return b.locator(p.GetByTestId(id))
		},
		"setDefaultTimeout":           func(ms float64) { p.SetDefaultTimeout(ms) },
		"setDefaultNavigationTimeout": func(ms float64) { p.SetDefaultNavigationTimeout(ms) },
		"keyboard": property(func() goja.Value {
			k := p.Keyboard()
			return b.wrap(k, func() mapping { return b.mapKeyboard(k) })
		}),
		"mouse": property(func() goja.Value {
			m := p.Mouse()
			return b.wrap(m, func() mapping { return b.mapMouse(m) })
		}),

		"goto": func(url string, opts goja.Value) *goja.Promise {
			var o playwright.PageGotoOptions
			b.mustDecode(opts, &o)
			return nav(func() (playwright.Response, error) { return p.Goto(url, o) })
		},
		"reload": func(opts goja.Value) *goja.Promise {
			var o playwright.PageReloadOptions
			b.mustDecode(opts, &o)
			return nav(func() (playwright.Response, error) { return p.Reload(o) })
		},
		"goBack": func(opts goja.Value) *goja.Promise {
			var o playwright.PageGoBackOptions
			b.mustDecode(opts, &o)
			return nav(func() (playwright.Response, error) { return p.GoBack(o) })
		},
		"goForward": func(opts goja.Value) *goja.Promise {
			var o playwright.PageGoForwardOptions
			b.mustDecode(opts, &o)
			return nav(func() (playwright.Response, error) { return p.GoForward(o) })
		},
		"title": func() *goja.Promise {
			return b.promise(func() (any, error) { return p.Title() })
		},
		"content": func() *goja.Promise {
			return b.promise(func() (any, error) { return p.Content() })
		},
		"setContent": func(html string, opts goja.Value) *goja.Promise {
			var o playwright.PageSetContentOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.SetContent(html, o) })
		},
		"click": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageClickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Click(selector, o) })
		},
		"dblclick": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageDblclickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Dblclick(selector, o) })
		},
		"fill": func(selector, value string, opts goja.Value) *goja.Promise {
			var o playwright.PageFillOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Fill(selector, value, o) })
		},
		"type": func(selector, text string, opts goja.Value) *goja.Promise {
			var o playwright.PageTypeOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Type(selector, text, o) })
		},
		"press": func(selector, key string, opts goja.Value) *goja.Promise {
			var o playwright.PagePressOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Press(selector, key, o) })
		},
		"hover": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageHoverOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Hover(selector, o) })
		},
		"check": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageCheckOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Check(selector, o) })
		},
		"uncheck": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageUncheckOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Uncheck(selector, o) })
		},
		"focus": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageFocusOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return p.Focus(selector, o) })
		},
		"textContent": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageTextContentOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return p.TextContent(selector, o) })
		},
		"innerText": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageInnerTextOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return p.InnerText(selector, o) })
		},
		"innerHTML": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageInnerHTMLOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return p.InnerHTML(selector, o) })
		},
		"getAttribute": func(selector, name string, opts goja.Value) *goja.Promise {
			var o playwright.PageGetAttributeOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return p.GetAttribute(selector, name, o) })
		},
		"inputValue": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageInputValueOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return p.InputValue(selector, o) })
		},
		"isVisible": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageIsVisibleOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return p.IsVisible(selector, o) })
		},
		"waitForSelector": func(selector string, opts goja.Value) *goja.Promise {
			var o playwright.PageWaitForSelectorOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) {
				el, err := p.WaitForSelector(selector, o)
				if err != nil {
					return nil, err
				}
				return b.element(el), nil
			})
		},
		"waitForLoadState": func(state, opts goja.Value) *goja.Promise {
			var o playwright.PageWaitForLoadStateOptions
			b.mustDecode(opts, &o)
			if s := optString(state); s != "" {
				ls := playwright.LoadState(s)
				o.State = &ls
			}
			return b.settle(func() error { return p.WaitForLoadState(o) })
		},
		"waitForURL": func(url goja.Value, opts goja.Value) *goja.Promise {
			var o playwright.PageWaitForURLOptions
			b.mustDecode(opts, &o)
			target := exportArg(url)
			return b.settle(func() error { return p.WaitForURL(target, o) })
		},
		"waitForTimeout": func(ms float64) *goja.Promise {
			return b.promise(func() (any, error) {
				p.WaitForTimeout(ms)
				return nil, nil
			})
		},
		"screenshot": func(opts goja.Value) *goja.Promise {
			var o playwright.PageScreenshotOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) {
				data, err := p.Screenshot(o)
				if err != nil {
					return nil, err
				}
				return b.vm.NewArrayBuffer(data), nil
			})
		},
		"evaluate": func(fn goja.Value, arg goja.Value) *goja.Promise {
			expression := evalExpression(fn)
			return b.promise(func() (any, error) {
				if exists(arg) {
					return p.Evaluate(expression, arg.Export())
				}
				return p.Evaluate(expression)
			})
		},
		"setViewportSize": func(size goja.Value) *goja.Promise {
			var s playwright.Size
			b.mustDecode(size, &s)
			return b.settle(func() error { return p.SetViewportSize(s.Width, s.Height) })
		},
		"setExtraHTTPHeaders": func(headers map[string]string) *goja.Promise {
			return b.settle(func() error { return p.SetExtraHTTPHeaders(headers) })
		},
		"bringToFront": func() *goja.Promise {
			return b.settle(func() error { return p.BringToFront() })
		},
		"close": func() *goja.Promise {
			return b.settle(func() error { return p.Close() })
		},
	}
}

func (b *binder) mapKeyboard(k playwright.Keyboard) mapping {
	return mapping{
		"press": func(key string, opts goja.Value) *goja.Promise {
			var o playwright.KeyboardPressOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return k.Press(key, o) })
		},
		"type": func(text string, opts goja.Value) *goja.Promise {
			var o playwright.KeyboardTypeOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return k.Type(text, o) })
		},
		"down": func(key string) *goja.Promise {
			return b.settle(func() error { return k.Down(key) })
		},
		"up": func(key string) *goja.Promise {
			return b.settle(func() error { return k.Up(key) })
		},
		"insertText": func(text string) *goja.Promise {
			return b.settle(func() error { return k.InsertText(text) })
		},
	}
}

func (b *binder) mapMouse(m playwright.Mouse) mapping {
	return mapping{
		"click": func(x, y float64, opts goja.Value) *goja.Promise {
			var o playwright.MouseClickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return m.Click(x, y, o) })
		},
		"move": func(x, y float64, opts goja.Value) *goja.Promise {
			var o playwright.MouseMoveOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return m.Move(x, y, o) })
		},
		"dblclick": func(x, y float64, opts goja.Value) *goja.Promise {
			var o playwright.MouseDblclickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return m.Dblclick(x, y, o) })
		},
		"down": func(opts goja.Value) *goja.Promise {
			var o playwright.MouseDownOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return m.Down(o) })
		},
		"up": func(opts goja.Value) *goja.Promise {
			var o playwright.MouseUpOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return m.Up(o) })
		},
		"wheel": func(dx, dy float64) *goja.Promise {
			return b.settle(func() error { return m.Wheel(dx, dy) })
		},
	}
}
