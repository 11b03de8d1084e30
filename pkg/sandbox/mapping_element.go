package sandbox

import (
	"github.com/dop251/goja"
	"github.com/playwright-community/playwright-go"
)

// mapElement exposes the element handles returned by page.waitForSelector.
//
//nolint:funlen
func (b *binder) mapElement(e playwright.ElementHandle) mapping {
	return mapping{
		"$": func(selector string) *goja.Promise {
			return b.promise(func() (any, error) {
				el, err := e.QuerySelector(selector)
				if err != nil {
					return nil, err
				}
				return b.element(el), nil
			})
		},

		"click": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleClickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Click(o) })
		},
		"dblclick": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleDblclickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Dblclick(o) })
		},
		"fill": func(value string, opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleFillOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Fill(value, o) })
		},
		"press": func(key string, opts goja.Value) *goja.Promise {
			var o playwright.ElementHandlePressOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Press(key, o) })
		},
		"type": func(text string, opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleTypeOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Type(text, o) })
		},
		"hover": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleHoverOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Hover(o) })
		},
		"check": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleCheckOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Check(o) })
		},
		"uncheck": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleUncheckOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.Uncheck(o) })
		},
		"focus": func() *goja.Promise {
			return b.settle(func() error { return e.Focus() })
		},
		"scrollIntoViewIfNeeded": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleScrollIntoViewIfNeededOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return e.ScrollIntoViewIfNeeded(o) })
		},
		"textContent": func() *goja.Promise {
			return b.promise(func() (any, error) { return e.TextContent() })
		},
		"innerText": func() *goja.Promise {
			return b.promise(func() (any, error) { return e.InnerText() })
		},
		"innerHTML": func() *goja.Promise {
			return b.promise(func() (any, error) { return e.InnerHTML() })
		},
		"getAttribute": func(name string) *goja.Promise {
			return b.promise(func() (any, error) { return e.GetAttribute(name) })
		},
		"inputValue": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleInputValueOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return e.InputValue(o) })
		},
		"isVisible": func() *goja.Promise {
			return b.promise(func() (any, error) { return e.IsVisible() })
		},
		"isEnabled": func() *goja.Promise {
			return b.promise(func() (any, error) { return e.IsEnabled() })
		},
		"isChecked": func() *goja.Promise {
			return b.promise(func() (any, error) { return e.IsChecked() })
		},
		"screenshot": func(opts goja.Value) *goja.Promise {
			var o playwright.ElementHandleScreenshotOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) {
				data, err := e.Screenshot(o)
				if err != nil {
					return nil, err
				}
				return b.vm.NewArrayBuffer(data), nil
			})
		},
		"dispose": func() *goja.Promise {
			return b.settle(func() error { return e.Dispose() })
		},
	}
}
