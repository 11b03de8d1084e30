package sandbox

import (
	"github.com/dop251/goja"
	"github.com/playwright-community/playwright-go"
)

//nolint:funlen
func (b *binder) mapLocator(l playwright.Locator) mapping {
	return mapping{
		"locator": func(selector string) goja.Value {
			return b.locator(l.Locator(selector))
		},
		"first": func() goja.Value { return b.locator(l.First()) },
		"last":  func() goja.Value { return b.locator(l.Last()) },
		"nth": func(i int) goja.Value {
			return b.locator(l.Nth(i))
		},
		"getByText": func(text string, opts goja.Value) goja.Value {
			var o playwright.LocatorGetByTextOptions
			b.mustDecode(opts, &o)
			return b.locator(l.GetByText(text, o))
		},

		"click": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorClickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Click(o) })
		},
		"dblclick": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorDblclickOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Dblclick(o) })
		},
		"fill": func(value string, opts goja.Value) *goja.Promise {
			var o playwright.LocatorFillOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Fill(value, o) })
		},
		"clear": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorClearOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Clear(o) })
		},
		"press": func(key string, opts goja.Value) *goja.Promise {
			var o playwright.LocatorPressOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Press(key, o) })
		},
		"pressSequentially": func(text string, opts goja.Value) *goja.Promise {
			var o playwright.LocatorPressSequentiallyOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.PressSequentially(text, o) })
		},
		"type": func(text string, opts goja.Value) *goja.Promise {
			var o playwright.LocatorPressSequentiallyOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.PressSequentially(text, o) })
		},
		"hover": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorHoverOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Hover(o) })
		},
		"check": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorCheckOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Check(o) })
		},
		"uncheck": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorUncheckOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Uncheck(o) })
		},
		"focus": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorFocusOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.Focus(o) })
		},
		"scrollIntoViewIfNeeded": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorScrollIntoViewIfNeededOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.ScrollIntoViewIfNeeded(o) })
		},
		"waitFor": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorWaitForOptions
			b.mustDecode(opts, &o)
			return b.settle(func() error { return l.WaitFor(o) })
		},
		"textContent": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorTextContentOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.TextContent(o) })
		},
		"innerText": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorInnerTextOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.InnerText(o) })
		},
		"innerHTML": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorInnerHTMLOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.InnerHTML(o) })
		},
		"inputValue": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorInputValueOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.InputValue(o) })
		},
		"getAttribute": func(name string, opts goja.Value) *goja.Promise {
			var o playwright.LocatorGetAttributeOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.GetAttribute(name, o) })
		},
		"isVisible": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorIsVisibleOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.IsVisible(o) })
		},
		"isEnabled": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorIsEnabledOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.IsEnabled(o) })
		},
		"isChecked": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorIsCheckedOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) { return l.IsChecked(o) })
		},
		"count": func() *goja.Promise {
			return b.promise(func() (any, error) { return l.Count() })
		},
		"allTextContents": func() *goja.Promise {
			return b.promise(func() (any, error) {
				texts, err := l.AllTextContents()
				if err != nil {
					return nil, err
				}
				return b.stringArray(texts), nil
			})
		},
		"allInnerTexts": func() *goja.Promise {
			return b.promise(func() (any, error) {
				texts, err := l.AllInnerTexts()
				if err != nil {
					return nil, err
				}
				return b.stringArray(texts), nil
			})
		},
		"screenshot": func(opts goja.Value) *goja.Promise {
			var o playwright.LocatorScreenshotOptions
			b.mustDecode(opts, &o)
			return b.promise(func() (any, error) {
				data, err := l.Screenshot(o)
				if err != nil {
					return nil, err
				}
				return b.vm.NewArrayBuffer(data), nil
			})
		},
	}
}
