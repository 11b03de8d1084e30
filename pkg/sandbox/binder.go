package sandbox

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/playwright-community/playwright-go"
)

// mapping is a table of Go values exposed as the properties of one JS object.
type mapping = map[string]any

// property is a mapping entry exposed as a read-only accessor instead of a
// method, for attributes such as page.keyboard.
type property func() goja.Value

// binder exposes Playwright handles to one runtime. Each handle maps to a
// single JS object so that handles reassigned by a script can be recognized
// when the session is persisted.
type binder struct {
	vm      *goja.Runtime
	sb      *Sandbox
	types   map[string]playwright.BrowserType
	objects map[any]*goja.Object
	handles map[*goja.Object]any

	deviceTable *goja.Object
}

func newBinder(vm *goja.Runtime, sb *Sandbox, types map[string]playwright.BrowserType) *binder {
	return &binder{
		vm:      vm,
		sb:      sb,
		types:   types,
		objects: make(map[any]*goja.Object),
		handles: make(map[*goja.Object]any),
	}
}

// wrap returns the JS object for handle, building it on first use.
func (b *binder) wrap(handle any, build func() mapping) *goja.Object {
	if obj, ok := b.objects[handle]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	for name, fn := range build() {
		var err error
		if get, ok := fn.(property); ok {
			getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
			err = obj.DefineAccessorProperty(name, getter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
		} else {
			err = obj.Set(name, fn)
		}
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("binding %s: %w", name, err)))
		}
	}
	b.objects[handle] = obj
	b.handles[obj] = handle
	return obj
}

// handle returns the Playwright handle behind v, or nil.
func (b *binder) handle(v goja.Value) any {
	obj, ok := v.(*goja.Object)
	if !ok || obj == nil {
		return nil
	}
	return b.handles[obj]
}

func (b *binder) browserOf(v goja.Value) playwright.Browser {
	h, _ := b.handle(v).(playwright.Browser)
	return h
}

func (b *binder) contextOf(v goja.Value) playwright.BrowserContext {
	h, _ := b.handle(v).(playwright.BrowserContext)
	return h
}

func (b *binder) pageOf(v goja.Value) playwright.Page {
	h, _ := b.handle(v).(playwright.Page)
	return h
}

func (b *binder) browser(h playwright.Browser) goja.Value {
	if h == nil {
		return goja.Null()
	}
	return b.wrap(h, func() mapping { return b.mapBrowser(h) })
}

func (b *binder) context(h playwright.BrowserContext) goja.Value {
	if h == nil {
		return goja.Null()
	}
	return b.wrap(h, func() mapping { return b.mapContext(h) })
}

func (b *binder) page(h playwright.Page) goja.Value {
	if h == nil {
		return goja.Null()
	}
	return b.wrap(h, func() mapping { return b.mapPage(h) })
}

func (b *binder) browserType(h playwright.BrowserType) goja.Value {
	if h == nil {
		return goja.Null()
	}
	return b.wrap(h, func() mapping { return b.mapBrowserType(h) })
}

// browserTypeByName returns the launcher for name, or null when the engine
// does not offer it.
func (b *binder) browserTypeByName(name string) goja.Value {
	bt, ok := b.types[name]
	if !ok {
		return goja.Null()
	}
	return b.browserType(bt)
}

// deviceDescriptors returns the shared devices object of this exec.
func (b *binder) deviceDescriptors() *goja.Object {
	if b.deviceTable == nil {
		b.deviceTable = b.devices(b.sb.engine.Devices())
	}
	return b.deviceTable
}

func (b *binder) locator(h playwright.Locator) goja.Value {
	if h == nil {
		return goja.Null()
	}
	return b.wrap(h, func() mapping { return b.mapLocator(h) })
}

func (b *binder) element(h playwright.ElementHandle) goja.Value {
	if h == nil {
		return goja.Null()
	}
	return b.wrap(h, func() mapping { return b.mapElement(h) })
}

func (b *binder) response(h playwright.Response) goja.Value {
	if h == nil {
		return goja.Null()
	}
	return b.wrap(h, func() mapping { return b.mapResponse(h) })
}

// promise runs fn and returns an already settled promise holding its result.
// Playwright calls block, so settling eagerly keeps await and then() working.
func (b *binder) promise(fn func() (any, error)) *goja.Promise {
	p, resolve, reject := b.vm.NewPromise()
	v, err := fn()
	if err != nil {
		_ = reject(b.vm.NewGoError(err))
	} else {
		_ = resolve(v)
	}
	return p
}

// settle wraps a call that only reports an error.
func (b *binder) settle(fn func() error) *goja.Promise {
	return b.promise(func() (any, error) {
		return nil, fn()
	})
}

// decode copies a JS options object into a Playwright options struct. JSON
// key matching is case-insensitive, so Playwright's JS spellings such as
// extraHTTPHeaders land in ExtraHttpHeaders.
func (b *binder) decode(v goja.Value, dst any) error {
	if !exists(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return fmt.Errorf("options must be an object, got %s", v.String())
	}
	data, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// mustDecode is decode for mapping functions: failures become JS exceptions.
func (b *binder) mustDecode(v goja.Value, dst any) {
	if err := b.decode(v, dst); err != nil {
		panic(b.vm.NewTypeError(err.Error()))
	}
}

// object converts a Go map into a plain JS object.
func (b *binder) object(m map[string]any) *goja.Object {
	obj := b.vm.NewObject()
	for k, v := range m {
		_ = obj.Set(k, v)
	}
	return obj
}

func (b *binder) stringMap(m map[string]string) goja.Value {
	if m == nil {
		return goja.Null()
	}
	obj := b.vm.NewObject()
	for k, v := range m {
		_ = obj.Set(k, v)
	}
	return obj
}

func (b *binder) stringArray(items []string) goja.Value {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return b.vm.NewArray(out...)
}

// exists reports whether v is neither missing, undefined nor null.
func exists(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

// optString returns v as a string, or "" when absent.
func optString(v goja.Value) string {
	if !exists(v) {
		return ""
	}
	return v.String()
}

// evalExpression turns a function or string argument into Playwright's
// expression form.
func evalExpression(v goja.Value) string {
	if !exists(v) {
		return ""
	}
	return v.String()
}

func exportArg(v goja.Value) any {
	if !exists(v) {
		return nil
	}
	return v.Export()
}
