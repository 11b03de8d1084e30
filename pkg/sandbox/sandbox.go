// Package sandbox runs caller supplied JavaScript against the persistent
// browser session.
//
// Every exec gets a fresh goja runtime and event loop. The session's
// browser, context and page are bound as reassignable locals and whatever
// the code leaves in them is written back to the session afterwards, even
// when the code fails.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/playwright-community/playwright-go"
	"gopkg.in/guregu/null.v3"

	"github.com/entrhq/browserd/pkg/logging"
	"github.com/entrhq/browserd/pkg/security/environ"
	"github.com/entrhq/browserd/pkg/security/workspace"
)

// ErrNoCode is returned when an exec resolves to no code. The text is part
// of the wire protocol.
var ErrNoCode = errors.New("No code to execute (args empty)") //nolint:stylecheck

// scriptName is the file name reported in stack traces. It sits in the
// working directory so relative requires resolve from there.
const scriptName = "<exec>.js"

const wrapperHead = "(async function (console, helpers, chromium, firefox, webkit, devices, require, process, getContextOptionsWithHeaders, __state) {\n" +
	"let browser = __state.browser, context = __state.context, page = __state.page;\n" +
	"try {\n"

const wrapperTail = "\n} finally {\n" +
	"__state.browser = browser; __state.context = context; __state.page = page;\n" +
	"}\n})"

// Session is the persistent browser state an exec runs against.
type Session interface {
	EnsureReady() error
	Browser() playwright.Browser
	Context() playwright.BrowserContext
	Page() playwright.Page
	Adopt(browser playwright.Browser, ctx playwright.BrowserContext, page playwright.Page)
	PageURL() null.String
	LaunchType(name string, opts *playwright.BrowserTypeLaunchOptions) (playwright.Browser, error)
	BrowserTypeName() string
	ContextOptions(opts playwright.BrowserNewContextOptions) playwright.BrowserNewContextOptions
	ExtraHeaders() map[string]string
}

// Engine supplies the browser launchers and device table.
type Engine interface {
	BrowserTypes() (map[string]playwright.BrowserType, error)
	Devices() map[string]*playwright.DeviceDescriptor
}

// Result is the outcome of one exec.
type Result struct {
	OK      bool
	Stdout  []string
	Stderr  []string
	Error   string
	PageURL null.String
}

// Sandbox executes code for the worker. It is used from a single goroutine.
type Sandbox struct {
	session Session
	engine  Engine
	env     *environ.Environment
	guard   *workspace.Guard
	logger  *logging.Logger
}

// New creates a sandbox rooted at the guard's workspace.
func New(session Session, engine Engine, env *environ.Environment, guard *workspace.Guard) *Sandbox {
	return &Sandbox{
		session: session,
		engine:  engine,
		env:     env,
		guard:   guard,
		logger:  logging.NewLogger("sandbox"),
	}
}

// Exec applies the environment overlay, resolves the code from args, makes
// sure the session is ready and runs the code. The returned error covers
// failures before the code starts; failures of the code itself are reported
// in the Result.
func (sb *Sandbox) Exec(args []string, overlay map[string]*string) (*Result, error) {
	if _, err := sb.env.Apply(overlay); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	code, err := sb.resolveCode(args)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, ErrNoCode
	}

	if err := sb.session.EnsureReady(); err != nil {
		return nil, err
	}

	res := sb.run(code)
	res.PageURL = sb.session.PageURL()
	return res, nil
}

// resolveCode reads args[0] when it names a file in the working directory,
// and otherwise joins args with spaces.
func (sb *Sandbox) resolveCode(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if path, err := sb.guard.ValidatePath(args[0]); err == nil {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			data, err := sb.guard.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading %s: %w", args[0], err)
			}
			sb.logger.Debugf("exec: running file %s", path)
			return string(data), nil
		}
	}
	return strings.Join(args, " "), nil
}

func (sb *Sandbox) run(code string) (res *Result) {
	out := newCapture()
	fail := func(msg string) *Result {
		out.stderr = append(out.stderr, msg)
		return &Result{OK: false, Stdout: out.stdout, Stderr: out.stderr, Error: msg}
	}

	types, err := sb.engine.BrowserTypes()
	if err != nil {
		return fail(err.Error())
	}

	sb.logger.Debugf("exec: %d bytes of code", len(code))

	var (
		b       *binder
		state   *goja.Object
		promise *goja.Promise
		runErr  error
	)

	defer func() {
		if r := recover(); r != nil {
			sb.logger.Errorf("exec panicked: %v", r)
			sb.persist(b, state)
			res = fail(fmt.Sprintf("panic: %v", r))
		}
	}()

	reg := sb.newRegistry()
	loop := eventloop.NewEventLoop(eventloop.WithRegistry(reg), eventloop.EnableConsole(false))
	loop.Run(func(vm *goja.Runtime) {
		vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
		b = newBinder(vm, sb, types)
		reg.RegisterNativeModule(PlaywrightModule, b.playwrightModule)

		state = vm.NewObject()
		_ = state.Set("browser", b.browser(sb.session.Browser()))
		_ = state.Set("context", b.context(sb.session.Context()))
		_ = state.Set("page", b.page(sb.session.Page()))

		fnValue, err := vm.RunScript(filepath.Join(sb.guard.WorkspaceDir(), scriptName), wrapperHead+code+wrapperTail)
		if err != nil {
			runErr = err
			return
		}
		fn, ok := goja.AssertFunction(fnValue)
		if !ok {
			runErr = errors.New("code did not compile to a function")
			return
		}

		ret, err := fn(goja.Undefined(),
			out.console(vm),
			b.object(b.helpers()),
			b.browserTypeByName("chromium"),
			b.browserTypeByName("firefox"),
			b.browserTypeByName("webkit"),
			b.deviceDescriptors(),
			vm.Get("require"),
			sb.processObject(vm),
			vm.ToValue(b.contextOptionsWithHeaders),
			state,
		)
		if err != nil {
			runErr = err
			return
		}
		promise, _ = ret.Export().(*goja.Promise)
	})

	sb.persist(b, state)

	switch {
	case runErr != nil:
		return fail(describeError(runErr))
	case promise == nil:
		return fail("code did not return a promise")
	case promise.State() == goja.PromiseStateRejected:
		return fail(describeValue(promise.Result()))
	case promise.State() == goja.PromiseStatePending:
		return fail("execution did not complete: the code is waiting on a promise that never settles")
	}
	return &Result{OK: true, Stdout: out.stdout, Stderr: out.stderr}
}

// persist hands whatever the code left in browser, context and page back
// to the session. Values that are not Playwright handles count as absent.
func (sb *Sandbox) persist(b *binder, state *goja.Object) {
	if b == nil || state == nil {
		return
	}
	sb.session.Adopt(
		b.browserOf(state.Get("browser")),
		b.contextOf(state.Get("context")),
		b.pageOf(state.Get("page")),
	)
}

func describeError(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return describeValue(ex.Value())
	}
	return err.Error()
}

// describeValue prefers a thrown error's stack, then its message.
func describeValue(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		for _, key := range []string{"stack", "message"} {
			if s := obj.Get(key); exists(s) {
				if text := strings.TrimRight(s.String(), "\n"); text != "" {
					return text
				}
			}
		}
	}
	if v == nil {
		return "undefined"
	}
	return v.String()
}
