// Package engine owns the Playwright driver process: starting it, installing
// it on first use and handing out browser types to the session layer.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/entrhq/browserd/pkg/logging"
)

// ErrEngineUnavailable is returned when the Playwright driver cannot be started.
var ErrEngineUnavailable = errors.New("playwright engine unavailable")

// Options configures a Driver.
type Options struct {
	// DriverDirectory overrides the driver install location. Empty uses
	// Playwright's default cache directory.
	DriverDirectory string

	// BrowserType is the browser binary installed alongside the driver.
	BrowserType string

	// AutoInstall permits Bootstrap to install missing components.
	AutoInstall bool
}

// Driver wraps one Playwright driver process. It is started lazily and
// kept until Stop.
type Driver struct {
	mu   sync.Mutex
	opts Options
	pw   *playwright.Playwright

	run     func(*playwright.RunOptions) (*playwright.Playwright, error)
	install func(*playwright.RunOptions) error
	stop    func(*playwright.Playwright) error

	logger *logging.Logger
}

// New creates a driver that has not been started yet.
func New(opts Options) *Driver {
	return &Driver{
		opts: opts,
		run: func(o *playwright.RunOptions) (*playwright.Playwright, error) {
			return playwright.Run(o)
		},
		install: func(o *playwright.RunOptions) error {
			return playwright.Install(o)
		},
		stop: func(pw *playwright.Playwright) error {
			return pw.Stop()
		},
		logger: logging.NewLogger("engine"),
	}
}

// runOptions keeps all driver output off stdout, which carries the protocol.
func (d *Driver) runOptions(withBrowsers bool) *playwright.RunOptions {
	opts := &playwright.RunOptions{
		DriverDirectory:     d.opts.DriverDirectory,
		SkipInstallBrowsers: !withBrowsers,
		Verbose:             d.logger.DebugMode(),
		Stdout:              d.logger.Writer(logrus.InfoLevel),
		Stderr:              d.logger.Writer(logrus.WarnLevel),
	}
	if withBrowsers && d.opts.BrowserType != "" {
		opts.Browsers = []string{strings.ToLower(d.opts.BrowserType)}
	}
	return opts
}

// Start returns the running driver, starting it if needed.
func (d *Driver) Start() (*playwright.Playwright, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked()
}

func (d *Driver) startLocked() (*playwright.Playwright, error) {
	if d.pw != nil {
		return d.pw, nil
	}

	pw, err := d.run(d.runOptions(false))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	d.pw = pw
	d.logger.Debugf("playwright driver started")
	return pw, nil
}

// Running reports whether a driver process is live.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pw != nil
}

// BrowserType returns the launcher for name ("chromium", "firefox" or
// "webkit"), starting the driver if needed.
func (d *Driver) BrowserType(name string) (playwright.BrowserType, error) {
	pw, err := d.Start()
	if err != nil {
		return nil, err
	}
	return browserTypeOf(pw, name)
}

func browserTypeOf(pw *playwright.Playwright, name string) (playwright.BrowserType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "chromium":
		return pw.Chromium, nil
	case "firefox":
		return pw.Firefox, nil
	case "webkit":
		return pw.WebKit, nil
	}
	return nil, fmt.Errorf("unknown browser type %q", name)
}

// BrowserTypes returns every launcher exposed by the running driver, keyed by
// name.
func (d *Driver) BrowserTypes() (map[string]playwright.BrowserType, error) {
	pw, err := d.Start()
	if err != nil {
		return nil, err
	}
	return map[string]playwright.BrowserType{
		"chromium": pw.Chromium,
		"firefox":  pw.Firefox,
		"webkit":   pw.WebKit,
	}, nil
}

// Devices returns the Playwright device descriptor table.
func (d *Driver) Devices() map[string]*playwright.DeviceDescriptor {
	pw, err := d.Start()
	if err != nil || pw == nil {
		return map[string]*playwright.DeviceDescriptor{}
	}
	return pw.Devices
}

// Stop shuts the driver down. Safe to call when it never started.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw == nil {
		return nil
	}
	pw := d.pw
	d.pw = nil
	if err := d.stop(pw); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	d.logger.Debugf("playwright driver stopped")
	return nil
}
