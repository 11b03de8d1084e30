package engine

import (
	"fmt"
)

// Bootstrap makes sure the driver can run before the first request arrives.
// A successful trial run is kept as the live driver. When the trial fails
// and installation is allowed, the driver and the configured browser are
// installed once and the trial is retried.
//
// The returned error is informational: callers keep serving and let the
// first exec report the failure.
func (d *Driver) Bootstrap() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.startLocked()
	if err == nil {
		return nil
	}
	d.logger.Warnf("playwright driver not ready: %v", err)

	if !d.opts.AutoInstall {
		return fmt.Errorf("auto install disabled: %w", err)
	}

	d.logger.Infof("installing playwright driver and %s browser", d.browserLabel())
	if installErr := d.install(d.runOptions(true)); installErr != nil {
		return fmt.Errorf("%w: install failed: %v", ErrEngineUnavailable, installErr)
	}

	if _, err := d.startLocked(); err != nil {
		return fmt.Errorf("driver still unavailable after install: %w", err)
	}
	d.logger.Infof("playwright install complete")
	return nil
}

func (d *Driver) browserLabel() string {
	if d.opts.BrowserType == "" {
		return "chromium"
	}
	return d.opts.BrowserType
}
