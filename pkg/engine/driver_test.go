package engine

import (
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBrowserType struct {
	playwright.BrowserType
	name string
}

func (f *fakeBrowserType) Name() string { return f.name }

type fakeRuntime struct {
	runErrs    []error
	installErr error
	stopErr    error

	runs     int
	installs []*playwright.RunOptions
	stops    int
}

func (f *fakeRuntime) attach(d *Driver) {
	d.run = func(o *playwright.RunOptions) (*playwright.Playwright, error) {
		f.runs++
		if len(f.runErrs) > 0 {
			err := f.runErrs[0]
			f.runErrs = f.runErrs[1:]
			if err != nil {
				return nil, err
			}
		}
		return &playwright.Playwright{
			Chromium: &fakeBrowserType{name: "chromium"},
			Firefox:  &fakeBrowserType{name: "firefox"},
			WebKit:   &fakeBrowserType{name: "webkit"},
			Devices: map[string]*playwright.DeviceDescriptor{
				"Pixel 5": {UserAgent: "pixel", IsMobile: true},
			},
		}, nil
	}
	d.install = func(o *playwright.RunOptions) error {
		f.installs = append(f.installs, o)
		return f.installErr
	}
	d.stop = func(*playwright.Playwright) error {
		f.stops++
		return f.stopErr
	}
}

func newTestDriver(opts Options, rt *fakeRuntime) *Driver {
	d := New(opts)
	rt.attach(d)
	return d
}

func TestStartIsLazyAndCached(t *testing.T) {
	rt := &fakeRuntime{}
	d := newTestDriver(Options{}, rt)
	assert.False(t, d.Running())

	first, err := d.Start()
	require.NoError(t, err)
	second, err := d.Start()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, rt.runs)
	assert.True(t, d.Running())
}

func TestStartFailure(t *testing.T) {
	rt := &fakeRuntime{runErrs: []error{errors.New("driver missing")}}
	d := newTestDriver(Options{}, rt)

	_, err := d.Start()
	assert.ErrorIs(t, err, ErrEngineUnavailable)
	assert.Contains(t, err.Error(), "driver missing")
	assert.False(t, d.Running())
}

func TestBrowserType(t *testing.T) {
	d := newTestDriver(Options{}, &fakeRuntime{})

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: "chromium"},
		{name: "chromium", want: "chromium"},
		{name: "Firefox", want: "firefox"},
		{name: " webkit ", want: "webkit"},
		{name: "opera", wantErr: true},
	}
	for _, tt := range tests {
		bt, err := d.BrowserType(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, bt.Name())
	}

	types, err := d.BrowserTypes()
	require.NoError(t, err)
	assert.Len(t, types, 3)
	assert.Equal(t, "pixel", d.Devices()["Pixel 5"].UserAgent)
}

func TestStop(t *testing.T) {
	rt := &fakeRuntime{}
	d := newTestDriver(Options{}, rt)

	require.NoError(t, d.Stop())
	assert.Equal(t, 0, rt.stops)

	_, err := d.Start()
	require.NoError(t, err)
	require.NoError(t, d.Stop())
	assert.Equal(t, 1, rt.stops)
	assert.False(t, d.Running())

	rt.stopErr = errors.New("boom")
	_, err = d.Start()
	require.NoError(t, err)
	assert.Error(t, d.Stop())
	assert.False(t, d.Running())
}

func TestBootstrap(t *testing.T) {
	t.Run("driver already present", func(t *testing.T) {
		rt := &fakeRuntime{}
		d := newTestDriver(Options{AutoInstall: true}, rt)

		require.NoError(t, d.Bootstrap())
		assert.Empty(t, rt.installs)
		assert.True(t, d.Running())
	})

	t.Run("installs then retries", func(t *testing.T) {
		rt := &fakeRuntime{runErrs: []error{errors.New("not installed")}}
		d := newTestDriver(Options{AutoInstall: true, BrowserType: "Firefox", DriverDirectory: "/opt/pw"}, rt)

		require.NoError(t, d.Bootstrap())
		require.Len(t, rt.installs, 1)
		assert.Equal(t, []string{"firefox"}, rt.installs[0].Browsers)
		assert.False(t, rt.installs[0].SkipInstallBrowsers)
		assert.Equal(t, "/opt/pw", rt.installs[0].DriverDirectory)
		assert.Equal(t, 2, rt.runs)
		assert.True(t, d.Running())
	})

	t.Run("install disabled", func(t *testing.T) {
		rt := &fakeRuntime{runErrs: []error{errors.New("not installed")}}
		d := newTestDriver(Options{AutoInstall: false}, rt)

		err := d.Bootstrap()
		assert.ErrorIs(t, err, ErrEngineUnavailable)
		assert.Empty(t, rt.installs)
		assert.False(t, d.Running())
	})

	t.Run("install fails", func(t *testing.T) {
		rt := &fakeRuntime{
			runErrs:    []error{errors.New("not installed")},
			installErr: errors.New("network down"),
		}
		d := newTestDriver(Options{AutoInstall: true}, rt)

		err := d.Bootstrap()
		assert.ErrorIs(t, err, ErrEngineUnavailable)
		assert.Contains(t, err.Error(), "network down")
		assert.Equal(t, 1, rt.runs)
	})

	t.Run("still broken after install", func(t *testing.T) {
		rt := &fakeRuntime{runErrs: []error{errors.New("a"), errors.New("b")}}
		d := newTestDriver(Options{AutoInstall: true}, rt)

		err := d.Bootstrap()
		assert.ErrorIs(t, err, ErrEngineUnavailable)
		assert.False(t, d.Running())

		// A later request may still succeed.
		_, err = d.Start()
		assert.NoError(t, err)
	})
}
