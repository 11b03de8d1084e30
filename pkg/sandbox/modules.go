package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"

	"github.com/entrhq/browserd/pkg/security/workspace"
)

// PlaywrightModule is the name scripts use to require the browser types.
const PlaywrightModule = "playwright"

// browserTypeNames are the launchers exposed as globals and by the
// playwright module.
var browserTypeNames = []string{"chromium", "firefox", "webkit"}

// newRegistry builds the require registry for one exec. Files resolve only
// inside the working directory; node_modules lookups that climb above it
// behave as if the module does not exist.
func (sb *Sandbox) newRegistry() *require.Registry {
	return require.NewRegistry(require.WithLoader(sb.loadSource))
}

func (sb *Sandbox) loadSource(path string) ([]byte, error) {
	data, err := sb.guard.ReadFile(path)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, require.ModuleFileDoesNotExistError
	case errors.Is(err, workspace.ErrOutsideWorkspace) && inNodeModules(path):
		return nil, require.ModuleFileDoesNotExistError
	default:
		return nil, err
	}
}

func inNodeModules(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "node_modules" {
			return true
		}
	}
	return false
}

// playwrightModule fills the exports of require("playwright").
func (b *binder) playwrightModule(_ *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	_ = exports.Set("devices", b.deviceDescriptors())
	for _, name := range browserTypeNames {
		_ = exports.Set(name, b.browserTypeByName(name))
	}
}
