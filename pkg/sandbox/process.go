package sandbox

import (
	"fmt"
	"os"
	"runtime"

	"github.com/dop251/goja"
)

// processObject is the restricted stand-in for Node's process global.
// env is a snapshot of the guarded environment taken when the exec starts.
func (sb *Sandbox) processObject(vm *goja.Runtime) *goja.Object {
	env := vm.NewObject()
	for k, v := range sb.env.Snapshot() {
		_ = env.Set(k, v)
	}

	platform := runtime.GOOS
	if platform == "windows" {
		platform = "win32"
	}

	argv := []any{os.Args[0]}
	for _, a := range os.Args[1:] {
		argv = append(argv, a)
	}

	proc := vm.NewObject()
	_ = proc.Set("env", env)
	_ = proc.Set("argv", vm.NewArray(argv...))
	_ = proc.Set("platform", platform)
	_ = proc.Set("pid", os.Getpid())
	_ = proc.Set("cwd", func() string { return sb.guard.WorkspaceDir() })
	_ = proc.Set("exit", func(code goja.Value) {
		label := "undefined"
		if code != nil {
			label = code.String()
		}
		panic(vm.NewGoError(fmt.Errorf("process.exit(%s) blocked in persistent session", label)))
	})
	return proc
}
