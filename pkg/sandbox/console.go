package sandbox

import (
	"strings"

	"github.com/dop251/goja"
)

// capture collects the console output of one exec.
type capture struct {
	stdout []string
	stderr []string
}

func newCapture() *capture {
	return &capture{stdout: []string{}, stderr: []string{}}
}

// console builds the console object. log, info and debug write to stdout;
// warn and error write to stderr. Each call produces one line.
func (c *capture) console(vm *goja.Runtime) *goja.Object {
	stringify, _ := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))

	format := func(args []goja.Value) string {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = formatValue(a, stringify)
		}
		return strings.Join(parts, " ")
	}
	out := func(call goja.FunctionCall) goja.Value {
		c.stdout = append(c.stdout, format(call.Arguments))
		return goja.Undefined()
	}
	errOut := func(call goja.FunctionCall) goja.Value {
		c.stderr = append(c.stderr, format(call.Arguments))
		return goja.Undefined()
	}

	obj := vm.NewObject()
	_ = obj.Set("log", out)
	_ = obj.Set("info", out)
	_ = obj.Set("debug", out)
	_ = obj.Set("warn", errOut)
	_ = obj.Set("error", errOut)
	return obj
}

func formatValue(v goja.Value, stringify goja.Callable) string {
	if goja.IsString(v) {
		return v.String()
	}
	if stringify == nil {
		return v.String()
	}
	res, err := stringify(goja.Undefined(), v)
	if err != nil {
		return v.String()
	}
	if res == nil || goja.IsUndefined(res) {
		return ""
	}
	return res.String()
}
