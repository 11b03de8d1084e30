// Package protocol implements the line-delimited JSON wire format spoken by
// browserd on stdin/stdout.
//
// Requests:
//
//	{"id": "1", "method": "ping", "params": {}}
//	{"id": "2", "method": "exec", "params": {"args": ["await page.goto('https://example.com')"], "env": {"K": "v"}}}
//	{"id": "3", "method": "close", "params": {}}
//
// Responses:
//
//	{"id": "2", "ok": true, "stdout": [], "stderr": [], "state": {"pageUrl": "https://example.com/"}}
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Methods understood by the worker.
const (
	MethodPing  = "ping"
	MethodExec  = "exec"
	MethodClose = "close"
)

// Request is one decoded command. ID is kept verbatim so the response can echo
// it exactly as the caller sent it (string or number).
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`

	// Invalid is set by the decoder for requests that can be addressed but
	// not read, such as oversized lines.
	Invalid error `json:"-"`
}

// ExecParams are the parameters of an exec request.
type ExecParams struct {
	Args []string
	// Env maps keys to values; a nil value means "unset".
	Env map[string]*string
}

// ParseExecParams extracts exec parameters. Absent params yield empty args.
// Non-string env values are stringified the way a script would see them.
func (r *Request) ParseExecParams() (ExecParams, error) {
	var p ExecParams
	if len(r.Params) == 0 {
		return p, nil
	}

	params := gjson.ParseBytes(r.Params)
	if params.Type == gjson.Null {
		return p, nil
	}
	if !params.IsObject() {
		return p, fmt.Errorf("params must be an object")
	}

	args := params.Get("args")
	switch {
	case !args.Exists() || args.Type == gjson.Null:
	case args.IsArray():
		for _, a := range args.Array() {
			if a.Type != gjson.String {
				return p, fmt.Errorf("params.args must contain only strings")
			}
			p.Args = append(p.Args, a.Str)
		}
	default:
		return p, fmt.Errorf("params.args must be an array of strings")
	}

	env := params.Get("env")
	if env.Exists() && env.IsObject() {
		p.Env = make(map[string]*string)
		env.ForEach(func(key, value gjson.Result) bool {
			p.Env[key.String()] = stringify(value)
			return true
		})
	}

	return p, nil
}

// stringify converts a JSON value into an environment string, nil for null.
func stringify(v gjson.Result) *string {
	var s string
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		s = v.Str
	case gjson.True:
		s = "true"
	case gjson.False:
		s = "false"
	case gjson.Number:
		s = v.Raw
	default:
		if v.IsArray() {
			parts := make([]byte, 0, len(v.Raw))
			for i, item := range v.Array() {
				if i > 0 {
					parts = append(parts, ',')
				}
				if str := stringify(item); str != nil {
					parts = append(parts, *str...)
				}
			}
			s = string(parts)
		} else {
			s = "[object Object]"
		}
	}
	return &s
}

// IDString renders the request id for logs.
func (r *Request) IDString() string {
	return gjson.ParseBytes(r.ID).String()
}

// Response is one reply. Stdout and Stderr are emitted when non-nil, even if
// empty, and omitted otherwise.
type Response struct {
	ID     json.RawMessage
	OK     bool
	Stdout []string
	Stderr []string
	Error  string
	State  interface{}
}

type wireResponse struct {
	ID     json.RawMessage `json:"id"`
	OK     bool            `json:"ok"`
	Stdout *[]string       `json:"stdout,omitempty"`
	Stderr *[]string       `json:"stderr,omitempty"`
	Error  string          `json:"error,omitempty"`
	State  interface{}     `json:"state,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{
		ID:    r.ID,
		OK:    r.OK,
		Error: r.Error,
		State: r.State,
	}
	if r.Stdout != nil {
		w.Stdout = &r.Stdout
	}
	if r.Stderr != nil {
		w.Stderr = &r.Stderr
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. Used by the client side.
func (r *Response) UnmarshalJSON(data []byte) error {
	var w struct {
		ID     json.RawMessage `json:"id"`
		OK     bool            `json:"ok"`
		Stdout []string        `json:"stdout"`
		Stderr []string        `json:"stderr"`
		Error  string          `json:"error"`
		State  json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.ID = w.ID
	r.OK = w.OK
	r.Stdout = w.Stdout
	r.Stderr = w.Stderr
	r.Error = w.Error
	if len(w.State) > 0 && string(w.State) != "null" {
		r.State = w.State
	}
	return nil
}

// Success returns an ok response for req.
func Success(req *Request) *Response {
	return &Response{ID: req.ID, OK: true}
}

// Rejected returns a failed response for a request that was never run. Output
// arrays are present but empty.
func Rejected(req *Request, msg string) *Response {
	return &Response{
		ID:     req.ID,
		OK:     false,
		Error:  msg,
		Stdout: []string{},
		Stderr: []string{},
	}
}

// Failure returns a failed response carrying msg in both error and stderr.
func Failure(req *Request, msg string) *Response {
	return &Response{
		ID:     req.ID,
		OK:     false,
		Error:  msg,
		Stdout: []string{},
		Stderr: []string{msg},
	}
}
