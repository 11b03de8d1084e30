package session

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Environment variables consulted for extra request headers.
const (
	HeaderNameEnv   = "PW_HEADER_NAME"
	HeaderValueEnv  = "PW_HEADER_VALUE"
	ExtraHeadersEnv = "PW_EXTRA_HEADERS"
)

// ExtraHeadersFromEnv derives extra HTTP headers from the environment.
// PW_HEADER_NAME with PW_HEADER_VALUE takes precedence; otherwise
// PW_EXTRA_HEADERS is parsed as a JSON object. Returns nil when neither
// yields headers.
func ExtraHeadersFromEnv(env Env) map[string]string {
	name, _ := env.Lookup(HeaderNameEnv)
	value, _ := env.Lookup(HeaderValueEnv)
	if name = strings.TrimSpace(name); name != "" && value != "" {
		return map[string]string{name: value}
	}

	raw, ok := env.Lookup(ExtraHeadersEnv)
	if !ok || strings.TrimSpace(raw) == "" || !gjson.Valid(raw) {
		return nil
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil
	}

	headers := make(map[string]string)
	doc.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		headers[key.String()] = value.String()
		return true
	})
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// MergeHeaders layers caller headers over base. Caller values win.
func MergeHeaders(base, caller map[string]string) map[string]string {
	if len(base) == 0 && len(caller) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(caller))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range caller {
		merged[k] = v
	}
	return merged
}
