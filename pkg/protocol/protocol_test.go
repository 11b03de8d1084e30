package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"1","method":"ping","params":{}}`,
		``,
		`   `,
		`not json`,
		`[1,2,3]`,
		`"just a string"`,
		`{"method":"ping"}`,
		`{"id":null,"method":"ping"}`,
		`{"id":0,"method":"ping"}`,
		`{"id":"","method":"ping"}`,
		`{"id":false,"method":"ping"}`,
		`  {"id":7,"method":"exec","params":{"args":["1"]}}  `,
	}, "\n")

	dec := NewDecoder(strings.NewReader(input))

	req, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, `"1"`, string(req.ID))
	assert.Equal(t, MethodPing, req.Method)

	req, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, `7`, string(req.ID))
	assert.Equal(t, MethodExec, req.Method)
	assert.Equal(t, "7", req.IDString())

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderLongLine(t *testing.T) {
	code := strings.Repeat("a", 200*1024)
	line := `{"id":"big","method":"exec","params":{"args":["` + code + `"]}}` + "\n"

	dec := NewDecoder(strings.NewReader(line))
	req, err := dec.Next()
	require.NoError(t, err)

	params, err := req.ParseExecParams()
	require.NoError(t, err)
	require.Len(t, params.Args, 1)
	assert.Len(t, params.Args[0], len(code))
}

func TestDecoderOversizedLine(t *testing.T) {
	huge := strings.Repeat("a", MaxLineSize)
	input := strings.Join([]string{
		`{"id":"big","method":"exec","params":{"args":["` + huge + `"]}}`,
		`{"method":"exec","params":{"args":["` + huge + `"]}}`,
		`{"id":"next","method":"ping"}`,
	}, "\n")

	dec := NewDecoder(strings.NewReader(input))

	req, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, `"big"`, string(req.ID))
	require.Error(t, req.Invalid)
	assert.Contains(t, req.Invalid.Error(), "exceeds")

	req, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, `"next"`, string(req.ID))
	assert.NoError(t, req.Invalid)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeNonStringMethod(t *testing.T) {
	tests := []struct {
		line   string
		method string
	}{
		{`{"id":9,"method":5}`, "5"},
		{`{"id":9,"method":true}`, "true"},
		{`{"id":9}`, ""},
		{`{"id":9,"method":"ping","params":[1]}`, MethodPing},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			req, err := Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, "9", req.IDString())
			assert.Equal(t, tt.method, req.Method)
		})
	}
}

func TestParseExecParams(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		args    []string
		env     map[string]*string
		wantErr bool
	}{
		{name: "absent"},
		{name: "null", params: `null`},
		{name: "empty object", params: `{}`},
		{name: "args", params: `{"args":["a","b"]}`, args: []string{"a", "b"}},
		{name: "null args", params: `{"args":null}`},
		{name: "non-string arg", params: `{"args":["a",1]}`, wantErr: true},
		{name: "args not array", params: `{"args":"a"}`, wantErr: true},
		{name: "params not object", params: `[1]`, wantErr: true},
		{
			name:   "env values",
			params: `{"env":{"S":"x","N":42,"F":1.5,"B":true,"U":null}}`,
			env: map[string]*string{
				"S": strPtr("x"),
				"N": strPtr("42"),
				"F": strPtr("1.5"),
				"B": strPtr("true"),
				"U": nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{ID: json.RawMessage(`"1"`), Method: MethodExec}
			if tt.params != "" {
				req.Params = json.RawMessage(tt.params)
			}

			p, err := req.ParseExecParams()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.args, p.Args)
			if tt.env != nil {
				assert.Equal(t, tt.env, p.Env)
			}
		})
	}
}

func TestResponseMarshal(t *testing.T) {
	t.Run("omits unset fields", func(t *testing.T) {
		resp := Response{ID: json.RawMessage(`"a"`), OK: true}
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a","ok":true}`, string(data))
	})

	t.Run("keeps empty output arrays", func(t *testing.T) {
		resp := Response{
			ID:     json.RawMessage(`3`),
			OK:     true,
			Stdout: []string{},
			Stderr: []string{},
			State:  map[string]interface{}{"pageUrl": nil},
		}
		data, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":3,"ok":true,"stdout":[],"stderr":[],"state":{"pageUrl":null}}`, string(data))
	})

	t.Run("failure", func(t *testing.T) {
		req := &Request{ID: json.RawMessage(`"x"`)}
		data, err := json.Marshal(Failure(req, "boom"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"x","ok":false,"stdout":[],"stderr":["boom"],"error":"boom"}`, string(data))
	})

	t.Run("rejected", func(t *testing.T) {
		req := &Request{ID: json.RawMessage(`"x"`)}
		data, err := json.Marshal(Rejected(req, "Unknown method: nope"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"x","ok":false,"stdout":[],"stderr":[],"error":"Unknown method: nope"}`, string(data))
	})
}

func TestResponseUnmarshal(t *testing.T) {
	var resp Response
	err := json.Unmarshal([]byte(`{"id":"z","ok":false,"stdout":["a"],"stderr":["b"],"error":"e","state":{"pageUrl":"about:blank"}}`), &resp)
	require.NoError(t, err)

	assert.Equal(t, `"z"`, string(resp.ID))
	assert.False(t, resp.OK)
	assert.Equal(t, []string{"a"}, resp.Stdout)
	assert.Equal(t, []string{"b"}, resp.Stderr)
	assert.Equal(t, "e", resp.Error)
	assert.JSONEq(t, `{"pageUrl":"about:blank"}`, string(resp.State.(json.RawMessage)))
}

func TestEncoderConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	payload := strings.Repeat("x", 4096)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := &Response{ID: json.RawMessage(`"c"`), OK: true, Stdout: []string{payload}}
			assert.NoError(t, enc.Encode(resp))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		assert.Equal(t, []string{payload}, resp.Stdout)
	}
}

func strPtr(s string) *string { return &s }
