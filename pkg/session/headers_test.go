package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/browserd/pkg/session/sessiontest"
)

func TestExtraHeadersFromEnv(t *testing.T) {
	tests := []struct {
		name string
		env  sessiontest.Env
		want map[string]string
	}{
		{name: "nothing set", env: sessiontest.Env{}},
		{
			name: "name and value",
			env:  sessiontest.Env{HeaderNameEnv: "Authorization", HeaderValueEnv: "Bearer t"},
			want: map[string]string{"Authorization": "Bearer t"},
		},
		{
			name: "name and value win over json",
			env: sessiontest.Env{
				HeaderNameEnv:   "X-One",
				HeaderValueEnv:  "1",
				ExtraHeadersEnv: `{"X-Two":"2"}`,
			},
			want: map[string]string{"X-One": "1"},
		},
		{
			name: "name without value falls back to json",
			env:  sessiontest.Env{HeaderNameEnv: "X-One", ExtraHeadersEnv: `{"X-Two":"2"}`},
			want: map[string]string{"X-Two": "2"},
		},
		{
			name: "json values are stringified",
			env:  sessiontest.Env{ExtraHeadersEnv: `{"X-N":5,"X-B":true,"X-Null":null}`},
			want: map[string]string{"X-N": "5", "X-B": "true"},
		},
		{name: "invalid json", env: sessiontest.Env{ExtraHeadersEnv: `{oops`}},
		{name: "json array", env: sessiontest.Env{ExtraHeadersEnv: `["a"]`}},
		{name: "empty object", env: sessiontest.Env{ExtraHeadersEnv: `{}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtraHeadersFromEnv(tt.env))
		})
	}
}

func TestMergeHeaders(t *testing.T) {
	assert.Nil(t, MergeHeaders(nil, nil))
	assert.Equal(t,
		map[string]string{"A": "base", "B": "caller", "C": "caller"},
		MergeHeaders(map[string]string{"A": "base", "B": "base"}, map[string]string{"B": "caller", "C": "caller"}),
	)
}
