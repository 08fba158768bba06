package models

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvironment(t *testing.T) {
	env, err := ParseEnvironment("LIVE")
	require.NoError(t, err)
	assert.Equal(t, Live, env)

	env, err = ParseEnvironment(" sandbox ")
	require.NoError(t, err)
	assert.Equal(t, Sandbox, env)

	_, err = ParseEnvironment("prod")
	assert.Error(t, err)
}

func TestResolveEnvironment(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		vars   map[string]string
		cookie string
		want   Environment
	}{
		{name: "route variable", path: "/webhooks/live", vars: map[string]string{"env": "live"}, want: Live},
		{name: "first segment", path: "/live/transactions", want: Live},
		{name: "cookie", path: "/transactions", cookie: "live", want: Live},
		{name: "invalid cookie falls back", path: "/transactions", cookie: "staging", want: Sandbox},
		{name: "default", path: "/", want: Sandbox},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.vars != nil {
				r = mux.SetURLVars(r, tt.vars)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: EnvironmentCookie, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, ResolveEnvironment(r))
		})
	}
}
