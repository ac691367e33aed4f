package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resetConfig(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { SetConfig(nil) })
}

func TestSetConfigSanitizes(t *testing.T) {
	resetConfig(t)

	cfg := SetConfig(&Config{
		AllowedOrigins: []string{" HTTP://Example.com ", "not a url", "http://example.com", ""},
		RateLimit:      RateLimitConfig{Burst: -1},
	})

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, defaultSendBufferSize, cfg.SendBufferSize)
	assert.Equal(t, defaultStoreTimeout, cfg.StoreTimeout)
	assert.Equal(t, defaultRateBurst, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, []string{"http://example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, cfg, CurrentConfig())
}

func TestCurrentConfigIsACopy(t *testing.T) {
	resetConfig(t)

	cfg := CurrentConfig()
	cfg.AllowedOrigins[0] = "http://evil.example"

	assert.NotEqual(t, "http://evil.example", CurrentConfig().AllowedOrigins[0])
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, ParseOrigins("  "))
	assert.Equal(t,
		[]string{"http://a.example", "https://b.example"},
		ParseOrigins("http://a.example, https://b.example"))
}

func TestCheckOrigin(t *testing.T) {
	resetConfig(t)
	SetConfig(&Config{AllowedOrigins: []string{"https://campus.example"}})

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "allowed", origin: "https://campus.example", want: true},
		{name: "case insensitive", origin: "HTTPS://Campus.Example", want: true},
		{name: "other host", origin: "https://other.example", want: false},
		{name: "scheme mismatch", origin: "http://campus.example", want: false},
		{name: "missing", origin: "", want: false},
		{name: "malformed", origin: "campus.example", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, checkOrigin(req))
		})
	}
}

func TestCheckOriginWildcard(t *testing.T) {
	resetConfig(t)
	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://anything.example")
	assert.True(t, checkOrigin(req))

	req.Header.Del("Origin")
	assert.False(t, checkOrigin(req), "an origin header is still required")
}
