package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 30*24*time.Hour, cfg.ExtendTime())
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("GATEKEEP_SESSION_REFRESH_PERIOD", "1h")
	t.Setenv("GATEKEEP_SESSION_COOKIE_NAME", "__Host-gk")
	t.Setenv("GATEKEEP_SESSION_COOKIE_SECURE", "false")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.RefreshPeriod)
	assert.Equal(t, 2*time.Hour, cfg.ExtendTime())
	assert.Equal(t, "__Host-gk", cfg.CookieName)
	assert.False(t, cfg.CookieSecure)
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unparsable duration": {"GATEKEEP_SESSION_REFRESH_PERIOD": "soon"},
		"too short":           {"GATEKEEP_SESSION_REFRESH_PERIOD": "30s"},
		"negative":            {"GATEKEEP_SESSION_REFRESH_PERIOD": "-5m"},
		"cookie with space":   {"GATEKEEP_SESSION_COOKIE_NAME": "my session"},
		"bad bool":            {"GATEKEEP_SESSION_COOKIE_SECURE": "maybe"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := LoadConfigFromEnv()
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}
