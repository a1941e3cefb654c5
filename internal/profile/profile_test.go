package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnvVars() {
	envVars := []string{
		"EVENTBOT_TELEGRAM_TOKEN",
		"TELEGRAM_BOT_TOKEN",
		"EVENTBOT_PAGE_SIZE",
		"EVENTBOT_SESSION_TTL",
	}
	for _, envVar := range envVars {
		os.Unsetenv(envVar)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnvVars()

	p := &Profile{}
	p.FromEnv()

	require.Empty(t, p.TelegramToken)
	require.Zero(t, p.PageSize)
	require.Zero(t, p.SessionTTL)
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		check    func(t *testing.T, p *Profile)
	}{
		{
			name:     "EVENTBOT_TELEGRAM_TOKEN",
			envVar:   "EVENTBOT_TELEGRAM_TOKEN",
			envValue: "123456:test-token",
			check: func(t *testing.T, p *Profile) {
				require.Equal(t, "123456:test-token", p.TelegramToken)
			},
		},
		{
			name:     "TELEGRAM_BOT_TOKEN fallback",
			envVar:   "TELEGRAM_BOT_TOKEN",
			envValue: "987654:legacy-token",
			check: func(t *testing.T, p *Profile) {
				require.Equal(t, "987654:legacy-token", p.TelegramToken)
			},
		},
		{
			name:     "EVENTBOT_PAGE_SIZE",
			envVar:   "EVENTBOT_PAGE_SIZE",
			envValue: "10",
			check: func(t *testing.T, p *Profile) {
				require.Equal(t, 10, p.PageSize)
			},
		},
		{
			name:     "EVENTBOT_PAGE_SIZE invalid is ignored",
			envVar:   "EVENTBOT_PAGE_SIZE",
			envValue: "ten",
			check: func(t *testing.T, p *Profile) {
				require.Zero(t, p.PageSize)
			},
		},
		{
			name:     "EVENTBOT_SESSION_TTL",
			envVar:   "EVENTBOT_SESSION_TTL",
			envValue: "15m",
			check: func(t *testing.T, p *Profile) {
				require.Equal(t, 15*time.Minute, p.SessionTTL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			os.Setenv(tt.envVar, tt.envValue)
			defer clearEnvVars()

			p := &Profile{}
			p.FromEnv()
			tt.check(t, p)
		})
	}
}

func TestValidate(t *testing.T) {
	dataDir := t.TempDir()

	p := &Profile{
		Mode:   "demo",
		Data:   dataDir,
		Driver: "sqlite",
	}
	require.NoError(t, p.Validate())

	// Unknown modes fall back to dev.
	require.Equal(t, "dev", p.Mode)
	require.Equal(t, filepath.Join(dataDir, "eventbot_dev.db"), p.DSN)
	require.Equal(t, 5, p.PageSize)
	require.Equal(t, 30*time.Minute, p.SessionTTL)
}

func TestValidateKeepsExplicitDSN(t *testing.T) {
	p := &Profile{
		Mode:   "prod",
		Data:   t.TempDir(),
		Driver: "sqlite",
		DSN:    "/tmp/custom.db",
	}
	require.NoError(t, p.Validate())
	require.Equal(t, "/tmp/custom.db", p.DSN)
}

func TestValidateMissingDataDir(t *testing.T) {
	p := &Profile{
		Mode:   "dev",
		Data:   "/nonexistent/path/for/eventbot",
		Driver: "sqlite",
	}
	require.Error(t, p.Validate())
}
