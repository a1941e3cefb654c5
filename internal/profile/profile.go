package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the bot.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Data is the data directory
	Data string
	// DSN points to where eventbot stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the bot
	Version string

	// TelegramToken is the bot API token. Required to run the transport,
	// not required for the core (tests run without it).
	TelegramToken string
	// PageSize is the number of events shown per list page
	PageSize int
	// SessionTTL is how long an idle conversation session is kept before
	// it is dropped as abandoned
	SessionTTL time.Duration
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables. The token also
// falls back to TELEGRAM_BOT_TOKEN for compatibility with common deployments.
func (p *Profile) FromEnv() {
	if p.TelegramToken == "" {
		p.TelegramToken = getEnvOrDefault("EVENTBOT_TELEGRAM_TOKEN", os.Getenv("TELEGRAM_BOT_TOKEN"))
	}
	if v := os.Getenv("EVENTBOT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PageSize = n
		}
	}
	if v := os.Getenv("EVENTBOT_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.SessionTTL = d
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "eventbot")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/eventbot"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("eventbot_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.PageSize <= 0 {
		p.PageSize = 5
	}
	if p.SessionTTL <= 0 {
		p.SessionTTL = 30 * time.Minute
	}

	return nil
}
