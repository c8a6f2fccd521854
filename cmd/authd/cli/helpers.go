package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/taskloop/authd/internal/config"
	"github.com/taskloop/authd/internal/store"
)

// loadConfig builds the effective configuration: built-in defaults, then the
// YAML config file if one was found, then AUTHD_-prefixed environment
// overrides bound through viper.
func loadConfig() *config.Config {
	cfg := config.Default()

	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			slog.Warn("ignoring unreadable config file", "path", path, "error", err)
		} else {
			cfg = *loaded
		}
	}

	if v := viper.GetString("auth.jwt_secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("auth.token_ttl"); v != "" {
		cfg.Auth.TokenTTL = v
	}
	if v := viper.GetStringSlice("auth.admin_emails"); len(v) > 0 {
		cfg.Auth.AdminEmails = v
	}
	if v := viper.GetString("store.driver"); v != "" {
		cfg.Store.Driver = v
	}
	if v := viper.GetString("store.dsn"); v != "" {
		cfg.Store.DSN = v
	}
	if v := viper.GetString("server.host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server.port"); v != 0 {
		cfg.Server.Port = v
	}
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}

	return &cfg
}

// storeConfig resolves the store settings, pointing the default SQLite
// backend at ~/.authd/authd.db when no DSN is configured.
func storeConfig(cfg *config.Config) store.Config {
	sc := store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN}
	if (sc.Driver == "" || sc.Driver == "sqlite") && sc.DSN == "" {
		home, _ := os.UserHomeDir()
		sc.DSN = home + "/.authd/authd.db"
	}
	return sc
}

// jwtSecret returns the configured signing secret, falling back to the
// development-only default with a loud warning.
func jwtSecret(cfg *config.Config, logger *slog.Logger) string {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret
	}
	logger.Warn("no JWT secret configured, using development fallback",
		"hint", "set AUTHD_AUTH_JWT_SECRET or auth.jwt_secret before deploying")
	return config.DevJWTSecret
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
