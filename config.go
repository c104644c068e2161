package users

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Config holds the options consumed by the package
type Config interface {
	GetAppName() string
	GetDatabaseDSN() string
	GetLogLevel() string
	GetLogFormat() string
	GetPasswordHashCost() int
	GetDefaultPerPage() int
	GetMaxPerPage() int
	GetSystemAdmins() []string
	GetMailFrom() string
}

// FileConfig is the TOML backed Config.
type FileConfig struct {
	App           AppConfig           `toml:"app"`
	Database      DatabaseConfig      `toml:"database"`
	Log           LogConfig           `toml:"log"`
	Passwords     PasswordConfig      `toml:"passwords"`
	Listing       ListingConfig       `toml:"listing"`
	Notifications NotificationsConfig `toml:"notifications"`
}

type AppConfig struct {
	Name string `toml:"name"`
}

type DatabaseConfig struct {
	// DSN may reference environment variables, e.g. ${DATABASE_URL}.
	DSN string `toml:"dsn"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type PasswordConfig struct {
	HashCost int `toml:"hash_cost"`
}

type ListingConfig struct {
	DefaultPerPage int `toml:"default_per_page"`
	MaxPerPage     int `toml:"max_per_page"`
}

type NotificationsConfig struct {
	From         string   `toml:"from"`
	SystemAdmins []string `toml:"system_admins"`
}

var _ Config = (*FileConfig)(nil)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *FileConfig {
	return &FileConfig{
		App:      AppConfig{Name: "go-users"},
		Database: DatabaseConfig{DSN: "file::memory:?cache=shared"},
		Log:      LogConfig{Level: "info", Format: "json"},
		Listing:  ListingConfig{MaxPerPage: 100},
		Notifications: NotificationsConfig{
			From: "no-reply@example.com",
		},
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. A .env file next to
// the config, or in the working directory, is loaded first and ${VAR}
// references are expanded before decoding. An empty path returns the
// defaults.
func LoadConfig(path string) (*FileConfig, error) {
	cfg := DefaultConfig()

	loadDotEnv(path)

	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file "+path)
	}

	if err := ParseConfig(string(raw), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseConfig decodes TOML content into cfg after expanding ${VAR}
// references.
func ParseConfig(content string, cfg *FileConfig) error {
	if _, err := toml.Decode(os.ExpandEnv(content), cfg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid config file")
	}
	cfg.normalize()
	return nil
}

func loadDotEnv(path string) {
	if path != "" {
		envPath := filepath.Join(filepath.Dir(path), ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
	}
	_ = godotenv.Load()
}

func (c *FileConfig) normalize() {
	admins := make([]string, 0, len(c.Notifications.SystemAdmins))
	for _, a := range c.Notifications.SystemAdmins {
		if a = strings.TrimSpace(a); a != "" {
			admins = append(admins, a)
		}
	}
	c.Notifications.SystemAdmins = admins

	if c.Listing.DefaultPerPage < 0 {
		c.Listing.DefaultPerPage = 0
	}
	if c.Listing.MaxPerPage < 0 {
		c.Listing.MaxPerPage = 0
	}
}

func (c *FileConfig) GetAppName() string        { return c.App.Name }
func (c *FileConfig) GetDatabaseDSN() string    { return c.Database.DSN }
func (c *FileConfig) GetLogLevel() string       { return c.Log.Level }
func (c *FileConfig) GetLogFormat() string      { return c.Log.Format }
func (c *FileConfig) GetPasswordHashCost() int  { return c.Passwords.HashCost }
func (c *FileConfig) GetDefaultPerPage() int    { return c.Listing.DefaultPerPage }
func (c *FileConfig) GetMaxPerPage() int        { return c.Listing.MaxPerPage }
func (c *FileConfig) GetSystemAdmins() []string { return c.Notifications.SystemAdmins }
func (c *FileConfig) GetMailFrom() string       { return c.Notifications.From }
