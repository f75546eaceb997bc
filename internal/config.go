package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Content storage backends.
const (
	StorageGitHub = "github"
	StorageFS     = "fs"
)

// Document store backends.
const (
	DocStoreSQLite = "sqlite"
	DocStoreRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app" toml:"app"`
	Storage  StorageConfig     `yaml:"storage" toml:"storage"`
	GitHub   GitHubConfig      `yaml:"github" toml:"github"`
	Posts    PostsConfig       `yaml:"posts" toml:"posts"`
	DocStore DocStoreConfig    `yaml:"docstore" toml:"docstore"`
	Auth     AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Storage.Backend == StorageGitHub {
		if err := c.GitHub.Validate(); err != nil {
			return fmt.Errorf("github: %w", err)
		}
	}
	if err := c.DocStore.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where post files live.
type StorageConfig struct {
	Backend string   `yaml:"backend" toml:"backend"`
	FS      FSConfig `yaml:"fs" toml:"fs"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StorageGitHub, StorageFS)),
	); err != nil {
		return err
	}
	if c.Backend == StorageFS {
		return c.FS.Validate()
	}
	return nil
}

// FSConfig holds the local content directory used by the fs backend.
type FSConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the fs backend configuration.
func (c *FSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// GitHubConfig locates the content repository on GitHub.
type GitHubConfig struct {
	APIURL    string `yaml:"api_url" toml:"api_url"`
	Owner     string `yaml:"owner" toml:"owner"`
	Repo      string `yaml:"repo" toml:"repo"`
	Token     string `yaml:"token" toml:"token"`
	Branch    string `yaml:"branch" toml:"branch"`
	UserAgent string `yaml:"user_agent" toml:"user_agent"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Token, validation.Required),
	)
}

// PostsConfig controls how posts are laid out and defaulted.
type PostsConfig struct {
	Dir           string `yaml:"dir" toml:"dir"`
	DefaultAuthor string `yaml:"default_author" toml:"default_author"`
}

// DocStoreConfig selects the comment and subscriber store.
type DocStoreConfig struct {
	Backend string       `yaml:"backend" toml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite" toml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis" toml:"redis"`
}

// Validate validates the document store configuration.
func (c *DocStoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(DocStoreSQLite, DocStoreRedis)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case DocStoreSQLite:
		return c.SQLite.Validate()
	default:
		return c.Redis.Validate()
	}
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
}

// Validate validates the Redis configuration.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how admin routes are guarded:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": a Bearer token or an admin session cookie is required.
//
// AdminPassword enables the login endpoint; sessions are signed with
// SessionSecret.
type AuthConfig struct {
	Mode          string   `yaml:"mode" toml:"mode"`
	Token         string   `yaml:"token" toml:"token"`
	AdminPassword string   `yaml:"admin_password" toml:"admin_password"`
	SessionSecret string   `yaml:"session_secret" toml:"session_secret"`
	SessionTTL    Duration `yaml:"session_ttl" toml:"session_ttl"`
	SecureCookie  bool     `yaml:"secure_cookie" toml:"secure_cookie"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	if c.AdminPassword != "" && len(c.SessionSecret) < 32 {
		return fmt.Errorf("auth: admin_password is set but session_secret is shorter than 32 bytes")
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// Duration is a time.Duration read from strings like "24h".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend: StorageGitHub,
			FS: FSConfig{
				Path: "./content",
			},
		},
		GitHub: GitHubConfig{
			APIURL:    "https://api.github.com",
			Branch:    "main",
			UserAgent: "quill-cms",
		},
		Posts: PostsConfig{
			Dir:           "posts",
			DefaultAuthor: "Admin",
		},
		DocStore: DocStoreConfig{
			Backend: DocStoreSQLite,
			SQLite: SQLiteConfig{
				Path: "./quill.db",
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Auth: AuthConfig{
			Mode:       AuthModeDisabled,
			SessionTTL: Duration(24 * time.Hour),
		},
	}
}
