/*
Package configs is responsible for loading and parsing the application's configuration settings.

Settings come from three layers, later ones winning: built-in defaults, an optional TOML file
named by NYSC_CONFIG_FILE, and operating system environment variables (a .env file in the
working directory is loaded into the environment first, without overriding what is set).
*/
package configs

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ConfigFileEnv names the environment variable pointing at the optional TOML file.
const ConfigFileEnv = "NYSC_CONFIG_FILE"

// DefaultAdminEmail is the sentinel address that makes an Official admin-eligible.
const DefaultAdminEmail = "admin@nysc.gov.ng"

// ClientConfig contains everything the command-line client needs.
type ClientConfig struct {
	Environment string
	LogLevel    string

	// APIBaseURL is the remote service root, e.g. http://localhost:8000.
	APIBaseURL string

	// StatePath is the SQLite file holding the session and checklist.
	StatePath string

	// AdminEmail is the sentinel address of the admin policy. Empty disables the Official clause.
	AdminEmail string

	// Per-kind request budgets.
	AskTimeout     time.Duration
	AuthTimeout    time.Duration
	ProfileTimeout time.Duration
	FeedTimeout    time.Duration
	PortalTimeout  time.Duration
	AdminTimeout   time.Duration

	PollInterval time.Duration
}

// ServerConfig contains all configuration parameters required for the development server to run.
type ServerConfig struct {
	// General Server Settings
	Environment string
	Port        int
	LogLevel    string

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string
	TokenTTL       time.Duration

	// AuthRateLimit is the sustained requests per second allowed per IP on auth and ask routes.
	AuthRateLimit float64
	AuthRateBurst int

	// S3 Storage Settings. Storage is disabled unless all four are set.
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Database Settings. Empty means the in-memory store.
	DatabaseDSN string

	// Assistant behavior.
	AskLatency      time.Duration
	MaintenanceMode bool
}

// StorageEnabled reports whether every S3 setting is present.
func (c *ServerConfig) StorageEnabled() bool {
	return c.S3BucketName != "" && c.S3Endpoint != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// fileConfig is the TOML layout. Every value is optional.
type fileConfig struct {
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`

	Client struct {
		APIBaseURL   string `toml:"api_base_url"`
		StatePath    string `toml:"state_path"`
		AdminEmail   string `toml:"admin_email"`
		PollInterval string `toml:"poll_interval"`
		Timeouts     struct {
			Ask     string `toml:"ask"`
			Auth    string `toml:"auth"`
			Profile string `toml:"profile"`
			Feed    string `toml:"feed"`
			Portal  string `toml:"portal"`
			Admin   string `toml:"admin"`
		} `toml:"timeouts"`
	} `toml:"client"`

	Server struct {
		Port            int      `toml:"port"`
		AllowedOrigins  []string `toml:"allowed_origins"`
		TokenTTL        string   `toml:"token_ttl"`
		RateLimit       float64  `toml:"rate_limit"`
		RateBurst       int      `toml:"rate_burst"`
		DatabaseURL     string   `toml:"database_url"`
		S3BucketName    string   `toml:"s3_bucket_name"`
		S3Endpoint      string   `toml:"s3_endpoint"`
		AskLatency      string   `toml:"ask_latency"`
		MaintenanceMode bool     `toml:"maintenance_mode"`
	} `toml:"server"`
}

// loadFile reads the TOML file named by NYSC_CONFIG_FILE, if any.
func loadFile() (*fileConfig, error) {
	_ = godotenv.Load()

	fc := &fileConfig{}
	path := strings.TrimSpace(os.Getenv(ConfigFileEnv))
	if path == "" {
		return fc, nil
	}
	if _, err := toml.DecodeFile(path, fc); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return fc, nil
}

// str returns the env value for key, else fileVal, else def.
func str(key, fileVal, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if fileVal != "" {
		return fileVal
	}
	return def
}

func duration(key, fileVal string, def time.Duration) (time.Duration, error) {
	raw := str(key, fileVal, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// LoadClientConfig reads the client configuration.
func LoadClientConfig() (*ClientConfig, error) {
	fc, err := loadFile()
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		Environment: str("ENVIRONMENT", fc.Environment, "development"),
		LogLevel:    str("LOG_LEVEL", fc.LogLevel, "warn"),
		APIBaseURL:  str("NYSC_API_URL", fc.Client.APIBaseURL, "http://localhost:8000"),
		StatePath:   str("NYSC_STATE_PATH", fc.Client.StatePath, defaultStatePath()),
	}

	// An explicitly empty NYSC_ADMIN_EMAIL disables the sentinel clause.
	if v, ok := os.LookupEnv("NYSC_ADMIN_EMAIL"); ok {
		cfg.AdminEmail = strings.TrimSpace(v)
	} else if fc.Client.AdminEmail != "" {
		cfg.AdminEmail = fc.Client.AdminEmail
	} else {
		cfg.AdminEmail = DefaultAdminEmail
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("NYSC_API_URL must be an http(s) URL, got %q", cfg.APIBaseURL)
	}

	t := fc.Client.Timeouts
	durations := []struct {
		dst  *time.Duration
		key  string
		file string
		def  time.Duration
	}{
		{&cfg.AskTimeout, "NYSC_ASK_TIMEOUT", t.Ask, 45 * time.Second},
		{&cfg.AuthTimeout, "NYSC_AUTH_TIMEOUT", t.Auth, 60 * time.Second},
		{&cfg.ProfileTimeout, "NYSC_PROFILE_TIMEOUT", t.Profile, 10 * time.Second},
		{&cfg.FeedTimeout, "NYSC_FEED_TIMEOUT", t.Feed, 10 * time.Second},
		{&cfg.PortalTimeout, "NYSC_PORTAL_TIMEOUT", t.Portal, 10 * time.Second},
		{&cfg.AdminTimeout, "NYSC_ADMIN_TIMEOUT", t.Admin, 10 * time.Second},
		{&cfg.PollInterval, "NYSC_POLL_INTERVAL", fc.Client.PollInterval, 30 * time.Second},
	}
	for _, d := range durations {
		v, err := duration(d.key, d.file, d.def)
		if err != nil {
			return nil, err
		}
		if v == 0 {
			return nil, fmt.Errorf("%s must be positive", d.key)
		}
		*d.dst = v
	}

	return cfg, nil
}

// defaultStatePath is nyscmate/state.db under the user config directory, or the working
// directory when that cannot be determined.
func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "nyscmate-state.db"
	}
	return filepath.Join(dir, "nyscmate", "state.db")
}

// LoadServerConfig reads and parses the development server configuration.
// It provides default values for each configuration item and performs necessary type conversions and validation.
func LoadServerConfig() (*ServerConfig, error) {
	fc, err := loadFile()
	if err != nil {
		return nil, err
	}
	fs := fc.Server

	cfg := &ServerConfig{
		Environment: str("ENVIRONMENT", fc.Environment, "development"),
		LogLevel:    str("LOG_LEVEL", fc.LogLevel, "info"),
	}

	// Port
	defPort := "8000"
	if fs.Port != 0 {
		defPort = strconv.Itoa(fs.Port)
	}
	port, err := strconv.Atoi(str("PORT", "", defPort))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// AllowedOrigins
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = append([]string{}, fs.AllowedOrigins...)
	}

	// JWTSecret
	jwtSecret := os.Getenv("JWT_SECRET")
	if cfg.Environment == "development" {
		if jwtSecret == "" {
			jwtSecret = "your_default_insecure_secret_key_change_me"
		}
	} else if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
	}
	cfg.JWTSecret = jwtSecret

	if cfg.TokenTTL, err = duration("TOKEN_TTL", fs.TokenTTL, 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenTTL == 0 {
		return nil, errors.New("TOKEN_TTL must be positive")
	}

	// Rate limiting
	cfg.AuthRateLimit = 1
	if fs.RateLimit > 0 {
		cfg.AuthRateLimit = fs.RateLimit
	}
	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		if cfg.AuthRateLimit, err = strconv.ParseFloat(v, 64); err != nil || cfg.AuthRateLimit <= 0 {
			return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT value %q", v)
		}
	}
	cfg.AuthRateBurst = 10
	if fs.RateBurst > 0 {
		cfg.AuthRateBurst = fs.RateBurst
	}
	if v := os.Getenv("AUTH_RATE_BURST"); v != "" {
		if cfg.AuthRateBurst, err = strconv.Atoi(v); err != nil || cfg.AuthRateBurst <= 0 {
			return nil, fmt.Errorf("invalid AUTH_RATE_BURST value %q", v)
		}
	}

	// --- S3 Storage Settings ---
	cfg.S3BucketName = str("S3_BUCKET_NAME", fs.S3BucketName, "")
	cfg.S3Endpoint = str("S3_ENDPOINT", fs.S3Endpoint, "")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

	// --- Database Settings ---
	cfg.DatabaseDSN = str("DATABASE_URL", fs.DatabaseURL, "")
	if cfg.DatabaseDSN == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required in %s environment", cfg.Environment)
	}

	// --- Assistant ---
	if cfg.AskLatency, err = duration("ASK_LATENCY", fs.AskLatency, 0); err != nil {
		return nil, err
	}
	cfg.MaintenanceMode = fs.MaintenanceMode
	if v := os.Getenv("MAINTENANCE_MODE"); v != "" {
		if cfg.MaintenanceMode, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid MAINTENANCE_MODE value %q: %w", v, err)
		}
	}

	return cfg, nil
}
