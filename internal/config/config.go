// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Printer  PrinterConfig  `mapstructure:"printer"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DatabaseConfig represents the roster database configuration
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// PrinterConfig represents print orchestration configuration
type PrinterConfig struct {
	DefaultBackend       string        `mapstructure:"default_backend"`
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	DispatchTimeout      time.Duration `mapstructure:"dispatch_timeout"`
	BatchDelay           time.Duration `mapstructure:"batch_delay"`
	RenderTimeout        time.Duration `mapstructure:"render_timeout"`
	CleanupGrace         time.Duration `mapstructure:"cleanup_grace"`
	DiscoveryTimeout     time.Duration `mapstructure:"discovery_timeout"`
	TempDir              string        `mapstructure:"temp_dir"`
	RendererPath         string        `mapstructure:"renderer_path"`
	RendererCandidates   []string      `mapstructure:"renderer_candidates"`
	PrintCommand         string        `mapstructure:"print_command"`
	CardWidthChars       int           `mapstructure:"card_width_chars"`
	ThermalFingerprints  []string      `mapstructure:"thermal_fingerprints"`
	DocumentFingerprints []string      `mapstructure:"document_fingerprints"`
	USB                  USBConfig     `mapstructure:"usb"`
	Serial               SerialConfig  `mapstructure:"serial"`
}

// USBConfig represents USB bus scanning configuration
type USBConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	VendorIDs []string `mapstructure:"vendor_ids"`
	Debug     bool     `mapstructure:"debug"`
}

// SerialConfig represents serial port configuration
type SerialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/card-print-service")

	// Environment variable support
	v.SetEnvPrefix("CARD_PRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// A missing file is fine, defaults and env cover a bare install
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "registration")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.migrations_path", "migrations")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Printer defaults
	v.SetDefault("printer.default_backend", "thermal")
	v.SetDefault("printer.handshake_timeout", "5s")
	v.SetDefault("printer.dispatch_timeout", "30s")
	v.SetDefault("printer.batch_delay", "1s")
	v.SetDefault("printer.render_timeout", "30s")
	v.SetDefault("printer.cleanup_grace", "5s")
	v.SetDefault("printer.discovery_timeout", "10s")
	v.SetDefault("printer.temp_dir", "./temp")
	v.SetDefault("printer.renderer_path", "")
	v.SetDefault("printer.renderer_candidates", []string{
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
		`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"google-chrome",
		"chromium",
		"chrome",
	})
	v.SetDefault("printer.print_command", "")
	v.SetDefault("printer.card_width_chars", 32)
	v.SetDefault("printer.thermal_fingerprints", []string{"smart", "31s", "card", "thermal", "idp"})
	v.SetDefault("printer.document_fingerprints", []string{"brother", "mfc"})
	v.SetDefault("printer.usb.enabled", true)
	v.SetDefault("printer.usb.vendor_ids", []string{})
	v.SetDefault("printer.usb.debug", false)
	v.SetDefault("printer.serial.enabled", true)
	v.SetDefault("printer.serial.baud_rate", 9600)
	v.SetDefault("printer.serial.data_bits", 8)
	v.SetDefault("printer.serial.stop_bits", 1)
	v.SetDefault("printer.serial.parity", "none")

	// App defaults
	v.SetDefault("app.name", "card-print-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validBackends := []string{"thermal", "document"}
	if !contains(validBackends, config.Printer.DefaultBackend) {
		return fmt.Errorf("printer.default_backend must be one of: %v", validBackends)
	}

	if config.Printer.HandshakeTimeout <= 0 {
		return fmt.Errorf("printer.handshake_timeout must be positive")
	}
	if config.Printer.RenderTimeout <= 0 {
		return fmt.Errorf("printer.render_timeout must be positive")
	}
	if config.Printer.BatchDelay < 0 {
		return fmt.Errorf("printer.batch_delay must not be negative")
	}
	if config.Printer.TempDir == "" {
		return fmt.Errorf("printer.temp_dir is required")
	}
	if config.Printer.CardWidthChars < 16 {
		return fmt.Errorf("printer.card_width_chars must be at least 16")
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
