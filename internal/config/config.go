package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// EnvPrefix is the prefix of environment overrides, e.g. SPSYNC_GRAPH_CLIENT_SECRET
const EnvPrefix = "SPSYNC"

// Config represents the entire application configuration
type Config struct {
	Graph       GraphConfig       `mapstructure:"graph"`
	Media       MediaConfig       `mapstructure:"media"`
	Sync        SyncConfig        `mapstructure:"sync"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Types       []domain.TypeSpec `mapstructure:"types"`
}

// GraphConfig contains Microsoft Graph credentials and site settings
type GraphConfig struct {
	Authority       string `mapstructure:"authority"`
	TenantID        string `mapstructure:"tenant_id"`
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	Scope           string `mapstructure:"scope"`
	TokenMargin     string `mapstructure:"token_margin"`
	TokenTimeout    string `mapstructure:"token_timeout"`
	BaseURL         string `mapstructure:"base_url"`
	SiteID          string `mapstructure:"site_id"`
	MediaListID     string `mapstructure:"media_list_id"`
	MediaListName   string `mapstructure:"media_list_name"`
	PageSize        int    `mapstructure:"page_size"`
	MetadataTimeout string `mapstructure:"metadata_timeout"`
	DownloadTimeout string `mapstructure:"download_timeout"`
}

// MediaConfig contains asset storage settings
type MediaConfig struct {
	FolderMarker string      `mapstructure:"folder_marker"`
	MaxSizeMB    int         `mapstructure:"max_size_mb"` // 0 means unlimited
	Storage      string      `mapstructure:"storage"`     // filesystem or minio
	RootDir      string      `mapstructure:"root_dir"`
	BufferSizeMB int         `mapstructure:"buffer_size_mb"`
	MinIO        MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig contains object storage settings
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	Timeout   string `mapstructure:"timeout"`
}

// SyncConfig contains synchronization settings
type SyncConfig struct {
	Interval       string `mapstructure:"interval"` // "0" disables scheduled syncs
	Parallelism    int    `mapstructure:"parallelism"`
	LockTTL        string `mapstructure:"lock_ttl"`
	ManualCooldown string `mapstructure:"manual_cooldown"`
}

// HTTPConfig contains admin HTTP server configuration
type HTTPConfig struct {
	BindAddr      string `mapstructure:"bind_addr"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	ReadTimeout   string `mapstructure:"read_timeout"`
	WriteTimeout  string `mapstructure:"write_timeout"`
	IdleTimeout   string `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	CacheSizeMB   int    `mapstructure:"cache_size_mb"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`
}

// MaintenanceConfig contains housekeeping settings
type MaintenanceConfig struct {
	Interval     string `mapstructure:"interval"`
	TempFileAge  string `mapstructure:"temp_file_age"`
	RunRetention string `mapstructure:"run_retention"`
}

// Loader reads configuration from a YAML file, .env and the environment
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader for the given file. An empty path reads the
// environment only.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	}
	return &Loader{v: v, path: configPath}
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Load reads and validates the configuration
func (l *Loader) Load() (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Types = MergeTypes(DefaultTypes(), config.Types)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Watch calls onChange with the re-read configuration whenever the file is
// written. A reload that fails validation is passed as an error and the
// caller keeps its previous configuration.
func (l *Loader) Watch(onChange func(*Config, error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(l.decode())
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("graph.authority", "https://login.microsoftonline.com")
	v.SetDefault("graph.tenant_id", "")
	v.SetDefault("graph.client_id", "")
	v.SetDefault("graph.client_secret", "")
	v.SetDefault("graph.scope", "https://graph.microsoft.com/.default")
	v.SetDefault("graph.token_margin", "60s")
	v.SetDefault("graph.token_timeout", "30s")
	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.site_id", "")
	v.SetDefault("graph.media_list_id", "")
	v.SetDefault("graph.media_list_name", "Image Media")
	v.SetDefault("graph.page_size", 200)
	v.SetDefault("graph.metadata_timeout", "30s")
	v.SetDefault("graph.download_timeout", "120s")
	v.SetDefault("media.folder_marker", "Image Media")
	v.SetDefault("media.max_size_mb", 0)
	v.SetDefault("media.storage", "filesystem")
	v.SetDefault("media.root_dir", "/var/lib/sharepoint-list-sync/media")
	v.SetDefault("media.buffer_size_mb", 1)
	v.SetDefault("media.minio.endpoint", "")
	v.SetDefault("media.minio.access_key", "")
	v.SetDefault("media.minio.secret_key", "")
	v.SetDefault("media.minio.use_ssl", true)
	v.SetDefault("media.minio.bucket", "")
	v.SetDefault("media.minio.region", "")
	v.SetDefault("media.minio.prefix", "")
	v.SetDefault("media.minio.timeout", "30s")
	v.SetDefault("sync.interval", "0")
	v.SetDefault("sync.parallelism", 1)
	v.SetDefault("sync.lock_ttl", "30m")
	v.SetDefault("sync.manual_cooldown", "30s")
	v.SetDefault("http.bind_addr", "127.0.0.1:8080")
	v.SetDefault("http.admin_username", "admin")
	v.SetDefault("http.admin_password", "")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "10m")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("database.path", "sharepoint-list-sync.db")
	v.SetDefault("database.cache_size_mb", 64)
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("maintenance.interval", "10m")
	v.SetDefault("maintenance.temp_file_age", "1h")
	v.SetDefault("maintenance.run_retention", "720h")
}

// Validate validates the configuration. Graph credentials are not checked
// here; a missing credential surfaces as an auth error on first use.
func (c *Config) Validate() error {
	durations := map[string]string{
		"graph.token_margin":        c.Graph.TokenMargin,
		"graph.token_timeout":       c.Graph.TokenTimeout,
		"graph.metadata_timeout":    c.Graph.MetadataTimeout,
		"graph.download_timeout":    c.Graph.DownloadTimeout,
		"sync.interval":             c.Sync.Interval,
		"sync.lock_ttl":             c.Sync.LockTTL,
		"sync.manual_cooldown":      c.Sync.ManualCooldown,
		"maintenance.interval":      c.Maintenance.Interval,
		"maintenance.temp_file_age": c.Maintenance.TempFileAge,
		"maintenance.run_retention": c.Maintenance.RunRetention,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if c.Graph.PageSize < 1 || c.Graph.PageSize > 5000 {
		return fmt.Errorf("graph.page_size must be between 1 and 5000")
	}
	if strings.TrimSpace(c.Media.FolderMarker) == "" {
		return fmt.Errorf("media.folder_marker is required")
	}
	if c.Media.MaxSizeMB < 0 {
		return fmt.Errorf("media.max_size_mb must not be negative")
	}

	switch c.Media.Storage {
	case "filesystem":
		if c.Media.RootDir == "" {
			return fmt.Errorf("media.root_dir is required for filesystem storage")
		}
	case "minio":
		if c.Media.MinIO.Endpoint == "" || c.Media.MinIO.Bucket == "" {
			return fmt.Errorf("media.minio.endpoint and media.minio.bucket are required for minio storage")
		}
	default:
		return fmt.Errorf("invalid media.storage: %s", c.Media.Storage)
	}

	if c.Sync.Parallelism < 1 || c.Sync.Parallelism > 8 {
		return fmt.Errorf("sync.parallelism must be between 1 and 8")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	if _, err := domain.NewTypeRegistry(c.Types); err != nil {
		return fmt.Errorf("invalid types: %w", err)
	}

	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetTokenMargin returns the token refresh safety margin
func (c *GraphConfig) GetTokenMargin() time.Duration {
	return parseDuration(c.TokenMargin, 60*time.Second)
}

// GetTokenTimeout returns the token request timeout
func (c *GraphConfig) GetTokenTimeout() time.Duration {
	return parseDuration(c.TokenTimeout, 30*time.Second)
}

// GetMetadataTimeout returns the timeout for list and folder requests
func (c *GraphConfig) GetMetadataTimeout() time.Duration {
	return parseDuration(c.MetadataTimeout, 30*time.Second)
}

// GetDownloadTimeout returns the timeout for media downloads
func (c *GraphConfig) GetDownloadTimeout() time.Duration {
	return parseDuration(c.DownloadTimeout, 120*time.Second)
}

// GetMaxSize returns the media size limit in bytes, 0 for unlimited
func (c *MediaConfig) GetMaxSize() int64 {
	return int64(c.MaxSizeMB) * 1024 * 1024
}

// GetBufferSize returns the copy buffer size in bytes
func (c *MediaConfig) GetBufferSize() int {
	if c.BufferSizeMB <= 0 {
		return 1024 * 1024
	}
	return c.BufferSizeMB * 1024 * 1024
}

// GetTimeout returns the object storage connection timeout
func (c *MinIOConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// GetInterval returns the scheduled sync interval, 0 when disabled
func (c *SyncConfig) GetInterval() time.Duration {
	return parseDuration(c.Interval, 0)
}

// GetLockTTL returns the advisory lock lifetime
func (c *SyncConfig) GetLockTTL() time.Duration {
	return parseDuration(c.LockTTL, 30*time.Minute)
}

// GetManualCooldown returns the minimum delay between manual syncs of a type
func (c *SyncConfig) GetManualCooldown() time.Duration {
	return parseDuration(c.ManualCooldown, 30*time.Second)
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 10*time.Minute)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}

// GetInterval returns the housekeeping interval
func (c *MaintenanceConfig) GetInterval() time.Duration {
	return parseDuration(c.Interval, 10*time.Minute)
}

// GetTempFileAge returns the age after which partial uploads are removed
func (c *MaintenanceConfig) GetTempFileAge() time.Duration {
	return parseDuration(c.TempFileAge, time.Hour)
}

// GetRunRetention returns how long run history is kept
func (c *MaintenanceConfig) GetRunRetention() time.Duration {
	return parseDuration(c.RunRetention, 30*24*time.Hour)
}
