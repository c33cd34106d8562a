package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all static settings. Values come from config.yaml with
// environment overrides applied on top of the defaults.
type Config struct {
	// Jira connection
	JiraBaseURL  string `yaml:"jira_base_url" json:"jira_base_url"`
	JiraEmail    string `yaml:"jira_email" json:"jira_email"`
	JiraAPIToken string `yaml:"jira_api_token" json:"jira_api_token"`
	ProjectID    string `yaml:"project_id" json:"project_id"`
	ProjectKey   string `yaml:"project_key" json:"project_key"`
	MaxResults   int    `yaml:"max_results" json:"max_results"`

	// Refresh loop
	RefreshIntervalSecs int `yaml:"refresh_interval_secs" json:"refresh_interval_secs"`

	// Storage
	UseDatabase         bool   `yaml:"use_database" json:"use_database"`
	DataDir             string `yaml:"data_dir" json:"data_dir"`
	BackupRetentionDays int    `yaml:"backup_retention_days" json:"backup_retention_days"`

	// Database (only used when use_database is set)
	DBHost     string `yaml:"db_host" json:"db_host"`
	DBPort     int    `yaml:"db_port" json:"db_port"`
	DBUser     string `yaml:"db_user" json:"db_user"`
	DBPassword string `yaml:"db_password" json:"db_password"`
	DBName     string `yaml:"db_name" json:"db_name"`

	// Dashboard server
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	AuthDisabled bool   `yaml:"auth_disabled" json:"auth_disabled"`

	// Authentication
	UsersFile            string `yaml:"users_file" json:"users_file"`
	UserStore            string `yaml:"user_store" json:"user_store"` // "file" or "sqlite"
	DefaultAdminUser     string `yaml:"default_admin_user" json:"default_admin_user"`
	DefaultAdminPassword string `yaml:"default_admin_password" json:"default_admin_password"`

	// Logging
	LogLevel   string `yaml:"log_level" json:"log_level"`
	LogFile    string `yaml:"log_file" json:"log_file"`
	LogConsole bool   `yaml:"log_console" json:"log_console"`
}

// DefaultConfig returns default settings with environment overrides applied.
func DefaultConfig() *Config {
	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		JiraBaseURL:  getEnv("JIRA_BASE_URL", ""),
		JiraEmail:    getEnv("JIRA_EMAIL", ""),
		JiraAPIToken: getEnv("JIRA_API_TOKEN", ""),
		ProjectID:    getEnv("JIRA_PROJECT_ID", "10000"),
		ProjectKey:   getEnv("JIRA_PROJECT_KEY", "DP"),
		MaxResults:   getEnvInt("JIRA_MAX_RESULTS", 100),

		RefreshIntervalSecs: getEnvInt("JIRADASH_REFRESH_SECS", 300),

		UseDatabase:         getEnv("USE_DATABASE", "false") == "true",
		DataDir:             dataDir,
		BackupRetentionDays: 30,

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "jiradash"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "jiradash"),

		Host: getEnv("JIRADASH_HOST", "127.0.0.1"),
		Port: getEnvInt("JIRADASH_PORT", 8080),

		UsersFile:            getEnv("JIRADASH_USERS_FILE", "users.json"),
		UserStore:            getEnv("JIRADASH_USER_STORE", "file"),
		DefaultAdminUser:     getEnv("JIRADASH_ADMIN_USER", "admin-default"),
		DefaultAdminPassword: getEnv("JIRADASH_ADMIN_PASSWORD", "change-me"),

		LogLevel:   getEnv("JIRADASH_LOG_LEVEL", "INFO"),
		LogFile:    getEnv("JIRADASH_LOG_FILE", filepath.Join(dataDir, "logs", "jiradash.log")),
		LogConsole: getEnv("JIRADASH_LOG_CONSOLE", "true") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Load reads config from the given path, falling back to config.yaml in the
// working directory. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to the given path as YAML.
func (c *Config) Save(path string) error {
	if path == "" {
		path = "config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks settings every mode needs. Remote credentials are checked
// separately because dashboard-only mode never talks to Jira.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RefreshIntervalSecs <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %d", c.RefreshIntervalSecs)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.UserStore != "file" && c.UserStore != "sqlite" {
		return fmt.Errorf("user_store must be \"file\" or \"sqlite\", got %q", c.UserStore)
	}
	return nil
}

// ValidateRemote checks the credentials required to talk to Jira.
func (c *Config) ValidateRemote() error {
	if c.JiraBaseURL == "" {
		return fmt.Errorf("jira_base_url is required")
	}
	if c.JiraEmail == "" {
		return fmt.Errorf("jira_email is required")
	}
	if c.JiraAPIToken == "" {
		return fmt.Errorf("jira_api_token is required")
	}
	return nil
}

// RefreshInterval returns the refresh cadence as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSecs) * time.Second
}

// IssuesFile returns the path of the current issues snapshot.
func (c *Config) IssuesFile() string {
	return filepath.Join(c.DataDir, "issues.json")
}

// ProjectFile returns the path of the current project record.
func (c *Config) ProjectFile() string {
	return filepath.Join(c.DataDir, "project.json")
}

// BackupDir returns the backup directory path.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// PIDFile returns the path of the pid file for the running server.
func (c *Config) PIDFile() string {
	return filepath.Join(c.DataDir, "jiradash.pid")
}

// LockFile returns the path of the single-instance lock file.
func (c *Config) LockFile() string {
	return filepath.Join(c.DataDir, "jiradash.lock")
}

// ListenAddr returns the host:port the dashboard server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseURL builds the Postgres connection string for database mode.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
