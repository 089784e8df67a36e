package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	CounterSourceStats  = "stats"
	CounterSourceBinlog = "binlog"

	// AllSchemas selects tables from every user schema.
	AllSchemas = "all"
)

var (
	ErrDatabaseRequired = errors.New("database name is required, use --database or --preset")
	ErrUnknownPreset    = errors.New("unknown preset")
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Watch     WatchConfig     `yaml:"watch"`
	Binlog    BinlogConfig    `yaml:"binlog"`
	NATS      NATSConfig      `yaml:"nats"`
	Processor ProcessorConfig `yaml:"processor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, mysql
	Preset   string `yaml:"preset"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"` // postgres only
}

type WatchConfig struct {
	Schema                string        `yaml:"schema"`
	Interval              time.Duration `yaml:"interval"`
	Interactive           bool          `yaml:"interactive"`
	MaxRows               int           `yaml:"max_rows"`
	DebounceInterval      time.Duration `yaml:"debounce_interval"`
	DebounceMaxIterations int           `yaml:"debounce_max_iterations"`
	HistorySize           int           `yaml:"history_size"`
	FetchTimeout          time.Duration `yaml:"fetch_timeout"` // 0 = no timeout
	KeepaliveInterval     time.Duration `yaml:"keepalive_interval"`
	CounterSource         string        `yaml:"counter_source"` // stats, binlog (mysql only)
}

type BinlogConfig struct {
	ServerID uint32 `yaml:"server_id"`
	Flavor   string `yaml:"flavor"` // mysql, mariadb
}

type NATSConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Subject       string        `yaml:"subject"`
	MaxReconnect  int           `yaml:"max_reconnect"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// ProcessorConfig controls how diffs are filtered and how published payloads are shaped.
type ProcessorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Script  string `yaml:"script"` // JavaScript file exporting a transform function
	Rules   []Rule `yaml:"rules"`
}

// Rule limits the columns that count as changes for matching tables.
// Empty Schema or Table match everything.
type Rule struct {
	Schema  string   `yaml:"schema"`
	Table   string   `yaml:"table"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Watch.Interactive = true
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{Watch: WatchConfig{Interactive: true}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Watch.Interval == 0 {
		c.Watch.Interval = time.Second
	}
	if c.Watch.MaxRows == 0 {
		c.Watch.MaxRows = 1000
	}
	if c.Watch.DebounceInterval == 0 {
		c.Watch.DebounceInterval = 100 * time.Millisecond
	}
	if c.Watch.DebounceMaxIterations == 0 {
		c.Watch.DebounceMaxIterations = 5
	}
	if c.Watch.HistorySize == 0 {
		c.Watch.HistorySize = 100
	}
	if c.Watch.KeepaliveInterval == 0 {
		c.Watch.KeepaliveInterval = 5 * time.Second
	}
	if c.Watch.CounterSource == "" {
		c.Watch.CounterSource = CounterSourceStats
	}

	if c.Binlog.ServerID == 0 {
		c.Binlog.ServerID = 1001
	}
	if c.Binlog.Flavor == "" {
		c.Binlog.Flavor = "mysql"
	}

	if c.NATS.URL == "" {
		c.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "tabletrace.changes"
	}
	if c.NATS.MaxReconnect == 0 {
		c.NATS.MaxReconnect = 10
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
}

// Complete fills the defaults that depend on the driver. It runs after command
// line overrides so that --driver mysql picks the MySQL port and user.
func (c *Config) Complete() {
	c.applyDefaults()
	if c.Database.Port == 0 {
		c.Database.Port = defaultPort(c.Database.Driver)
	}
	if c.Database.User == "" {
		c.Database.User = defaultUser(c.Database.Driver)
	}
	if c.Watch.Schema == "" {
		c.Watch.Schema = "public"
		if c.Database.Driver == DriverMySQL {
			c.Watch.Schema = c.Database.Name
		}
	}
}

func defaultPort(driver string) int {
	if driver == DriverMySQL {
		return 3306
	}
	return 5432
}

func defaultUser(driver string) string {
	if driver == DriverMySQL {
		return "root"
	}
	return "postgres"
}

// ApplyPreset replaces the connection settings with a named preset.
func (c *Config) ApplyPreset(name string) error {
	db := DatabaseConfig{Preset: name, Host: "localhost", SSLMode: c.Database.SSLMode}
	switch strings.ToLower(name) {
	case "supabase", "supabase-local":
		db.Driver, db.Port, db.Name, db.User, db.Password = DriverPostgres, 54322, "postgres", "postgres", "postgres"
	case "postgres", "pg":
		db.Driver, db.Port, db.Name, db.User, db.Password = DriverPostgres, 5432, "postgres", "postgres", "postgres"
	case "mysql":
		db.Driver, db.Port, db.Name, db.User, db.Password = DriverMySQL, 3306, "mysql", "root", "root"
	default:
		return fmt.Errorf("%w '%s', available: supabase, postgres, mysql", ErrUnknownPreset, name)
	}
	c.Database = db
	return nil
}

// ResolvePassword fills an empty password from the driver's conventional
// environment variable.
func (c *Config) ResolvePassword(getenv func(string) string) {
	if c.Database.Password != "" {
		return
	}
	switch c.Database.Driver {
	case DriverMySQL:
		c.Database.Password = getenv("MYSQL_PWD")
	default:
		c.Database.Password = getenv("PGPASSWORD")
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("unsupported database driver '%s'", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Database.Name == "" {
		return ErrDatabaseRequired
	}
	if c.Database.User == "" {
		return errors.New("user cannot be empty")
	}
	if c.Watch.Interval <= 0 {
		return errors.New("polling interval must be greater than 0")
	}
	if c.Watch.MaxRows <= 0 {
		return errors.New("max_rows must be greater than 0")
	}
	if c.Watch.DebounceMaxIterations < 0 {
		return errors.New("debounce_max_iterations cannot be negative")
	}
	if c.Watch.HistorySize <= 0 {
		return errors.New("history_size must be greater than 0")
	}
	if c.Watch.DebounceInterval <= 0 {
		return errors.New("debounce_interval must be greater than 0")
	}
	if c.Watch.FetchTimeout < 0 {
		return errors.New("fetch_timeout cannot be negative")
	}
	if c.Watch.KeepaliveInterval <= 0 {
		return errors.New("keepalive_interval must be greater than 0")
	}
	switch c.Watch.CounterSource {
	case CounterSourceStats:
	case CounterSourceBinlog:
		if c.Database.Driver != DriverMySQL {
			return errors.New("counter_source 'binlog' requires the mysql driver")
		}
	default:
		return fmt.Errorf("unsupported counter_source '%s'", c.Watch.CounterSource)
	}
	return nil
}

// DSN builds the driver-specific connection string.
func (c *Config) DSN() string {
	db := c.Database
	if db.Driver == DriverMySQL {
		mc := mysql.NewConfig()
		mc.User = db.User
		mc.Passwd = db.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
		mc.DBName = db.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(db.Host), db.Port, quoteDSNValue(db.User), quoteDSNValue(db.Password),
		quoteDSNValue(db.Name), quoteDSNValue(db.SSLMode))
}

// quoteDSNValue quotes a lib/pq key/value setting when it is empty or holds
// spaces, quotes or backslashes.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Redacted returns the DSN with the password masked, for logging.
func (c *Config) Redacted() string {
	safe := *c
	if safe.Database.Password != "" {
		safe.Database.Password = "REDACTED"
	}
	return safe.DSN()
}
