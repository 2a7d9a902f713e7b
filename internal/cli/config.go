package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NESTQL_DATABASE_URL.
const EnvPrefix = "NESTQL"

const maxWalkDepth = 25

var configNames = []string{"nestql.yaml", "nestql.yml"}

// Config is the contents of nestql.yaml merged with defaults and
// environment overrides.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Compile  CompileConfig  `mapstructure:"compile" json:"compile"`
	Run      RunConfig      `mapstructure:"run" json:"run"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

// DatabaseConfig holds connection settings. URL wins over the discrete
// fields when set.
type DatabaseConfig struct {
	URL      string `mapstructure:"url" json:"url,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode,omitempty"`
}

// CompileConfig controls what `nestql compile` prints.
type CompileConfig struct {
	// Params prints the positional parameters after the statement.
	Params bool `mapstructure:"params" json:"params"`
	// Format is "sql" or "json".
	Format string `mapstructure:"format" json:"format"`
}

// RunConfig controls `nestql run`.
type RunConfig struct {
	// Driver is the database/sql driver: "postgres" (lib/pq) or "pgx".
	Driver  string        `mapstructure:"driver" json:"driver"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// Pretty indents the fetched JSON document.
	Pretty bool `mapstructure:"pretty" json:"pretty"`
}

// MarshalJSON renders Timeout as a duration string, the form LoadConfig
// reads back.
func (r RunConfig) MarshalJSON() ([]byte, error) {
	type plain RunConfig
	return json.Marshal(struct {
		plain
		Timeout string `json:"timeout"`
	}{plain(r), r.Timeout.String()})
}

// LogConfig sets the default log level; -v and --quiet override it.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

// LoadConfig loads configuration with precedence env > config file >
// defaults. Flags are applied on top by the commands.
//
// Returns the config, the path of the file it was read from (empty when
// none was found), and any error.
func LoadConfig(explicitPath string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default for AutomaticEnv to see it in Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	v.SetDefault("compile.params", true)
	v.SetDefault("compile.format", "sql")

	v.SetDefault("run.driver", "postgres")
	v.SetDefault("run.timeout", 30*time.Second)
	v.SetDefault("run.pretty", true)

	v.SetDefault("log.level", "warn")
}

// findConfigFile returns explicitPath if it exists, or walks up from the
// working directory looking for nestql.yaml or nestql.yml. The walk stops
// at a repository root (.git) or after maxWalkDepth levels. Returns "" when
// nothing is found.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	for range maxWalkDepth {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// ErrNoDatabase is returned by DSN when neither a URL nor a host is set.
var ErrNoDatabase = errors.New("no database configured: set database.url or --db")

// DSN returns the connection URL, building it from the discrete fields
// when database.url is empty.
func (c *Config) DSN() (string, error) {
	db := c.Database
	if db.URL != "" {
		return db.URL, nil
	}
	if db.Host == "" {
		return "", ErrNoDatabase
	}

	var missing []string
	if db.Name == "" {
		missing = append(missing, "database.name")
	}
	if db.User == "" {
		missing = append(missing, "database.user")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%s required when database.url is not set", strings.Join(missing, " and "))
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
		User:   url.User(db.User),
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	return u.String(), nil
}
