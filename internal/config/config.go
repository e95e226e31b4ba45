// Package config loads entitydao configuration from a YAML file and
// DAO_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/entitydao/pkg/orm/dialect"
	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/transaction"
)

// Config represents the entitydao configuration. Viper lower-cases map
// keys, so connection names are lower case.
type Config struct {
	DefaultConn string                      `mapstructure:"default_conn"`
	Connections map[string]ConnectionConfig `mapstructure:"connections"`
	Routes      []RouteConfig               `mapstructure:"routes"`
	Stats       StatsConfig                 `mapstructure:"stats"`
	Log         LogConfig                   `mapstructure:"log"`
}

// ConnectionConfig represents one logical connection pool
type ConnectionConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpen         int           `mapstructure:"max_open"`
	MaxIdle         int           `mapstructure:"max_idle"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Dialect         string        `mapstructure:"dialect"`
}

// RouteConfig maps a table prefix to read and write connections
type RouteConfig struct {
	Prefix string `mapstructure:"prefix"`
	Read   string `mapstructure:"read"`
	Write  string `mapstructure:"write"`
}

// StatsConfig represents telemetry configuration
type StatsConfig struct {
	// Sink is a comma separated list of log, memory, redis, nats or none.
	Sink          string        `mapstructure:"sink"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	Capacity      int           `mapstructure:"capacity"`
	Redis         RedisConfig   `mapstructure:"redis"`
	NATS          NATSConfig    `mapstructure:"nats"`
	HTTP          HTTPConfig    `mapstructure:"http"`
}

// RedisConfig represents the Redis sink
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// NATSConfig represents the NATS sink
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// HTTPConfig represents the stats endpoint
type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Load loads the configuration from path, or from entitydao.yaml in the
// working directory when path is empty. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("entitydao")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DAO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_conn", "main")
	v.SetDefault("stats.sink", "log")
	v.SetDefault("stats.slow_threshold", 500*time.Millisecond)
	v.SetDefault("stats.capacity", 1000)
	v.SetDefault("stats.redis.addr", "localhost:6379")
	v.SetDefault("stats.redis.password", "")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.redis.key", "entitydao:stats")
	v.SetDefault("stats.redis.max_len", 10000)
	v.SetDefault("stats.nats.url", "nats://localhost:4222")
	v.SetDefault("stats.nats.subject", "entitydao.stats")
	v.SetDefault("stats.http.addr", ":8090")
	v.SetDefault("stats.http.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "json")
}

// Validate checks cross references between connections and routes
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return fmt.Errorf("%w: at least one connection is required", ErrInvalid)
	}
	if _, ok := c.Connections[c.DefaultConn]; !ok {
		return fmt.Errorf("%w: default_conn %q is not a configured connection", ErrInvalid, c.DefaultConn)
	}

	for _, name := range c.ConnectionNames() {
		conn := c.Connections[name]
		if conn.Driver == "" {
			return fmt.Errorf("%w: connection %s has no driver", ErrInvalid, name)
		}
		if !dialect.ForDriver(conn.Driver).Known() && !dialect.New(conn.Dialect).Known() {
			return fmt.Errorf("%w: connection %s: unknown driver %q needs an explicit dialect", ErrInvalid, name, conn.Driver)
		}
	}

	for i, r := range c.Routes {
		for _, target := range []string{r.Read, r.Write} {
			if target == "" {
				continue
			}
			if _, ok := c.Connections[target]; !ok {
				return fmt.Errorf("%w: routes[%d] references unknown connection %q", ErrInvalid, i, target)
			}
		}
		if r.Read == "" && r.Write == "" {
			return fmt.Errorf("%w: routes[%d] has neither read nor write", ErrInvalid, i)
		}
	}

	for _, sink := range c.Stats.Sinks() {
		switch sink {
		case "log", "memory", "redis", "nats", "none":
		default:
			return fmt.Errorf("%w: unknown stats sink %q", ErrInvalid, sink)
		}
	}
	return nil
}

// ConnectionNames returns the configured connection names, sorted
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TransactionConfigs converts the connections for transaction.OpenManager
func (c *Config) TransactionConfigs() map[string]transaction.Config {
	out := make(map[string]transaction.Config, len(c.Connections))
	for name, conn := range c.Connections {
		out[name] = transaction.Config{
			Driver:          conn.Driver,
			DSN:             conn.DSN,
			MaxOpen:         conn.MaxOpen,
			MaxIdle:         conn.MaxIdle,
			ConnMaxLifetime: conn.ConnMaxLifetime,
			Dialect:         conn.Dialect,
		}
	}
	return out
}

// Router builds the connection router
func (c *Config) Router() *route.Router {
	rules := make([]route.Rule, len(c.Routes))
	for i, r := range c.Routes {
		rules[i] = route.Rule{Prefix: r.Prefix, Read: r.Read, Write: r.Write}
	}
	return route.New(c.DefaultConn, rules...)
}

// Sinks returns the configured sink names, trimmed and lower-cased
func (s StatsConfig) Sinks() []string {
	var out []string
	for _, part := range strings.Split(s.Sink, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
