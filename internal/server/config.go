package server

import (
	"fmt"
	"slices"
	"time"

	"github.com/victornm/kiosk/internal/inventory"
	"github.com/victornm/kiosk/internal/quiz"
	"github.com/victornm/kiosk/internal/telemetry"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

var Drivers = []string{DriverMemory, DriverPostgres, DriverMySQL, DriverSQLite}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Inventory struct {
		Driver   string
		DSN      string
		Currency string
	}

	Quiz struct {
		File        string
		DefaultTime int `mapstructure:"default_time"`
	}

	Redis struct {
		Session RedisConfig
		Pubsub  RedisConfig
		Ranking RedisConfig
	}

	Session struct {
		TTL time.Duration
	}

	Auth struct {
		Users []User
	}
}

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

// User is an account allowed into the quiz settings page. Hashes are bcrypt;
// `kiosk hash-password` prints one.
type User struct {
	Username     string
	PasswordHash string `mapstructure:"password_hash"`
}

// DefaultConfig is overridden by the config file and then the environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log = telemetry.LogConfig{Level: "info", Format: telemetry.LogFormatJSON}
	c.Inventory.Driver = DriverMemory
	c.Inventory.Currency = inventory.DefaultCurrency
	c.Quiz.File = "quiz.json"
	c.Quiz.DefaultTime = quiz.DefaultQuizTime
	c.Redis.Session = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "kiosk"}
	c.Redis.Pubsub = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "kiosk"}
	c.Redis.Ranking = RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "kiosk"}
	c.Session.TTL = 12 * time.Hour
	return c
}

func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}

	if !slices.Contains(Drivers, c.Inventory.Driver) {
		return fmt.Errorf("inventory: unknown driver %q, want one of %v", c.Inventory.Driver, Drivers)
	}
	if c.Inventory.Driver != DriverMemory && c.Inventory.DSN == "" {
		return fmt.Errorf("inventory: dsn is required for driver %q", c.Inventory.Driver)
	}

	if c.Quiz.DefaultTime < 1 {
		return fmt.Errorf("quiz: default_time must be at least 1 second")
	}

	for name, r := range map[string]RedisConfig{
		"session": c.Redis.Session,
		"pubsub":  c.Redis.Pubsub,
		"ranking": c.Redis.Ranking,
	} {
		if len(r.Addrs) == 0 {
			return fmt.Errorf("redis.%s: addrs is required", name)
		}
	}

	seen := make(map[string]bool, len(c.Auth.Users))
	for _, u := range c.Auth.Users {
		if u.Username == "" {
			return fmt.Errorf("auth: user without username")
		}
		if seen[u.Username] {
			return fmt.Errorf("auth: duplicate user %q", u.Username)
		}
		seen[u.Username] = true
	}

	return nil
}
