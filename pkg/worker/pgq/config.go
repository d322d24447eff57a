package pgq

import (
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"strconv"
	"time"
)

type Config struct {
	Host     string `yaml:"host" mapstructure:"host" default:"localhost"`
	Port     int    `yaml:"port" mapstructure:"port" default:"5432"`
	Name     string `yaml:"name" mapstructure:"name" default:"postgres"`
	Username string `yaml:"username" mapstructure:"username" default:"root"`
	Password string `yaml:"password" mapstructure:"password" default:""`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode" default:"disable"`

	// ApplicationName tags the connections of the queue in pg_stat_activity.
	ApplicationName string `yaml:"application_name" mapstructure:"application_name" default:"sift-worker"`

	MaxOpenConns          int           `yaml:"max_open_conns" mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns          int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns" default:"4"`
	ConnMaxIdleTime       time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time" default:"5m"`
	ConnMaxLifetime       time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime" default:"5m"`
	ConnMaxLifetimeJitter time.Duration `yaml:"conn_max_lifetime_jitter" mapstructure:"conn_max_lifetime_jitter" default:"2m"`
}

func (c Config) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// ConnectionString returns the key/value DSN of the database.
func (c Config) ConnectionString() string {
	dsn := fmt.Sprintf(
		"dbname=%s user=%s password='%s' host=%s port=%d sslmode=%s",
		c.Name, c.Username, c.Password, c.Host, c.Port, c.sslMode(),
	)
	if c.ApplicationName != "" {
		dsn += " application_name=" + c.ApplicationName
	}
	return dsn
}

func (c Config) ConnectionURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   c.Name,
	}
	q := url.Values{}
	q.Set("sslmode", c.sslMode())
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnMaxLifetimeWithJitter spreads the recycling of connections opened at
// the same time.
func (c Config) ConnMaxLifetimeWithJitter() time.Duration {
	if c.ConnMaxLifetimeJitter <= 0 {
		return c.ConnMaxLifetime
	}

	//nolint:gosec
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return c.ConnMaxLifetime + time.Duration(r.Int63n(int64(c.ConnMaxLifetimeJitter)))
}
