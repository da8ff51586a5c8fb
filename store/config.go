package store

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

type Config struct {
	DatabaseName    string        `envconfig:"LIS_DATABASE_NAME" default:"lis"`
	Hosts           string        `envconfig:"LIS_STORE_ADDRESSES"  default:"localhost"`
	OptParams       string        `envconfig:"LIS_STORE_OPT_PARAMS"`
	Password        string        `envconfig:"LIS_STORE_PASSWORD"`
	Scheme          string        `envconfig:"LIS_STORE_SCHEME" default:"mongodb"`
	Ssl             bool          `envconfig:"LIS_STORE_TLS"`
	User            string        `envconfig:"LIS_STORE_USERNAME"`
	ConnectAttempts uint          `envconfig:"LIS_STORE_CONNECT_ATTEMPTS" default:"5"`
	ConnectBackoff  time.Duration `envconfig:"LIS_STORE_CONNECT_BACKOFF" default:"2s"`
}

func (c *Config) GetConnectionString() (string, error) {
	var cs string
	if c.Scheme != "" {
		cs = c.Scheme + "://"
	} else {
		cs = "mongodb://"
	}

	if c.User != "" {
		cs += c.User
		if c.Password != "" {
			cs += ":"
			cs += c.Password
		}
		cs += "@"
	}

	if c.Hosts != "" {
		cs += c.Hosts
	} else {
		cs += "localhost"
	}
	cs += "/"

	if c.Ssl {
		cs += "?ssl=true"
	} else {
		cs += "?ssl=false"
	}

	if c.OptParams != "" {
		cs += "&"
		cs += c.OptParams
	}
	return cs, nil
}
