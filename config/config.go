package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

const (
	DiscountPolicyReject = "reject"
	DiscountPolicyClamp  = "clamp"
	DiscountPolicyAllow  = "allow"

	TransitionModePermissive = "permissive"
	TransitionModeForward    = "forward"
	TransitionModeStrict     = "strict"
)

type Config struct {
	HttpPort       uint16        `envconfig:"LIS_HTTP_SERVER_PORT" default:"8080" required:"true"`
	JwtSecret      string        `envconfig:"LIS_JWT_SECRET" default:"change-me"`
	TokenTTL       time.Duration `envconfig:"LIS_TOKEN_TTL" default:"720h"`
	TokenCacheSize int           `envconfig:"LIS_TOKEN_CACHE_SIZE" default:"1000"`
	Timezone       string        `envconfig:"LIS_TIMEZONE" default:"Local"`
	DiscountPolicy string        `envconfig:"LIS_DISCOUNT_POLICY" default:"reject"`
	TransitionMode string        `envconfig:"LIS_SAMPLE_TRANSITIONS" default:"permissive"`
	LabName        string        `envconfig:"LIS_LAB_NAME" default:"Pathology Laboratory"`
	Locale         string        `envconfig:"LIS_LOCALE" default:"en-IN"`

	location *time.Location
	language language.Tag
}

func New() *Config {
	return &Config{}
}

func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	switch c.DiscountPolicy {
	case DiscountPolicyReject, DiscountPolicyClamp, DiscountPolicyAllow:
	default:
		return fmt.Errorf("invalid discount policy %q", c.DiscountPolicy)
	}
	switch c.TransitionMode {
	case TransitionModePermissive, TransitionModeForward, TransitionModeStrict:
	default:
		return fmt.Errorf("invalid sample transition mode %q", c.TransitionMode)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	c.language = language.English
	if c.Locale != "" {
		tag, err := language.Parse(c.Locale)
		if err != nil {
			return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
		}
		c.language = tag
	}
	return nil
}

// Location returns the zone calendar days are computed in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Language is used to format numbers in printed documents.
func (c *Config) Language() language.Tag {
	if c.language == language.Und {
		return language.English
	}
	return c.language
}

func NewConfig() (*Config, error) {
	cfg := New()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}
