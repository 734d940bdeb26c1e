package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultAPIVersion is the Admin API version the proxy targets unless
	// configured otherwise.
	DefaultAPIVersion = "2024-01"

	DefaultHTTPAddr       = ":3001"
	DefaultRequestTimeout = 30 * time.Second
)

// DefaultScopes is the fixed access-scope list requested during the
// authorization redirect.
var DefaultScopes = []string{
	"read_products",
	"read_metaobjects",
	"write_metaobjects",
	"read_files",
	"write_files",
}

type OAuthConfig struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
}

type Config struct {
	ServiceName    string        `koanf:"service_name" mapstructure:"service_name"`
	HTTPAddr       string        `koanf:"http_addr" mapstructure:"http_addr"`
	APIVersion     string        `koanf:"api_version" mapstructure:"api_version"`
	StateTTL       time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	DatabaseDSN    string        `koanf:"database_dsn" mapstructure:"database_dsn"`
	OAuth          OAuthConfig   `koanf:"oauth" mapstructure:"oauth"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "shopify-proxy",
		HTTPAddr:       DefaultHTTPAddr,
		APIVersion:     DefaultAPIVersion,
		StateTTL:       DefaultStateTTL,
		RequestTimeout: DefaultRequestTimeout,
		OAuth: OAuthConfig{
			Scopes: append([]string(nil), DefaultScopes...),
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("core: http_addr is required")
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		return fmt.Errorf("core: api_version is required")
	}
	if c.StateTTL < 0 {
		return fmt.Errorf("core: state_ttl cannot be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout cannot be negative")
	}
	return nil
}

// ScopeList renders the configured scopes as the comma-joined value the
// authorization endpoint expects.
func (c Config) ScopeList() string {
	scopes := c.OAuth.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	trimmed := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope != "" {
			trimmed = append(trimmed, scope)
		}
	}
	return strings.Join(trimmed, ",")
}
