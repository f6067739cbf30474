// Package config loads the server options from YAML with environment
// overrides. The resulting Options value is immutable after Load and is
// injected by value into every component that needs a knob.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

// InputLengthRestrictions bounds every raw request parameter before it is
// looked at. Oversized input is rejected as invalid_request.
type InputLengthRestrictions struct {
	ClientID          int `yaml:"client_id"`
	ClientSecret      int `yaml:"client_secret"`
	Scope             int `yaml:"scope"`
	RedirectURI       int `yaml:"redirect_uri"`
	Nonce             int `yaml:"nonce"`
	UILocale          int `yaml:"ui_locale"`
	LoginHint         int `yaml:"login_hint"`
	AcrValues         int `yaml:"acr_values"`
	UserName          int `yaml:"user_name"`
	Password          int `yaml:"password"`
	GrantType         int `yaml:"grant_type"`
	AuthorizationCode int `yaml:"authorization_code"`
	RefreshToken      int `yaml:"refresh_token"`
	DeviceCode        int `yaml:"device_code"`
	TokenHandle       int `yaml:"token_handle"`
	IDTokenHint       int `yaml:"id_token_hint"`
	Jwt               int `yaml:"jwt"`

	CodeChallengeMinLength int `yaml:"code_challenge_min_length"`
	CodeChallengeMaxLength int `yaml:"code_challenge_max_length"`
	CodeVerifierMinLength  int `yaml:"code_verifier_min_length"`
	CodeVerifierMaxLength  int `yaml:"code_verifier_max_length"`
}

// Endpoints toggles individual protocol endpoints.
type Endpoints struct {
	EnableAuthorize           bool `yaml:"authorize"`
	EnableToken               bool `yaml:"token"`
	EnableIntrospection       bool `yaml:"introspection"`
	EnableRevocation          bool `yaml:"revocation"`
	EnableDeviceAuthorization bool `yaml:"device_authorization"`
	EnableEndSession          bool `yaml:"end_session"`
	EnableJWKS                bool `yaml:"jwks"`
	EnableCheckSession        bool `yaml:"check_session"`
}

// DeviceFlow configures the device-authorization grant.
type DeviceFlow struct {
	// Interval is the minimum seconds between polls per device code.
	Interval int `yaml:"interval"`
	// Lifetime is the default device code lifetime in seconds.
	Lifetime       int `yaml:"lifetime"`
	UserCodeLength int `yaml:"user_code_length"`
}

// RequestObject configures JWT authorization requests (request /
// request_uri parameters).
type RequestObject struct {
	Enabled           bool          `yaml:"enabled"`
	RequestURIEnabled bool          `yaml:"request_uri_enabled"`
	MaxSizeBytes      int64         `yaml:"max_size_bytes"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
}

// Options is the complete configuration bag.
type Options struct {
	Issuer string `yaml:"issuer"`

	Server struct {
		Addr        string `yaml:"addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	Logging struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Storage struct {
		// Driver selects the config-store backend: "memory" | "postgres".
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Grants struct {
		// Backend selects the grant-store backend: "memory" | "redis".
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"grants"`

	Endpoints     Endpoints               `yaml:"endpoints"`
	InputLengths  InputLengthRestrictions `yaml:"input_lengths"`
	DeviceFlow    DeviceFlow              `yaml:"device_flow"`
	RequestObject RequestObject           `yaml:"request_object"`

	// Seed data for the in-memory config stores.
	Clients           []model.Client           `yaml:"clients"`
	IdentityResources []model.IdentityResource `yaml:"identity_resources"`
	ApiResources      []model.ApiResource      `yaml:"api_resources"`
	Users             []model.User             `yaml:"users"`
}

// Default returns Options with production-safe defaults.
func Default() Options {
	var o Options
	o.Issuer = "http://localhost:8085"
	o.Server.Addr = ":8085"
	o.Server.MetricsAddr = ":9105"
	o.Logging.Env = "dev"
	o.Logging.Level = "info"
	o.Storage.Driver = "memory"
	o.Grants.Backend = "memory"
	o.Endpoints = Endpoints{
		EnableAuthorize:           true,
		EnableToken:               true,
		EnableIntrospection:       true,
		EnableRevocation:          true,
		EnableDeviceAuthorization: true,
		EnableEndSession:          true,
		EnableJWKS:                true,
		EnableCheckSession:        false,
	}
	o.InputLengths = InputLengthRestrictions{
		ClientID:          100,
		ClientSecret:      100,
		Scope:             300,
		RedirectURI:       400,
		Nonce:             300,
		UILocale:          100,
		LoginHint:         100,
		AcrValues:         300,
		UserName:          100,
		Password:          100,
		GrantType:         100,
		AuthorizationCode: 100,
		RefreshToken:      100,
		DeviceCode:        100,
		TokenHandle:       100,
		IDTokenHint:       4000,
		Jwt:               51200,

		CodeChallengeMinLength: 43,
		CodeChallengeMaxLength: 128,
		CodeVerifierMinLength:  43,
		CodeVerifierMaxLength:  128,
	}
	o.DeviceFlow = DeviceFlow{Interval: 5, Lifetime: 300, UserCodeLength: 8}
	o.RequestObject = RequestObject{
		Enabled:           true,
		RequestURIEnabled: false,
		MaxSizeBytes:      64 * 1024,
		FetchTimeout:      10 * time.Second,
	}
	return o
}

// Load reads the YAML file (optional) and applies environment overrides.
func Load(path string) (Options, error) {
	o := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return o, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &o); err != nil {
			return o, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&o)

	if o.Issuer == "" {
		return o, fmt.Errorf("config: issuer is required")
	}
	return o, nil
}

func applyEnv(o *Options) {
	if v := os.Getenv("GATEJOHN_ADDR"); v != "" {
		o.Server.Addr = v
	}
	if v := os.Getenv("GATEJOHN_ISSUER"); v != "" {
		o.Issuer = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		o.Logging.Level = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		o.Logging.Env = v
	}
	if v := os.Getenv("GATEJOHN_PG_DSN"); v != "" {
		o.Storage.Driver = "postgres"
		o.Storage.DSN = v
	}
	if v := os.Getenv("GATEJOHN_REDIS_ADDR"); v != "" {
		o.Grants.Backend = "redis"
		o.Grants.Redis.Addr = v
	}
	if v := os.Getenv("GATEJOHN_DEVICE_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			o.DeviceFlow.Interval = n
		}
	}
}
