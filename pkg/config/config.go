// pkg/config/config.go
package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the on-disk service configuration (federate.toml).
type Config struct {
	Federation Federation `toml:"federation"`
	Catalog    Catalog    `toml:"catalog"`
	Cache      Cache      `toml:"cache"`
	Revocation Revocation `toml:"revocation"`
}

// Federation configures credential exchange and artifact minting.
type Federation struct {
	// RoleArn is the fixed delegating role assumed on behalf of every identity.
	RoleArn string `toml:"role_arn"`

	// SessionDurationSeconds bounds delegated credentials (default 3600).
	SessionDurationSeconds int32 `toml:"session_duration_seconds"`

	// SafetyMarginSeconds is subtracted from the credential lifetime when
	// computing a cached artifact's expiry, so the artifact never outlives
	// the credentials it fronts (default 300).
	SafetyMarginSeconds int64 `toml:"safety_margin_seconds"`

	// SigningEndpoint is the external endpoint that exchanges credentials
	// for a signed redirect token. Must be a member of AllowedEndpoints.
	SigningEndpoint string `toml:"signing_endpoint"`

	// AllowedEndpoints is the outbound allowlist; the minter refuses to
	// call anything outside it.
	AllowedEndpoints []string `toml:"allowed_endpoints"`

	// Issuer is the label attached to every composed redirect URL.
	Issuer string `toml:"issuer"`

	// DestinationBase prefixes a product's external id to form the
	// post-login deep link.
	DestinationBase string `toml:"destination_base"`
}

// Catalog configures the product catalog store and its staleness bound.
type Catalog struct {
	Bucket string `toml:"bucket"`
	Key    string `toml:"key"`

	// RefreshTTLSeconds bounds catalog staleness (default 300).
	RefreshTTLSeconds int64 `toml:"refresh_ttl_seconds"`
}

// Cache configures the redis-backed session artifact store.
type Cache struct {
	Addr     string `toml:"addr"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	// KeyPrefix namespaces artifact records, e.g. "federate:session:".
	KeyPrefix string `toml:"key_prefix"`

	DialTimeoutMS  int `toml:"dial_timeout_ms"`
	ReadTimeoutMS  int `toml:"read_timeout_ms"`
	WriteTimeoutMS int `toml:"write_timeout_ms"`
}

// Revocation configures the role-wide credential cutoff mechanism.
type Revocation struct {
	// RoleName is the IAM role name (not ARN) that receives the inline
	// deny policy.
	RoleName string `toml:"role_name"`

	// PolicyName is the inline policy name; replaced on every revoke.
	PolicyName string `toml:"policy_name"`

	// PropagationDelayMS is the fixed wait after the policy write before
	// the deny is assumed effective upstream (default 1000).
	PropagationDelayMS int `toml:"propagation_delay_ms"`

	// SignOutURL, when set, is the identity provider endpoint used for
	// best-effort bearer sign-out during a full revoke.
	SignOutURL string `toml:"sign_out_url"`
}

// Load reads and validates a Config from path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Federation.SessionDurationSeconds <= 0 {
		c.Federation.SessionDurationSeconds = 3600
	}
	if c.Federation.SafetyMarginSeconds <= 0 {
		c.Federation.SafetyMarginSeconds = 300
	}
	if c.Catalog.RefreshTTLSeconds <= 0 {
		c.Catalog.RefreshTTLSeconds = 300
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "federate:session:"
	}
	if c.Cache.DialTimeoutMS <= 0 {
		c.Cache.DialTimeoutMS = 5000
	}
	if c.Cache.ReadTimeoutMS <= 0 {
		c.Cache.ReadTimeoutMS = 3000
	}
	if c.Cache.WriteTimeoutMS <= 0 {
		c.Cache.WriteTimeoutMS = 3000
	}
	if c.Revocation.PolicyName == "" {
		c.Revocation.PolicyName = "federate-revoke-all"
	}
	if c.Revocation.PropagationDelayMS <= 0 {
		c.Revocation.PropagationDelayMS = 1000
	}
}
