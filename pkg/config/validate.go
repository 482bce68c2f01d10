package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate rejects configs that cannot produce a working service.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Federation.RoleArn) == "" {
		return fmt.Errorf("federation.role_arn is required")
	}
	if strings.TrimSpace(c.Federation.SigningEndpoint) == "" {
		return fmt.Errorf("federation.signing_endpoint is required")
	}
	if len(c.Federation.AllowedEndpoints) == 0 {
		return fmt.Errorf("federation.allowed_endpoints must not be empty")
	}
	for i, e := range c.Federation.AllowedEndpoints {
		u, err := url.Parse(e)
		if err != nil || u.Scheme != "https" {
			return fmt.Errorf("federation.allowed_endpoints[%d] (%s): must be a valid https URL", i, e)
		}
	}
	allowed := false
	for _, e := range c.Federation.AllowedEndpoints {
		if e == c.Federation.SigningEndpoint {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("federation.signing_endpoint %q is not in federation.allowed_endpoints", c.Federation.SigningEndpoint)
	}
	if strings.TrimSpace(c.Federation.Issuer) == "" {
		return fmt.Errorf("federation.issuer is required")
	}
	if strings.TrimSpace(c.Federation.DestinationBase) == "" {
		return fmt.Errorf("federation.destination_base is required")
	}
	if c.Federation.SafetyMarginSeconds >= int64(c.Federation.SessionDurationSeconds) {
		return fmt.Errorf("federation.safety_margin_seconds (%d) must be below session_duration_seconds (%d)",
			c.Federation.SafetyMarginSeconds, c.Federation.SessionDurationSeconds)
	}
	if strings.TrimSpace(c.Catalog.Bucket) == "" {
		return fmt.Errorf("catalog.bucket is required")
	}
	if strings.TrimSpace(c.Catalog.Key) == "" {
		return fmt.Errorf("catalog.key is required")
	}
	if strings.TrimSpace(c.Cache.Addr) == "" {
		return fmt.Errorf("cache.addr is required")
	}
	if strings.TrimSpace(c.Revocation.RoleName) == "" {
		return fmt.Errorf("revocation.role_name is required")
	}
	return nil
}
