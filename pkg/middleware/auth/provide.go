package auth

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/fx"
)

// ProvideAuthentication wires defaults and env config.
// It non-fatally attempts to fetch the identity key on startup.
func ProvideAuthentication() *Middleware {
	hc := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    30 * time.Second,
			DisableCompression: false,
		},
		Timeout: 8 * time.Second,
	}

	leeway := 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("IDENTITY_LEEWAY_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			leeway = time.Duration(n) * time.Second
		}
	}

	m := &Middleware{
		httpClient: hc,
		devBypass:  os.Getenv("AUTH_DEV_BYPASS") == "true",
		keyURL:     strings.TrimSpace(os.Getenv("IDENTITY_KEY_URL")), // JWKS/PEM endpoint
		keyKID:     strings.TrimSpace(os.Getenv("IDENTITY_KEY_KID")),
		issuer:     strings.TrimSpace(os.Getenv("IDENTITY_ISSUER")),
		audience:   strings.TrimSpace(os.Getenv("IDENTITY_AUDIENCE")),
		signOutURL: strings.TrimSpace(os.Getenv("IDENTITY_SIGNOUT_URL")),
		leeway:     leeway,
		cacheTTL:   1 * time.Hour, // default; overridable by Cache-Control
	}

	// Fetch identity key on startup (non-fatal)
	if m.keyURL != "" {
		if err := m.refreshKey(context.Background()); err == nil {
			go m.backgroundRefresh()
		}
	}

	return m
}

var Module = fx.Options(
	fx.Provide(ProvideAuthentication),
)
