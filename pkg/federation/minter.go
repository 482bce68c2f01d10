// pkg/federation/minter.go
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
)

type minterHTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProductResolver is the slice of the catalog the minter needs.
type ProductResolver interface {
	Resolve(ctx context.Context, key catalog.ProductKey) (catalog.ProductRecord, error)
}

// Minter exchanges delegated credentials for a single-use signed redirect
// URL scoped to one external product.
type Minter struct {
	client          minterHTTPClient
	resolver        ProductResolver
	allowlist       Allowlist
	endpoint        string
	issuer          string
	destinationBase string
	duration        int32
}

// NewMinter builds a minter with a bounded-timeout HTTP client.
func NewMinter(resolver ProductResolver, allowlist Allowlist, endpoint, issuer, destinationBase string, durationSeconds int32) *Minter {
	return newMinter(
		&http.Client{Timeout: 15 * time.Second},
		resolver, allowlist, endpoint, issuer, destinationBase, durationSeconds,
	)
}

func newMinter(client minterHTTPClient, resolver ProductResolver, allowlist Allowlist, endpoint, issuer, destinationBase string, durationSeconds int32) *Minter {
	return &Minter{
		client:          client,
		resolver:        resolver,
		allowlist:       allowlist,
		endpoint:        endpoint,
		issuer:          issuer,
		destinationBase: destinationBase,
		duration:        durationSeconds,
	}
}

// Mint resolves the product, exchanges creds for a signed token at the
// signing endpoint, and composes the final redirect URL. Fails closed when
// the endpoint is not allowlisted; never substitutes another endpoint.
func (m *Minter) Mint(ctx context.Context, creds Credentials, key catalog.ProductKey) (string, error) {
	rec, err := m.resolver.Resolve(ctx, key)
	if err != nil {
		return "", err
	}

	descriptor, err := json.Marshal(map[string]string{
		"sessionId":    creds.AccessKeyID,
		"sessionKey":   creds.SecretAccessKey,
		"sessionToken": creds.SessionToken,
	})
	if err != nil {
		return "", fmt.Errorf("marshal session descriptor: %w", err)
	}

	if !m.allowlist.IsAllowed(m.endpoint) {
		return "", fmt.Errorf("%w: %s", ErrSecurity, m.endpoint)
	}

	form := url.Values{}
	form.Set("Action", "getSigninToken")
	form.Set("SessionDuration", fmt.Sprintf("%d", m.duration))
	form.Set("Session", string(descriptor))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build signing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request: %s", ErrFederation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %s", ErrFederation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrFederation, resp.StatusCode, string(body))
	}

	var tokenResp struct {
		SigninToken string `json:"SigninToken"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("%w: parse response: %s", ErrFederation, err)
	}
	if tokenResp.SigninToken == "" {
		return "", fmt.Errorf("%w: empty signin token", ErrFederation)
	}

	destination := m.destinationBase + rec.ExternalID

	redirect := fmt.Sprintf(
		"%s?Action=login&Issuer=%s&Destination=%s&SigninToken=%s",
		m.endpoint,
		url.QueryEscape(m.issuer),
		url.QueryEscape(destination),
		url.QueryEscape(tokenResp.SigninToken),
	)
	return redirect, nil
}
