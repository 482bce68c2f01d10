// pkg/middleware/auth/signout.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// SignOut terminates the provider-side session for a bearer credential.
// Best-effort: callers log the error and move on.
func (m *Middleware) SignOut(ctx context.Context, bearer string) error {
	if m.signOutURL == "" {
		return errors.New("IDENTITY_SIGNOUT_URL not set")
	}
	if bearer == "" {
		return errors.New("no bearer credential supplied")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.signOutURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	res, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("sign-out status %d", res.StatusCode)
	}
	return nil
}
