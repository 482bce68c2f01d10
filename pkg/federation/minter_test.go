package federation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/joeydtaylor/steeze-federate/pkg/catalog"
)

type fakeResolver struct {
	records map[catalog.ProductKey]catalog.ProductRecord
}

func (f fakeResolver) Resolve(_ context.Context, key catalog.ProductKey) (catalog.ProductRecord, error) {
	rec, ok := f.records[key]
	if !ok {
		return catalog.ProductRecord{}, catalog.ErrProductNotFound
	}
	return rec, nil
}

type fakeHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return f.doFunc(req)
}

func testResolver() fakeResolver {
	return fakeResolver{records: map[catalog.ProductKey]catalog.ProductRecord{
		"gitlab": {ExternalID: "prodview-1", DisplayName: "GitLab", Vendor: "GitLab Inc."},
	}}
}

func testCreds() Credentials {
	return Credentials{
		AccessKeyID:     "ASIA_TEST",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}
}

func TestMinterMint(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		responseBody  string
		statusCode    int
		wantErr       error
		assertSuccess func(t *testing.T, redirect, endpoint string)
	}{
		{
			name:         "success",
			responseBody: `{"SigninToken":"token-123"}`,
			statusCode:   http.StatusOK,
			assertSuccess: func(t *testing.T, redirect, endpoint string) {
				t.Helper()
				parsed, err := url.Parse(redirect)
				if err != nil {
					t.Fatalf("failed to parse redirect URL: %v", err)
				}
				if !strings.HasPrefix(redirect, endpoint+"?") {
					t.Fatalf("redirect %q not rooted at signing endpoint", redirect)
				}
				q := parsed.Query()
				if q.Get("Action") != "login" {
					t.Fatalf("unexpected action: %q", q.Get("Action"))
				}
				if q.Get("Issuer") != "federate" {
					t.Fatalf("unexpected issuer: %q", q.Get("Issuer"))
				}
				if q.Get("Destination") != "https://console.example.com/products/prodview-1" {
					t.Fatalf("unexpected destination: %q", q.Get("Destination"))
				}
				if q.Get("SigninToken") != "token-123" {
					t.Fatalf("unexpected signin token: %q", q.Get("SigninToken"))
				}
				if got := strings.Count(redirect, "SigninToken="); got != 1 {
					t.Fatalf("SigninToken appears %d times, want 1", got)
				}
			},
		},
		{
			name:         "non-200 response",
			responseBody: "forbidden",
			statusCode:   http.StatusForbidden,
			wantErr:      ErrFederation,
		},
		{
			name:         "invalid json response",
			responseBody: "{not-json}",
			statusCode:   http.StatusOK,
			wantErr:      ErrFederation,
		},
		{
			name:         "empty signin token",
			responseBody: `{"SigninToken":""}`,
			statusCode:   http.StatusOK,
			wantErr:      ErrFederation,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Fatalf("parse form: %v", err)
				}
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %q", r.Method)
				}
				if r.PostForm.Get("Action") != "getSigninToken" {
					t.Fatalf("unexpected action: %q", r.PostForm.Get("Action"))
				}
				if r.PostForm.Get("SessionDuration") != strconv.Itoa(3600) {
					t.Fatalf("unexpected session duration: %q", r.PostForm.Get("SessionDuration"))
				}
				var descriptor map[string]string
				if err := json.Unmarshal([]byte(r.PostForm.Get("Session")), &descriptor); err != nil {
					t.Fatalf("parse session descriptor: %v", err)
				}
				if descriptor["sessionId"] != "ASIA_TEST" || descriptor["sessionKey"] != "secret" || descriptor["sessionToken"] != "token" {
					t.Fatalf("unexpected session descriptor: %v", descriptor)
				}
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(tc.responseBody))
			}))
			defer server.Close()

			m := newMinter(
				server.Client(),
				testResolver(),
				Allowlist{server.URL},
				server.URL,
				"federate",
				"https://console.example.com/products/",
				3600,
			)
			redirect, err := m.Mint(context.Background(), testCreds(), "gitlab")

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Mint returned error: %v", err)
			}
			tc.assertSuccess(t, redirect, server.URL)
		})
	}
}

func TestMinterRejectsUnlistedEndpoint(t *testing.T) {
	t.Parallel()

	called := false
	m := newMinter(
		fakeHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
			called = true
			return nil, errors.New("must not be called")
		}},
		testResolver(),
		Allowlist{"https://signin.aws.amazon.com/federation"},
		"https://other.example.com/federation",
		"federate",
		"https://console.example.com/products/",
		3600,
	)

	_, err := m.Mint(context.Background(), testCreds(), "gitlab")
	if !errors.Is(err, ErrSecurity) {
		t.Fatalf("expected ErrSecurity, got %v", err)
	}
	if called {
		t.Fatal("signing request was sent despite unlisted endpoint")
	}
}

func TestMinterUnknownProduct(t *testing.T) {
	t.Parallel()

	m := newMinter(
		fakeHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("must not be called")
		}},
		testResolver(),
		Allowlist{"https://signin.aws.amazon.com/federation"},
		"https://signin.aws.amazon.com/federation",
		"federate",
		"https://console.example.com/products/",
		3600,
	)

	_, err := m.Mint(context.Background(), testCreds(), "unknown")
	if !errors.Is(err, catalog.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestMinterClientError(t *testing.T) {
	t.Parallel()

	endpoint := "https://signin.aws.amazon.com/federation"
	m := newMinter(
		fakeHTTPClient{doFunc: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("network error")
		}},
		testResolver(),
		Allowlist{endpoint},
		endpoint,
		"federate",
		"https://console.example.com/products/",
		3600,
	)

	_, err := m.Mint(context.Background(), testCreds(), "gitlab")
	if !errors.Is(err, ErrFederation) {
		t.Fatalf("expected ErrFederation, got %v", err)
	}
	if !strings.Contains(err.Error(), "network error") {
		t.Fatalf("expected wrapped network error, got %v", err)
	}
}
