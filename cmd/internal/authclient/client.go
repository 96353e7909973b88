// Package authclient is the network boundary to the remote FraudShield auth
// service. It exchanges credentials for a bearer token and role; it holds no
// state and performs no retries.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shieldgate/cmd/internal/session"
)

const (
	loginPath = "/admin/login/"

	// maxResponseBytes bounds how much of a response body is read. The real
	// service answers in a few hundred bytes.
	maxResponseBytes = 1 << 20
)

// Client posts credential logins to the remote auth service.
type Client struct {
	log     *slog.Logger
	baseURL string
	httpc   *http.Client
}

// New constructs a Client against the given base URL ("https://host[:port]").
func New(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	DashboardType string `json:"dashboard_type"`
}

type loginResponse struct {
	Status        string `json:"status"`
	AccessToken   string `json:"access_token"`
	DashboardType string `json:"dashboard_type"`
	FullName      string `json:"full_name"`
	Detail        string `json:"detail"`
}

// Login exchanges credentials for a Grant.
//
// Classification:
//   - transport failure or unparseable JSON  -> AuthError{ErrNetworkFailure}
//   - parseable body, status != "success" on a 2xx/401/403 response
//     -> AuthError{ErrInvalidCredentials} carrying the server's detail
//   - parseable body on any other non-2xx (5xx and friends)
//     -> AuthError{ErrNetworkFailure}
//
// No retry on failure: the error surfaces immediately so the caller can
// re-prompt. Silent retry loops against a login endpoint invite lockouts.
func (c *Client) Login(ctx context.Context, kind session.RoleKind, username, password string) (session.Grant, error) {
	if !kind.CredentialKind() {
		return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "unknown institution"}
	}

	body, err := json.Marshal(loginRequest{
		Username:      username,
		Password:      password,
		DashboardType: string(kind),
	})
	if err != nil {
		return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "Network error. Please try again."}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "Network error. Please try again."}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("authclient.login.transport.fail", "err", err)
		return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "Network error. Please try again."}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.log.Warn("authclient.login.read.fail", "err", err)
		return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "Network error. Please try again."}
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		c.log.Warn("authclient.login.decode.fail", "status", resp.StatusCode, "err", err)
		return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "Network error. Please try again."}
	}

	ok2xx := resp.StatusCode >= 200 && resp.StatusCode < 300

	if lr.Status == "success" && ok2xx {
		if lr.AccessToken == "" {
			c.log.Warn("authclient.login.malformed", "status", resp.StatusCode)
			return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "Network error. Please try again."}
		}
		return session.Grant{
			Token:       lr.AccessToken,
			Role:        session.ParseRoleKind(lr.DashboardType),
			DisplayName: strings.TrimSpace(lr.FullName),
		}, nil
	}

	// The service reports authentication failures either as a 2xx envelope
	// with status != "success" or as a 401/403 carrying a detail message.
	if ok2xx || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		msg := strings.TrimSpace(lr.Detail)
		if msg == "" {
			msg = "Login failed"
		}
		return session.Grant{}, session.AuthError{Kind: session.ErrInvalidCredentials, Message: msg}
	}

	c.log.Warn("authclient.login.server.fail", "status", resp.StatusCode)
	return session.Grant{}, session.AuthError{Kind: session.ErrNetworkFailure, Message: "Network error. Please try again."}
}
