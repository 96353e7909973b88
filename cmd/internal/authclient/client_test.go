package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shieldgate/cmd/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(nil, srv.URL, 5*time.Second)
}

func TestLogin_Success(t *testing.T) {
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/login/" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":         "success",
			"access_token":   "tok-abc",
			"dashboard_type": "centralbank",
			"full_name":      "Administrator",
		})
	})

	grant, err := c.Login(context.Background(), session.RoleCentralbank, "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if grant.Token != "tok-abc" || grant.Role != session.RoleCentralbank || grant.DisplayName != "Administrator" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if gotBody["username"] != "admin" || gotBody["password"] != "secret" || gotBody["dashboard_type"] != "centralbank" {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
}

func TestLogin_FailureEnvelopeOn200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "error",
			"detail": "Invalid admin credentials",
		})
	})

	_, err := c.Login(context.Background(), session.RoleCentralbank, "admin", "bad password")
	if !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := session.DisplayMessage(err); got != "Invalid admin credentials" {
		t.Fatalf("DisplayMessage=%q", got)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid MANIT credentials"})
	})

	_, err := c.Login(context.Background(), session.RoleManit, "bhopal", "bad password")
	if !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := session.DisplayMessage(err); got != "Invalid MANIT credentials" {
		t.Fatalf("DisplayMessage=%q", got)
	}
}

func TestLogin_UnauthorizedWithoutDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Login(context.Background(), session.RoleCentralbank, "admin", "bad password")
	if !errors.Is(err, session.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := session.DisplayMessage(err); got != "Login failed" {
		t.Fatalf("DisplayMessage=%q", got)
	}
}

func TestLogin_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	})

	_, err := c.Login(context.Background(), session.RoleCentralbank, "admin", "secret")
	if !errors.Is(err, session.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestLogin_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})

	_, err := c.Login(context.Background(), session.RoleCentralbank, "admin", "secret")
	if !errors.Is(err, session.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestLogin_SuccessWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})

	_, err := c.Login(context.Background(), session.RoleCentralbank, "admin", "secret")
	if !errors.Is(err, session.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestLogin_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := New(nil, srv.URL, time.Second)

	_, err := c.Login(context.Background(), session.RoleManit, "bhopal", "secret")
	if !errors.Is(err, session.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
	if got := session.DisplayMessage(err); got != "Network error. Please try again." {
		t.Fatalf("DisplayMessage=%q", got)
	}
}

func TestLogin_RejectsNonCredentialKind(t *testing.T) {
	c := New(nil, "http://127.0.0.1:0", time.Second)

	if _, err := c.Login(context.Background(), session.RoleGeneric, "x", "y"); err == nil {
		t.Fatalf("expected error for non-credential kind")
	}
}
