// Package gateway exposes the session controller to the presentation layer:
// a small JSON API for bootstrap, login, logout, and navigation, plus a
// WebSocket stream pushing a state snapshot after every transition.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"shieldgate/cmd/internal/callback"
	"shieldgate/cmd/internal/session"
	"shieldgate/cmd/internal/view"
)

const maxBodyBytes int64 = 1 << 20

// Handler owns the machine, the interpreter, and the transient navigation
// state. Navigation is recomputed on every session change and every explicit
// request; it is never persisted.
type Handler struct {
	log     *slog.Logger
	machine *session.Machine
	interp  *callback.Interpreter
	events  *Broadcaster

	// oauthURL is where the presentation layer sends the user when they
	// click federated login. Exposed, never auto-navigated: unconditional
	// redirect-on-load would hijack every anonymous home-page visit.
	oauthURL string

	mu     sync.Mutex
	active view.View
}

// NewHandler constructs the gateway.
func NewHandler(log *slog.Logger, machine *session.Machine, interp *callback.Interpreter, events *Broadcaster, oauthURL string) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		machine:  machine,
		interp:   interp,
		events:   events,
		oauthURL: oauthURL,
		active:   view.Home,
	}
}

// Boot interprets the startup environment (no URL parameters, so only the
// durable store can win) and primes the machine and navigation state before
// the server starts accepting requests.
func (h *Handler) Boot(ctx context.Context) {
	outcome := h.interp.Interpret(ctx, url.Values{})
	h.machine.Restore(outcome.Session)
	snap := h.setActive(outcome.View)
	h.log.Info("gateway.boot", "branch", string(outcome.Branch), "state", snap.State, "view", snap.ActiveView)
}

// Register wires the session routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/session", h.handleSession)
	mux.HandleFunc("/session/bootstrap", h.handleBootstrap)
	mux.HandleFunc("/session/login", h.handleLogin)
	mux.HandleFunc("/session/logout", h.handleLogout)
	mux.HandleFunc("/session/navigate", h.handleNavigate)
	mux.HandleFunc("/session/oauth-url", h.handleOAuthURL)
	if h.events != nil {
		mux.HandleFunc("/session/events", h.events.HandleWS)
	}
}

// setActive swaps the navigation state and returns the snapshot under one
// lock acquisition, so concurrent requests observe consistent pairs.
func (h *Handler) setActive(v view.View) stateResponse {
	st, sess := h.machine.Snapshot()

	h.mu.Lock()
	h.active = v
	h.mu.Unlock()

	return toStateResponse(st, sess, v)
}

func (h *Handler) snapshot() stateResponse {
	st, sess := h.machine.Snapshot()

	h.mu.Lock()
	active := h.active
	h.mu.Unlock()

	return toStateResponse(st, sess, active)
}

func (h *Handler) publish(snap stateResponse) {
	if h.events != nil {
		h.events.Publish(snap)
	}
}

// ---- handlers ----

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req bootstrapRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	query, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(req.Query), "?"))
	if err != nil {
		// A mangled address is not an auth failure; interpret with no
		// parameters instead of refusing to start.
		h.log.Warn("gateway.bootstrap.bad_query", "err", err)
		query = url.Values{}
	}

	outcome := h.interp.Interpret(r.Context(), query)
	h.machine.Restore(outcome.Session)
	snap := h.setActive(outcome.View)
	h.publish(snap)

	writeJSON(w, http.StatusOK, bootstrapResponse{
		stateResponse: snap,
		Branch:        string(outcome.Branch),
		Query:         outcome.Query.Encode(),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	kind := session.ParseRoleKind(req.Kind)
	if !kind.CredentialKind() {
		writeError(w, http.StatusBadRequest, "invalid_request", "kind must be centralbank or manit")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	sess, err := h.machine.SubmitCredentials(r.Context(), kind, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrLoginInFlight):
			writeError(w, http.StatusConflict, "login_in_flight", "a login attempt is already in progress")
		case errors.Is(err, session.ErrAlreadyAuthenticated):
			writeError(w, http.StatusConflict, "already_authenticated", "log out before logging in again")
		case errors.Is(err, session.ErrStaleAttempt):
			writeError(w, http.StatusConflict, "stale_attempt", "the session changed while logging in")
		case errors.Is(err, session.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", session.DisplayMessage(err))
		default:
			writeError(w, http.StatusBadGateway, "network_failure", session.DisplayMessage(err))
		}
		return
	}

	snap := h.setActive(view.Landing(sess))
	h.publish(snap)
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h.machine.Logout(r.Context())
	snap := h.setActive(view.Home)
	h.publish(snap)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req navigateRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	requested, ok := view.Parse(strings.TrimSpace(req.View))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_view", "unknown view")
		return
	}

	_, sess := h.machine.Snapshot()
	snap := h.setActive(view.Resolve(sess, requested))
	h.publish(snap)
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleOAuthURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, oauthURLResponse{URL: h.oauthURL})
}
