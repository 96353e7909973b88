package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"shieldgate/cmd/internal/metrics"
)

// State is the machine state. It is a pure function of the session role, so
// role and routed view can never diverge.
type State string

const (
	StateLoggedOut                State = "logged_out"
	StateAuthenticatingCredential State = "authenticating_credential"
	StateAuthenticatedGeneric     State = "authenticated_generic"
	StateAuthenticatedCentralbank State = "authenticated_centralbank"
	StateAuthenticatedManit       State = "authenticated_manit"
)

// StateFor maps a session onto its machine state.
func StateFor(s Session) State {
	switch {
	case s.Empty():
		return StateLoggedOut
	case s.Role == RoleCentralbank:
		return StateAuthenticatedCentralbank
	case s.Role == RoleManit:
		return StateAuthenticatedManit
	default:
		return StateAuthenticatedGeneric
	}
}

// CredentialExchanger is the network boundary to the remote auth service.
// Implemented by authclient.Client; tests substitute fakes.
type CredentialExchanger interface {
	Login(ctx context.Context, kind RoleKind, username, password string) (Grant, error)
}

// Machine owns the single in-memory authentication state of the process.
//
// Transitions are serialized: each one runs to completion, including its
// persistence side effect, before the next may start. The credential
// exchange itself runs outside the lock; its completion is matched against
// the attempt ID it was issued under, so a late response from a superseded
// attempt can never overwrite a newer session.
type Machine struct {
	log      *slog.Logger
	store    Store
	exchange CredentialExchanger

	mu      sync.Mutex
	state   State
	session Session
	attempt string // ULID of the in-flight credential attempt, "" when none
}

// NewMachine constructs a Machine in the LoggedOut state. The initial state
// is established afterwards by feeding it the callback interpreter's outcome
// via Restore.
func NewMachine(log *slog.Logger, store Store, exchange CredentialExchanger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		log:      log,
		store:    store,
		exchange: exchange,
		state:    StateLoggedOut,
	}
}

// Snapshot returns the current state and session.
func (m *Machine) Snapshot() (State, Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.session
}

// Restore adopts an already-established session (rehydration or federated
// callback, both pre-persisted by the interpreter). It supersedes any
// in-flight credential attempt: the late exchange result will be discarded.
func (m *Machine) Restore(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempt = ""
	m.session = s
	m.state = StateFor(s)
}

// SubmitCredentials drives LoggedOut -> AuthenticatingCredential ->
// Authenticated*|LoggedOut.
//
// A second call while an attempt is outstanding is rejected with
// ErrLoginInFlight before any network traffic, so two results can never race
// into the store. A failed exchange surfaces its error unchanged and leaves
// no persistence side effect.
func (m *Machine) SubmitCredentials(ctx context.Context, kind RoleKind, username, password string) (Session, error) {
	username = strings.TrimSpace(username)

	m.mu.Lock()
	switch m.state {
	case StateAuthenticatingCredential:
		m.mu.Unlock()
		metrics.LoginAttempts.WithLabelValues("rejected_in_flight").Inc()
		return Session{}, ErrLoginInFlight
	case StateLoggedOut:
		// proceed
	default:
		m.mu.Unlock()
		return Session{}, ErrAlreadyAuthenticated
	}

	attempt := ulid.Make().String()
	m.state = StateAuthenticatingCredential
	m.attempt = attempt
	m.mu.Unlock()

	m.log.Debug("machine.login.start", "attempt", attempt, "kind", string(kind), "subject", username)

	start := time.Now()
	grant, err := m.exchange.Login(ctx, kind, username, password)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attempt != attempt {
		// Logout or a federated callback happened while the exchange was in
		// flight; the machine has moved on.
		m.log.Warn("machine.login.stale", "attempt", attempt, "duration_ms", time.Since(start).Milliseconds())
		metrics.LoginAttempts.WithLabelValues("stale").Inc()
		return Session{}, ErrStaleAttempt
	}
	m.attempt = ""

	if err != nil {
		m.state = StateLoggedOut
		m.session = Session{}
		m.log.Info("machine.login.fail", "attempt", attempt, "err", err)
		metrics.LoginAttempts.WithLabelValues(loginFailureOutcome(err)).Inc()
		return Session{}, err
	}

	// The submitted kind decides the role unless the server disagrees; the
	// server wins so a client cannot claim an institution it was not granted.
	role := kind
	if !grant.Role.None() && grant.Role != kind {
		m.log.Warn("machine.login.role_conflict", "submitted", string(kind), "granted", string(grant.Role))
		metrics.RoleConflicts.Inc()
		role = grant.Role
	}

	sess := Session{
		Token:       grant.Token,
		SubjectID:   username,
		DisplayName: grant.DisplayName,
		Role:        role,
		Origin:      OriginCredential,
	}

	if err := m.store.Save(ctx, sess); err != nil {
		// The identity is valid even if it will not survive a restart; worst
		// case is a re-login. Auth failures must never be fatal.
		m.log.Error("machine.login.persist.fail", "err", err)
	}

	m.session = sess
	m.state = StateFor(sess)
	m.log.Info("machine.login.success", "subject", sess.SubjectID, "role", string(sess.Role), "duration_ms", time.Since(start).Milliseconds())
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	return sess, nil
}

// Logout tears the identity down from any state: store cleared, in-memory
// session reset, any in-flight credential attempt superseded.
func (m *Machine) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempt = ""
	m.session = Session{}
	m.state = StateLoggedOut

	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("machine.logout.clear.fail", "err", err)
	}

	m.log.Info("machine.logout")
	metrics.Logouts.Inc()
}

// loginFailureOutcome buckets an exchange error for the attempt counter.
func loginFailureOutcome(err error) string {
	if errors.Is(err, ErrInvalidCredentials) {
		return "invalid_credentials"
	}
	return "network_failure"
}
