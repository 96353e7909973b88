package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeExchanger is a scriptable CredentialExchanger. If block is non-nil,
// Login waits for it to be closed before returning.
type fakeExchanger struct {
	grant Grant
	err   error
	block chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeExchanger) Login(ctx context.Context, kind RoleKind, username, password string) (Grant, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return Grant{}, ctx.Err()
		}
	}
	return f.grant, f.err
}

func (f *fakeExchanger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestMachine_SubmitCredentials_Success(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	ex := &fakeExchanger{grant: Grant{Token: "abc", Role: RoleCentralbank, DisplayName: "Administrator"}}
	m := NewMachine(nil, st, ex)

	sess, err := m.SubmitCredentials(ctx, RoleCentralbank, "admin", "secret")
	if err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}

	if sess.Token != "abc" || sess.SubjectID != "admin" || sess.Role != RoleCentralbank {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Origin != OriginCredential {
		t.Fatalf("origin=%q, want credential", sess.Origin)
	}

	state, _ := m.Snapshot()
	if state != StateAuthenticatedCentralbank {
		t.Fatalf("state=%q, want authenticated_centralbank", state)
	}

	persisted, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load after login: %v", err)
	}
	if persisted != sess {
		t.Fatalf("persisted=%+v, want %+v", persisted, sess)
	}
}

func TestMachine_SubmitCredentials_ServerRoleWins(t *testing.T) {
	ex := &fakeExchanger{grant: Grant{Token: "abc", Role: RoleManit}}
	m := NewMachine(nil, NewMemoryStore(), ex)

	sess, err := m.SubmitCredentials(context.Background(), RoleCentralbank, "admin", "secret")
	if err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}
	if sess.Role != RoleManit {
		t.Fatalf("role=%q, want server-granted manit", sess.Role)
	}
}

func TestMachine_SubmitCredentials_SubmittedKindStandsWhenServerSilent(t *testing.T) {
	ex := &fakeExchanger{grant: Grant{Token: "abc"}}
	m := NewMachine(nil, NewMemoryStore(), ex)

	sess, err := m.SubmitCredentials(context.Background(), RoleManit, "bhopal", "secret")
	if err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}
	if sess.Role != RoleManit {
		t.Fatalf("role=%q, want submitted manit", sess.Role)
	}
}

func TestMachine_SubmitCredentials_InvalidLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	ex := &fakeExchanger{err: AuthError{Kind: ErrInvalidCredentials, Message: "Invalid admin credentials"}}
	m := NewMachine(nil, st, ex)

	_, err := m.SubmitCredentials(ctx, RoleCentralbank, "admin", "bad password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := DisplayMessage(err); got != "Invalid admin credentials" {
		t.Fatalf("DisplayMessage=%q", got)
	}

	state, sess := m.Snapshot()
	if state != StateLoggedOut || !sess.Empty() {
		t.Fatalf("failed login must land logged out, got state=%q session=%+v", state, sess)
	}
	if len(st.raw()) != 0 {
		t.Fatalf("failed login must not persist anything: %v", st.raw())
	}
}

func TestMachine_SubmitCredentials_RejectsWhileInFlight(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	ex := &fakeExchanger{grant: Grant{Token: "abc"}, block: release}
	m := NewMachine(nil, NewMemoryStore(), ex)

	done := make(chan error, 1)
	go func() {
		_, err := m.SubmitCredentials(ctx, RoleCentralbank, "admin", "secret")
		done <- err
	}()

	waitForState(t, m, StateAuthenticatingCredential)

	if _, err := m.SubmitCredentials(ctx, RoleCentralbank, "admin", "secret"); !errors.Is(err, ErrLoginInFlight) {
		t.Fatalf("expected ErrLoginInFlight, got %v", err)
	}
	if ex.callCount() != 1 {
		t.Fatalf("rejected attempt must not reach the exchanger, calls=%d", ex.callCount())
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first attempt: %v", err)
	}
}

func TestMachine_SubmitCredentials_RejectsWhenAuthenticated(t *testing.T) {
	m := NewMachine(nil, NewMemoryStore(), &fakeExchanger{grant: Grant{Token: "abc"}})

	if _, err := m.SubmitCredentials(context.Background(), RoleCentralbank, "admin", "secret"); err != nil {
		t.Fatalf("first login: %v", err)
	}
	_, err := m.SubmitCredentials(context.Background(), RoleCentralbank, "admin", "secret")
	if !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("expected ErrAlreadyAuthenticated, got %v", err)
	}
}

func TestMachine_LogoutSupersedesInFlightAttempt(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	release := make(chan struct{})
	ex := &fakeExchanger{grant: Grant{Token: "late"}, block: release}
	m := NewMachine(nil, st, ex)

	done := make(chan error, 1)
	go func() {
		_, err := m.SubmitCredentials(ctx, RoleManit, "bhopal", "secret")
		done <- err
	}()

	waitForState(t, m, StateAuthenticatingCredential)
	m.Logout(ctx)
	close(release)

	if err := <-done; !errors.Is(err, ErrStaleAttempt) {
		t.Fatalf("expected ErrStaleAttempt, got %v", err)
	}

	state, sess := m.Snapshot()
	if state != StateLoggedOut || !sess.Empty() {
		t.Fatalf("late result must not resurrect the session: state=%q session=%+v", state, sess)
	}
	if len(st.raw()) != 0 {
		t.Fatalf("late result must not persist anything: %v", st.raw())
	}
}

func TestMachine_Logout(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	m := NewMachine(nil, st, &fakeExchanger{grant: Grant{Token: "abc"}})

	if _, err := m.SubmitCredentials(ctx, RoleCentralbank, "admin", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	m.Logout(ctx)

	state, sess := m.Snapshot()
	if state != StateLoggedOut || !sess.Empty() {
		t.Fatalf("logout must reset, got state=%q session=%+v", state, sess)
	}
	if len(st.raw()) != 0 {
		t.Fatalf("logout must clear the store: %v", st.raw())
	}
}

func TestMachine_RestoreAdoptsSession(t *testing.T) {
	m := NewMachine(nil, NewMemoryStore(), &fakeExchanger{})

	sess := Session{Token: "t", SubjectID: "a@b.com", DisplayName: "Ada", Role: RoleGeneric, Origin: OriginFederated}
	m.Restore(sess)

	state, got := m.Snapshot()
	if state != StateAuthenticatedGeneric || got != sess {
		t.Fatalf("Restore: state=%q session=%+v", state, got)
	}
}

func waitForState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if state, _ := m.Snapshot(); state == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	state, _ := m.Snapshot()
	t.Fatalf("timed out waiting for state %q, at %q", want, state)
}
