package session

import "strings"

// RoleKind is the dashboard variant an authenticated identity is authorized
// to view. Exactly one value is active at any time.
type RoleKind string

const (
	// RoleNone means no identity is established.
	RoleNone RoleKind = "none"

	// RoleGeneric is a federated (OAuth) visitor with the plain dashboard.
	RoleGeneric RoleKind = "generic"

	// RoleCentralbank is a central-bank operator account.
	RoleCentralbank RoleKind = "centralbank"

	// RoleManit is a MANIT institution account.
	RoleManit RoleKind = "manit"
)

// ParseRoleKind maps a stored or wire dashboard_type value onto a RoleKind.
// The remote service historically reported values like "basic" for federated
// users; unknown non-empty values collapse to RoleGeneric rather than failing.
func ParseRoleKind(s string) RoleKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RoleNone
	case string(RoleCentralbank):
		return RoleCentralbank
	case string(RoleManit):
		return RoleManit
	default:
		return RoleGeneric
	}
}

// CredentialKind reports whether the role names an institution that can log
// in with username/password.
func (r RoleKind) CredentialKind() bool {
	return r == RoleCentralbank || r == RoleManit
}

// None reports whether the role is absent. The zero value counts as none so
// that the zero Session is the logged-out session.
func (r RoleKind) None() bool {
	return r == RoleNone || r == ""
}

// Origin tags how a session was established. Federated sessions may need
// re-validation through the identity provider on refresh; credential sessions
// do not.
type Origin string

const (
	OriginNone       Origin = "none"
	OriginFederated  Origin = "federated"
	OriginCredential Origin = "credential"
)

// inferOrigin recovers the origin of a rehydrated session from its role:
// generic roles only ever come from the federated path, institution roles
// from the credential path.
func inferOrigin(r RoleKind) Origin {
	if r.CredentialKind() {
		return OriginCredential
	}
	return OriginFederated
}

// Session is the authenticated identity, if any. The zero value is the
// logged-out session.
type Session struct {
	// Token is the opaque bearer credential, empty when logged out. This
	// process never inspects it cryptographically; it only carries it.
	Token string

	// SubjectID is the stable identifier for the user (email or username).
	SubjectID string

	// DisplayName is the human-readable name. Use Name to read it with the
	// SubjectID fallback applied.
	DisplayName string

	Role   RoleKind
	Origin Origin
}

// Empty reports whether no identity is established.
func (s Session) Empty() bool { return s.Token == "" }

// Authenticated reports whether an identity is established.
func (s Session) Authenticated() bool { return s.Token != "" }

// Name returns the display name, defaulting to the subject ID.
func (s Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.SubjectID
}

// Validate enforces the core invariant: Role is none if and only if Token is
// absent, and an authenticated session always carries a subject.
func (s Session) Validate() error {
	if s.Authenticated() == s.Role.None() {
		return ErrInvariant
	}
	if s.Authenticated() && s.SubjectID == "" {
		return ErrInvariant
	}
	return nil
}

// Grant is the result of a successful credential exchange with the remote
// auth service. Role is RoleNone when the server did not report one; the
// submitted institution kind then stands.
type Grant struct {
	Token       string
	Role        RoleKind
	DisplayName string
}
