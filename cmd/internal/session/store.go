package session

import "context"

// Store field keys. They mirror the record layout the dashboard frontends
// have always used, so an existing persisted session rehydrates unchanged.
const (
	KeyToken         = "token"
	KeyUsername      = "username"
	KeyFullName      = "full_name"
	KeyDashboardType = "dashboard_type"

	// KeyLegacyRole was written by earlier releases. It is never written
	// anymore but MUST still be removed on Clear so no residual identity
	// survives a logout on a shared machine.
	KeyLegacyRole = "role"
)

// StoreKeys is every key a Store may ever have written, including legacy
// ones. Clear removes exactly this set.
var StoreKeys = []string{KeyToken, KeyUsername, KeyFullName, KeyDashboardType, KeyLegacyRole}

// Store is the durable persistence surface for the session record.
//
// Load degrades instead of failing open: a partial or inconsistent record
// yields the empty Session together with ErrCorruptRecord so callers can
// count it; callers must treat any Load error as "logged out". Save is atomic
// from the caller's perspective: no reader may observe a token without its
// role. Clear removes every key in StoreKeys.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// decodeRecord rebuilds a Session from raw store fields.
//
// An all-empty record is simply a logged-out store. Anything partial (token
// without username, token without a parseable role, stray fields without a
// token) is corrupt and decodes to empty + ErrCorruptRecord: fail safe to
// logged-out rather than invent an identity.
func decodeRecord(fields map[string]string) (Session, error) {
	token := fields[KeyToken]
	username := fields[KeyUsername]
	fullName := fields[KeyFullName]
	role := ParseRoleKind(fields[KeyDashboardType])

	if token == "" && username == "" && fullName == "" && role.None() {
		return Session{}, nil
	}
	if token == "" || username == "" || role.None() {
		return Session{}, ErrCorruptRecord
	}

	s := Session{
		Token:       token,
		SubjectID:   username,
		DisplayName: fullName,
		Role:        role,
		Origin:      inferOrigin(role),
	}
	if err := s.Validate(); err != nil {
		return Session{}, ErrCorruptRecord
	}
	return s, nil
}

// encodeRecord flattens a Session into the four written store fields.
// KeyLegacyRole is intentionally absent: it is cleared, never written.
func encodeRecord(s Session) map[string]string {
	return map[string]string{
		KeyToken:         s.Token,
		KeyUsername:      s.SubjectID,
		KeyFullName:      s.DisplayName,
		KeyDashboardType: string(s.Role),
	}
}
