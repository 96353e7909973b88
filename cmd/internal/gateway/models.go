package gateway

import (
	"shieldgate/cmd/internal/session"
	"shieldgate/cmd/internal/view"
)

type bootstrapRequest struct {
	// Query is the raw query string of the page address, exactly as the
	// presentation layer sees it (leading "?" optional).
	Query string `json:"query"`
}

type loginRequest struct {
	Kind     string `json:"kind"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type navigateRequest struct {
	View string `json:"view"`
}

type sessionPayload struct {
	Authenticated bool   `json:"authenticated"`
	SubjectID     string `json:"subject_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	RoleKind      string `json:"role_kind"`
	Origin        string `json:"origin"`
	Token         string `json:"token,omitempty"`
}

// stateResponse is the session/navigation snapshot returned by most
// endpoints and pushed on the event stream after every transition.
type stateResponse struct {
	State      string         `json:"state"`
	Session    sessionPayload `json:"session"`
	ActiveView string         `json:"active_view"`
}

type bootstrapResponse struct {
	stateResponse

	Branch string `json:"branch"`

	// Query is what the presentation layer must install in the visible
	// address; on the federated branch the one-shot parameters are gone.
	Query string `json:"query"`
}

type oauthURLResponse struct {
	URL string `json:"url"`
}

func toSessionPayload(s session.Session) sessionPayload {
	p := sessionPayload{
		Authenticated: s.Authenticated(),
		RoleKind:      string(session.RoleNone),
		Origin:        string(session.OriginNone),
	}
	if s.Authenticated() {
		p.SubjectID = s.SubjectID
		p.DisplayName = s.Name()
		p.RoleKind = string(s.Role)
		p.Origin = string(s.Origin)
		p.Token = s.Token
	}
	return p
}

func toStateResponse(st session.State, s session.Session, active view.View) stateResponse {
	return stateResponse{
		State:      string(st),
		Session:    toSessionPayload(s),
		ActiveView: string(active),
	}
}
