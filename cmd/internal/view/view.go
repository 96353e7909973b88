// Package view maps session state onto the fixed set of presentation views
// and enforces the role guards on navigation.
package view

import "shieldgate/cmd/internal/session"

// View names one of the presentation layer's pages. The values are the wire
// names the frontends have always used (mixed case included).
type View string

const (
	Home           View = "home"
	Dashboard      View = "dashboard"
	Admin          View = "admin"
	AdminDashboard View = "adminDashboard"
	Manit          View = "manit"
	ManitDashboard View = "manitDashboard"
)

// Parse validates a requested view name.
func Parse(s string) (View, bool) {
	switch View(s) {
	case Home, Dashboard, Admin, AdminDashboard, Manit, ManitDashboard:
		return View(s), true
	default:
		return "", false
	}
}

// Landing is the view a freshly established (or rehydrated) session lands
// on, purely as a function of its role.
func Landing(s session.Session) View {
	switch s.Role {
	case session.RoleCentralbank:
		return AdminDashboard
	case session.RoleManit:
		return ManitDashboard
	default:
		if s.Authenticated() {
			return Dashboard
		}
		return Home
	}
}

// Resolve applies the guard table to a navigation request and returns the
// view actually shown. It is pure: no session mutation, no side effects.
//
//	requested        requires             fallback
//	dashboard        any authenticated    home
//	adminDashboard   centralbank          admin (login)
//	manitDashboard   manit                manit (login)
//	home/admin/manit —                    always reachable
func Resolve(s session.Session, requested View) View {
	switch requested {
	case Dashboard:
		if s.Authenticated() {
			return Dashboard
		}
		return Home
	case AdminDashboard:
		if s.Role == session.RoleCentralbank {
			return AdminDashboard
		}
		return Admin
	case ManitDashboard:
		if s.Role == session.RoleManit {
			return ManitDashboard
		}
		return Manit
	case Home, Admin, Manit:
		return requested
	default:
		return Home
	}
}
