package portal

import "portal-realtime/internal/session"

type Area string

const (
	AreaDashboard Area = "dashboard"
	AreaPortal    Area = "portal"
	AreaHome      Area = "home"
)

const (
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
	PathPortal    = "/portal"
)

// Decision is the outcome of a guard check. When Allow is false, Redirect
// names where to send the user instead.
type Decision struct {
	Allow    bool
	Redirect string
}

// Guard decides whether st may enter area. The dashboard takes any signed-in
// user, the portal only clients, and home always redirects by role.
func Guard(st session.State, area Area) Decision {
	if !st.SignedIn() {
		return Decision{Redirect: PathLogin}
	}
	isClient := st.User.Role == session.RoleClient

	switch area {
	case AreaDashboard:
		return Decision{Allow: true}
	case AreaPortal:
		if !isClient {
			return Decision{Redirect: PathDashboard}
		}
		return Decision{Allow: true}
	default:
		if isClient {
			return Decision{Redirect: PathPortal}
		}
		return Decision{Redirect: PathDashboard}
	}
}
