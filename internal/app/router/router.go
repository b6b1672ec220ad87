/*
Package router decides which view a navigation request lands on.

Resolve is a pure function of the session state, the requested view and the admin policy.
Router adds the one piece of memory navigation needs: the one-shot redirect of an
admin-eligible user to the admin view when their session is first established.
*/
package router

import (
	"fmt"
	"strings"
	"sync"

	"nyscmate/internal/app/session"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
)

// View is a routing key naming one screen.
type View string

const (
	ViewLoading         View = "loading"
	ViewAuth            View = "auth"
	ViewDashboard       View = "dashboard"
	ViewChat            View = "chat"
	ViewResources       View = "resources"
	ViewTools           View = "tools"
	ViewCommunity       View = "community"
	ViewChecklist       View = "checklist"
	ViewClearance       View = "clearance"
	ViewClearanceReview View = "clearance-review"
	ViewAdmin           View = "admin"
)

// Views lists every routable view.
var Views = []View{
	ViewLoading, ViewAuth, ViewDashboard, ViewChat, ViewResources, ViewTools,
	ViewCommunity, ViewChecklist, ViewClearance, ViewClearanceReview, ViewAdmin,
}

// ParseView looks up a view by name.
func ParseView(name string) (View, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, v := range Views {
		if string(v) == name {
			return v, true
		}
	}
	return "", false
}

// Decision is the outcome of a navigation request.
type Decision struct {
	// View is where the user ends up.
	View View

	// Requested is the view that was asked for.
	Requested View

	// Denied is set when View differs from Requested because a gate refused access.
	// It carries an ErrRouterDenied error.
	Denied *errs.CustomError
}

// Redirected reports whether the user was sent somewhere other than where they asked.
func (d Decision) Redirected() bool {
	return d.View != d.Requested
}

// Resolve maps (state, requested view) to a decision.
//
//   - Loading always shows the loading view.
//   - Without a session only the auth view is reachable.
//   - With a session the auth view forwards to the dashboard.
//   - admin requires policy.IsAdmin; clearance-review requires Official or Admin;
//     clearance requires Corps Member. Refusals land on the dashboard.
func Resolve(state session.State, requested View, policy user.AdminPolicy) Decision {
	d := Decision{View: requested, Requested: requested}

	deny := func(to View) Decision {
		d.View = to
		d.Denied = errs.NewError(errs.ErrRouterDenied, requested)
		return d
	}

	switch {
	case state.Status == session.StatusLoading:
		d.View = ViewLoading
		return d
	case !state.Authenticated():
		if requested == ViewAuth {
			return d
		}
		return deny(ViewAuth)
	}

	p := state.Profile
	switch requested {
	case ViewAuth, ViewLoading:
		d.View = ViewDashboard
	case ViewAdmin:
		if !policy.IsAdmin(p) {
			return deny(ViewDashboard)
		}
	case ViewClearanceReview:
		if !user.CanReviewClearance(p) {
			return deny(ViewDashboard)
		}
	case ViewClearance:
		if !user.CanRequestClearance(p) {
			return deny(ViewDashboard)
		}
	default:
		if _, ok := ParseView(string(requested)); !ok {
			d.View = ViewDashboard
			d.Denied = errs.NewError(errs.ErrRouterDenied, requested)
		}
	}
	return d
}

// Router tracks the current view and the one-shot admin redirect.
type Router struct {
	policy user.AdminPolicy

	mu      sync.Mutex
	current View
	// autoAdminArmed is true until an admin-eligible session has been redirected once.
	// It re-arms when the session ends.
	autoAdminArmed bool
}

// New returns a router in the loading view with the admin redirect armed.
func New(policy user.AdminPolicy) *Router {
	return &Router{policy: policy, current: ViewLoading, autoAdminArmed: true}
}

// Policy returns the admin policy the router applies.
func (r *Router) Policy() user.AdminPolicy {
	return r.policy
}

// Current returns the view last navigated to.
func (r *Router) Current() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate resolves requested against state and records where the user landed.
func (r *Router) Navigate(state session.State, requested View) Decision {
	d := Resolve(state, requested, r.policy)
	r.mu.Lock()
	r.current = d.View
	r.mu.Unlock()
	return d
}

// Observe reacts to a session transition and returns the view the user should be on.
//
// Leaving a session (or loading) re-routes to the auth/loading view and re-arms the admin redirect.
// On an authenticated state the current view is re-validated; the first authenticated state of an
// admin-eligible session additionally moves the user to the admin view, exactly once.
func (r *Router) Observe(state session.State) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !state.Authenticated() {
		r.autoAdminArmed = true
		target := ViewAuth
		if state.Status == session.StatusLoading {
			target = ViewLoading
		}
		d := Resolve(state, target, r.policy)
		r.current = d.View
		return d
	}

	if r.autoAdminArmed && r.policy.IsAdmin(state.Profile) {
		r.autoAdminArmed = false
		d := Resolve(state, ViewAdmin, r.policy)
		r.current = d.View
		return d
	}
	if !r.policy.IsAdmin(state.Profile) {
		// A non-admin session never triggers the redirect later, e.g. after a role change.
		r.autoAdminArmed = false
	}

	requested := r.current
	if requested == ViewLoading || requested == ViewAuth || requested == "" {
		requested = ViewDashboard
	}
	d := Resolve(state, requested, r.policy)
	r.current = d.View
	return d
}

// String renders a decision for logs and the CLI.
func (d Decision) String() string {
	if !d.Redirected() {
		return string(d.View)
	}
	return fmt.Sprintf("%s (redirected from %s)", d.View, d.Requested)
}
