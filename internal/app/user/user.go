/*
Package user contains core data structures and logic related to user identity.

It defines the profile of a program member as exchanged with the remote service,
the closed set of roles, and the role-derived predicates every gate in the client uses.
*/
package user

import "strings"

// Role is the closed set of user categories gating view access.
type Role string

const (
	RolePCM         Role = "PCM"
	RoleCorpsMember Role = "Corps Member"
	RoleOfficial    Role = "Official"
	RoleAdmin       Role = "Admin"
	RoleGeneralUser Role = "General User"
)

// Roles lists every known role in display order.
var Roles = []Role{RolePCM, RoleCorpsMember, RoleOfficial, RoleAdmin, RoleGeneralUser}

// ParseRole maps a wire or user-typed role to the closed set.
// Matching ignores case, spaces, dashes and underscores ("corps_member", "CorpsMember").
// Anything unrecognized maps to RoleGeneralUser, the least privileged role.
func ParseRole(s string) Role {
	key := normalizeRole(s)
	for _, r := range Roles {
		if normalizeRole(string(r)) == key {
			return r
		}
	}
	return RoleGeneralUser
}

// IsKnownRole reports whether s names one of the roles exactly as ParseRole would accept it.
func IsKnownRole(s string) bool {
	key := normalizeRole(s)
	for _, r := range Roles {
		if normalizeRole(string(r)) == key {
			return true
		}
	}
	return false
}

func normalizeRole(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Profile represents the last-known identity of the signed-in member.
// Fields use JSON tags matching the remote service's snake_case payloads.
type Profile struct {
	// ID is the remote service's numeric user id.
	ID int64 `json:"id"`

	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`

	// State is the state of deployment (or the post/designation for officials).
	State string `json:"state,omitempty"`

	// StateCode is the corps member's call-up state code, e.g. "LA/24A/1234".
	StateCode string `json:"state_code,omitempty"`

	LGA              string `json:"lga,omitempty"`
	CDSGroup         string `json:"cds_group,omitempty"`
	PopDate          string `json:"pop_date,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Phone            string `json:"phone,omitempty"`
	MobilizationDate string `json:"mobilization_date,omitempty"`
	PhotoURL         string `json:"photo_url,omitempty"`
}

// Clone returns an independent copy of p. A nil profile clones to nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Normalize folds the role into the closed set.
func (p *Profile) Normalize() {
	p.Role = ParseRole(string(p.Role))
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
type ProfilePatch struct {
	Name             *string `json:"name,omitempty"`
	State            *string `json:"state,omitempty"`
	StateCode        *string `json:"state_code,omitempty"`
	LGA              *string `json:"lga,omitempty"`
	CDSGroup         *string `json:"cds_group,omitempty"`
	PopDate          *string `json:"pop_date,omitempty"`
	Gender           *string `json:"gender,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	MobilizationDate *string `json:"mobilization_date,omitempty"`
	PhotoURL         *string `json:"photo_url,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (pp ProfilePatch) IsEmpty() bool {
	return pp == ProfilePatch{}
}

// Merge layers next over pp; fields set in next win.
func (pp ProfilePatch) Merge(next ProfilePatch) ProfilePatch {
	out := pp
	pick := func(dst **string, src *string) {
		if src != nil {
			*dst = src
		}
	}
	pick(&out.Name, next.Name)
	pick(&out.State, next.State)
	pick(&out.StateCode, next.StateCode)
	pick(&out.LGA, next.LGA)
	pick(&out.CDSGroup, next.CDSGroup)
	pick(&out.PopDate, next.PopDate)
	pick(&out.Gender, next.Gender)
	pick(&out.Phone, next.Phone)
	pick(&out.MobilizationDate, next.MobilizationDate)
	pick(&out.PhotoURL, next.PhotoURL)
	return out
}

// Apply returns a copy of p with the patch merged in. Identity fields (id, email, role) never change.
func (pp ProfilePatch) Apply(p *Profile) *Profile {
	out := p.Clone()
	if out == nil {
		return nil
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&out.Name, pp.Name)
	set(&out.State, pp.State)
	set(&out.StateCode, pp.StateCode)
	set(&out.LGA, pp.LGA)
	set(&out.CDSGroup, pp.CDSGroup)
	set(&out.PopDate, pp.PopDate)
	set(&out.Gender, pp.Gender)
	set(&out.Phone, pp.Phone)
	set(&out.MobilizationDate, pp.MobilizationDate)
	set(&out.PhotoURL, pp.PhotoURL)
	return out
}

// Draft is the signup payload.
type Draft struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	Role             Role   `json:"role"`
	State            string `json:"state,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Phone            string `json:"phone,omitempty"`
	StateCode        string `json:"state_code,omitempty"`
	MobilizationDate string `json:"mobilization_date,omitempty"`
	PopDate          string `json:"pop_date,omitempty"`
}

// AdminPolicy is the single admin-eligibility rule applied by every gate.
//
// A profile is admin-eligible when its role is Admin, or when it is an Official whose
// email equals the configured sentinel address. An empty sentinel disables the second clause.
type AdminPolicy struct {
	SentinelEmail string
}

// IsAdmin reports whether p may reach the administrative views.
func (a AdminPolicy) IsAdmin(p *Profile) bool {
	if p == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	if a.SentinelEmail == "" || p.Role != RoleOfficial {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(a.SentinelEmail))
}

// CanReviewClearance reports whether p may list and act on pending clearance requests.
func CanReviewClearance(p *Profile) bool {
	return p != nil && (p.Role == RoleOfficial || p.Role == RoleAdmin)
}

// CanRequestClearance reports whether p may submit a monthly clearance request.
func CanRequestClearance(p *Profile) bool {
	return p != nil && p.Role == RoleCorpsMember
}

// CanManageResources reports whether p may add to the resource library.
func CanManageResources(p *Profile) bool {
	return CanReviewClearance(p)
}
