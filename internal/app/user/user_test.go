package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"PCM":          RolePCM,
		"Corps Member": RoleCorpsMember,
		"corps_member": RoleCorpsMember,
		"CorpsMember":  RoleCorpsMember,
		" official ":   RoleOfficial,
		"ADMIN":        RoleAdmin,
		"General User": RoleGeneralUser,
		"Staff":        RoleGeneralUser,
		"":             RoleGeneralUser,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRole(in), "input %q", in)
	}

	assert.True(t, IsKnownRole("corps-member"))
	assert.False(t, IsKnownRole("Staff"))
}

func TestAdminPolicy(t *testing.T) {
	policy := AdminPolicy{SentinelEmail: "admin@nysc.gov.ng"}

	cases := []struct {
		name string
		p    *Profile
		want bool
	}{
		{"nil profile", nil, false},
		{"admin role", &Profile{Role: RoleAdmin, Email: "a@b.c"}, true},
		{"official with sentinel email", &Profile{Role: RoleOfficial, Email: "Admin@NYSC.gov.ng"}, true},
		{"official without sentinel email", &Profile{Role: RoleOfficial, Email: "o@nysc.gov.ng"}, false},
		{"corps member with sentinel email", &Profile{Role: RoleCorpsMember, Email: "admin@nysc.gov.ng"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.IsAdmin(tc.p))
		})
	}

	assert.False(t, AdminPolicy{}.IsAdmin(&Profile{Role: RoleOfficial, Email: ""}))
}

func TestRolePredicates(t *testing.T) {
	cm := &Profile{Role: RoleCorpsMember}
	off := &Profile{Role: RoleOfficial}

	assert.True(t, CanRequestClearance(cm))
	assert.False(t, CanRequestClearance(off))
	assert.True(t, CanReviewClearance(off))
	assert.False(t, CanReviewClearance(cm))
	assert.True(t, CanManageResources(&Profile{Role: RoleAdmin}))
	assert.False(t, CanManageResources(nil))
}

func TestPatchApplyKeepsIdentity(t *testing.T) {
	p := &Profile{ID: 7, Email: "cm@x.ng", Name: "Ada", Role: RoleCorpsMember, LGA: "Ikeja"}

	out := ProfilePatch{Name: ptr("Ada Obi"), CDSGroup: ptr("ICT")}.Apply(p)
	require.NotNil(t, out)

	assert.Equal(t, "Ada Obi", out.Name)
	assert.Equal(t, "ICT", out.CDSGroup)
	assert.Equal(t, "Ikeja", out.LGA)
	assert.Equal(t, int64(7), out.ID)
	assert.Equal(t, "Ada", p.Name, "original must not be mutated")
}

func TestPatchMerge(t *testing.T) {
	a := ProfilePatch{Name: ptr("one"), Phone: ptr("080")}
	b := ProfilePatch{Name: ptr("two")}

	m := a.Merge(b)
	assert.Equal(t, "two", *m.Name)
	assert.Equal(t, "080", *m.Phone)
	assert.True(t, ProfilePatch{}.IsEmpty())
	assert.False(t, m.IsEmpty())
}
