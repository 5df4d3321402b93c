package models

import "testing"

func TestResolvePolicyDefaults(t *testing.T) {
	cases := []struct {
		role   UserRole
		action string
		want   PolicyLevel
	}{
		{UserRoleOwner, ActionGroupCreate, PolicyLevelFull},
		{UserRoleAdmin, ActionClosedThroughUpdate, PolicyLevelFull},
		{UserRoleBookkeeper, ActionMatchCreate, PolicyLevelEdit},
		{UserRoleBookkeeper, ActionClosedThroughUpdate, PolicyLevelNone},
		{UserRoleViewer, ActionReconcileView, PolicyLevelView},
		{UserRoleViewer, ActionGroupVoid, PolicyLevelNone},
		{UserRole("UNKNOWN"), ActionMatchCreate, PolicyLevelNone},
	}
	for _, tc := range cases {
		if got := ResolvePolicy(tc.role, tc.action, nil); got != tc.want {
			t.Errorf("ResolvePolicy(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestResolvePolicyOverridesWin(t *testing.T) {
	overrides := []RolePolicyOverride{
		// Demote bookkeepers from match creation.
		{Role: UserRoleBookkeeper, ActionKey: ActionMatchCreate, PolicyValue: int(PolicyLevelNone)},
		// Promote viewers to statement import.
		{Role: UserRoleViewer, ActionKey: ActionStatementImport, PolicyValue: int(PolicyLevelEdit)},
		// Overrides for another role must not bleed.
		{Role: UserRoleViewer, ActionKey: ActionMatchCreate, PolicyValue: int(PolicyLevelFull)},
	}

	if got := ResolvePolicy(UserRoleBookkeeper, ActionMatchCreate, overrides); got != PolicyLevelNone {
		t.Errorf("demoted bookkeeper = %v, want None", got)
	}
	if got := ResolvePolicy(UserRoleViewer, ActionStatementImport, overrides); got != PolicyLevelEdit {
		t.Errorf("promoted viewer = %v, want Edit", got)
	}
	if got := ResolvePolicy(UserRoleBookkeeper, ActionStatementImport, overrides); got != PolicyLevelEdit {
		t.Errorf("unrelated override changed bookkeeper import = %v, want Edit", got)
	}
}

func TestPolicyLevelOrdering(t *testing.T) {
	if !(PolicyLevelNone < PolicyLevelView && PolicyLevelView < PolicyLevelEdit && PolicyLevelEdit < PolicyLevelFull) {
		t.Fatal("policy levels must be ordered None < View < Edit < Full")
	}
}
