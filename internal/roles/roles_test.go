package roles

import (
	"testing"
)

func TestCanonicalizeAliases(t *testing.T) {
	cases := map[string]Role{
		"admin":     RoleAdmin,
		"iroda":     RoleOffice,
		"szignáló":  RoleSignaller,
		"szignalo":  RoleSignaller,
		"szig":      RoleSignaller,
		"szakértő":  RoleExpert,
		"szakerto":  RoleExpert,
		"leíró":     RoleDescriber,
		"leiro":     RoleDescriber,
		"toxi":      RoleTox,
		"pénzügy":   RoleFinance,
		"penzugy":   RoleFinance,
		"  iroda  ": RoleOffice,
		"IRODA":     RoleOffice,
	}
	for input, want := range cases {
		if got := Canonicalize(input); got != want {
			t.Fatalf("Canonicalize(%q): want %q got %q", input, want, got)
		}
	}
}

func TestCanonicalizeUnknownPassesThrough(t *testing.T) {
	if got := Canonicalize("igazgató"); got != Role("igazgató") {
		t.Fatalf("unknown role should pass through, got %q", got)
	}
	if Known(Canonicalize("igazgató")) {
		t.Fatal("unknown role must not be Known")
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"admin", "iroda", "szignáló", "szakértő", "leíró", "toxi", "pénzügy",
		"", "  ", "unknown-role", "Szignáló", "LEÍRÓ", "penz",
	}
	for _, input := range inputs {
		once := Canonicalize(input)
		twice := Canonicalize(string(once))
		if once != twice {
			t.Fatalf("Canonicalize not idempotent for %q: %q vs %q", input, once, twice)
		}
	}
}

func TestFinanceIsIntersection(t *testing.T) {
	others := []Role{RoleAdmin, RoleOffice, RoleSignaller, RoleExpert, RoleDescriber, RoleTox}
	finance := Capabilities(RoleFinance)
	for _, c := range allCapabilities {
		want := true
		for _, r := range others {
			if !Capabilities(r)[c] {
				want = false
				break
			}
		}
		if finance[c] != want {
			t.Fatalf("finance[%s]: want %v got %v", c, want, finance[c])
		}
	}
}

func TestUnknownRoleUnprivileged(t *testing.T) {
	caps := Capabilities(Role("visitor"))
	for _, c := range allCapabilities {
		if caps[c] {
			t.Fatalf("unknown role granted %s", c)
		}
	}
}

func TestUploadInvestigationGrantedToAllRoles(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleOffice, RoleSignaller, RoleExpert, RoleDescriber, RoleTox, RoleFinance} {
		if !Capabilities(r)[CapUploadInvestigation] {
			t.Fatalf("%s should have base upload_investigation", r)
		}
	}
}

func TestRefineWithdrawsConditionalCaps(t *testing.T) {
	base := Capabilities(RoleExpert)
	refined := Refine(base, RoleExpert, false)
	if refined[CapUploadInvestigation] || refined[CapPostInvestigationNotes] {
		t.Fatal("unassigned expert kept conditional capabilities")
	}
	assigned := Refine(base, RoleExpert, true)
	if !assigned[CapUploadInvestigation] || !assigned[CapPostInvestigationNotes] {
		t.Fatal("assigned expert lost conditional capabilities")
	}
	office := Refine(Capabilities(RoleOffice), RoleOffice, false)
	if !office[CapUploadInvestigation] {
		t.Fatal("office must keep upload_investigation without assignment")
	}
}

func TestAssignedMember(t *testing.T) {
	if !AssignedMember(5, 5, 0, 0, nil) {
		t.Fatal("expert1 is an assigned member")
	}
	if !AssignedMember(9, 5, 0, 0, []uint{9}) {
		t.Fatal("default describer of an expert counts while describer unset")
	}
	if AssignedMember(9, 5, 0, 7, []uint{9}) {
		t.Fatal("default describer fallback must stop once a describer is set")
	}
	if AssignedMember(0, 0, 0, 0, []uint{0}) {
		t.Fatal("zero ids never match")
	}
}
