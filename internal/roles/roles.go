// Package roles canonicalizes role strings and computes per-user capability
// sets. Role names arrive in Hungarian with or without diacritics plus legacy
// abbreviations; downstream code only ever sees the canonical codes.
package roles

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOffice    Role = "office"
	RoleSignaller Role = "signaller"
	RoleExpert    Role = "expert"
	RoleDescriber Role = "describer"
	RoleTox       Role = "tox"
	RoleFinance   Role = "finance"
)

// aliases maps diacritic-folded lowercase inputs to canonical codes. The
// Hungarian names, their ASCII spellings and the legacy short forms all land
// on the same code.
var aliases = map[string]Role{
	"admin":     RoleAdmin,
	"iroda":     RoleOffice,
	"office":    RoleOffice,
	"szignalo":  RoleSignaller,
	"szig":      RoleSignaller,
	"signaller": RoleSignaller,
	"szakerto":  RoleExpert,
	"szak":      RoleExpert,
	"expert":    RoleExpert,
	"leiro":     RoleDescriber,
	"describer": RoleDescriber,
	"toxi":      RoleTox,
	"tox":       RoleTox,
	"penzugy":   RolePenzugy,
	"penz":      RolePenzugy,
	"finance":   RolePenzugy,
}

// RolePenzugy is the finance role; kept as a named alias because the
// Hungarian name appears throughout institute-facing text.
const RolePenzugy = RoleFinance

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldDiacritics strips combining marks: "szignáló" -> "szignalo".
func FoldDiacritics(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return folded
}

// Canonicalize maps an input role string onto its canonical code. Unknown
// strings pass through trimmed but otherwise literal and are treated as
// unprivileged. Canonicalize is idempotent.
func Canonicalize(input string) Role {
	trimmed := strings.TrimSpace(input)
	key := strings.ToLower(FoldDiacritics(trimmed))
	if role, ok := aliases[key]; ok {
		return role
	}
	return Role(trimmed)
}

// Known reports whether r is one of the canonical codes.
func Known(r Role) bool {
	switch r {
	case RoleAdmin, RoleOffice, RoleSignaller, RoleExpert, RoleDescriber, RoleTox, RoleFinance:
		return true
	}
	return false
}
