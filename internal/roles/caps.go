package roles

type Capability string

const (
	CapViewCases              Capability = "view_cases"
	CapViewInvestigations     Capability = "view_investigations"
	CapEditCase               Capability = "edit_case"
	CapUploadCase             Capability = "upload_case"
	CapAssign                 Capability = "assign"
	CapChangeStatus           Capability = "change_status"
	CapPostNotes              Capability = "post_notes"
	CapDownloadFiles          Capability = "download_files"
	CapEditInvestigation      Capability = "edit_investigation"
	CapUploadInvestigation    Capability = "upload_investigation"
	CapPostInvestigationNotes Capability = "post_investigation_notes"
)

var allCapabilities = []Capability{
	CapViewCases, CapViewInvestigations, CapEditCase, CapUploadCase,
	CapAssign, CapChangeStatus, CapPostNotes, CapDownloadFiles,
	CapEditInvestigation, CapUploadInvestigation, CapPostInvestigationNotes,
}

type CapabilitySet map[Capability]bool

func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

func (s CapabilitySet) clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// baseMatrix preserves the behaviour of the per-view checks it replaced.
// upload_investigation is base-granted to every role; record-conditional
// refinement below is what actually gates it for non-privileged roles.
var baseMatrix = map[Role]CapabilitySet{
	RoleAdmin: fullSet(),
	RoleOffice: {
		CapViewCases: true, CapViewInvestigations: true,
		CapEditCase: true, CapUploadCase: true,
		CapAssign: false, CapChangeStatus: true,
		CapPostNotes: true, CapDownloadFiles: true,
		CapEditInvestigation: true, CapUploadInvestigation: true,
		CapPostInvestigationNotes: true,
	},
	RoleSignaller: {
		CapViewCases: true, CapViewInvestigations: true,
		CapEditCase: true, CapUploadCase: true,
		CapAssign: true, CapChangeStatus: true,
		CapPostNotes: true, CapDownloadFiles: true,
		CapEditInvestigation: false, CapUploadInvestigation: true,
		CapPostInvestigationNotes: false,
	},
	RoleExpert: {
		CapViewCases: true, CapViewInvestigations: true,
		CapEditCase: false, CapUploadCase: false,
		CapAssign: false, CapChangeStatus: false,
		CapPostNotes: true, CapDownloadFiles: true,
		CapEditInvestigation: false, CapUploadInvestigation: true,
		CapPostInvestigationNotes: true,
	},
	RoleDescriber: {
		CapViewCases: true, CapViewInvestigations: true,
		CapEditCase: false, CapUploadCase: true,
		CapAssign: false, CapChangeStatus: false,
		CapPostNotes: true, CapDownloadFiles: true,
		CapEditInvestigation: false, CapUploadInvestigation: true,
		CapPostInvestigationNotes: true,
	},
	RoleTox: {
		CapViewCases: true, CapViewInvestigations: true,
		CapEditCase: false, CapUploadCase: true,
		CapAssign: false, CapChangeStatus: false,
		CapPostNotes: true, CapDownloadFiles: true,
		CapEditInvestigation: false, CapUploadInvestigation: true,
		CapPostInvestigationNotes: false,
	},
}

func fullSet() CapabilitySet {
	out := make(CapabilitySet, len(allCapabilities))
	for _, c := range allCapabilities {
		out[c] = true
	}
	return out
}

func emptySet() CapabilitySet {
	out := make(CapabilitySet, len(allCapabilities))
	for _, c := range allCapabilities {
		out[c] = false
	}
	return out
}

// financeSet is the strict read-only intersection of every other role's
// capabilities.
var financeSet = func() CapabilitySet {
	out := make(CapabilitySet, len(allCapabilities))
	for _, c := range allCapabilities {
		all := true
		for _, caps := range baseMatrix {
			if !caps[c] {
				all = false
				break
			}
		}
		out[c] = all
	}
	return out
}()

// Capabilities returns the base capability set for a role. Unknown roles are
// unprivileged.
func Capabilities(r Role) CapabilitySet {
	if r == RoleFinance {
		return financeSet.clone()
	}
	if caps, ok := baseMatrix[r]; ok {
		return caps.clone()
	}
	return emptySet()
}

// privileged roles keep their investigation capabilities regardless of
// per-record assignment.
func privileged(r Role) bool {
	return r == RoleAdmin || r == RoleOffice
}

// Refine applies per-record assignment to a base set: conditional
// capabilities are withdrawn from non-privileged roles that are not assigned
// members of the record.
func Refine(base CapabilitySet, r Role, assignedMember bool) CapabilitySet {
	out := base.clone()
	if privileged(r) || assignedMember {
		return out
	}
	out[CapUploadInvestigation] = false
	out[CapPostInvestigationNotes] = false
	return out
}

// AssignedMember reports whether userID is an assigned member of an
// investigation. expertDefaults holds the default-describer id of each expert
// on the record (resolved by the caller from the primary bind); it is only
// consulted while the record has no describer.
func AssignedMember(userID uint, expert1, expert2, describer uint, expertDefaults []uint) bool {
	if userID == 0 {
		return false
	}
	if userID == expert1 || userID == expert2 || userID == describer {
		return true
	}
	if describer != 0 {
		return false
	}
	for _, def := range expertDefaults {
		if def != 0 && def == userID {
			return true
		}
	}
	return false
}
