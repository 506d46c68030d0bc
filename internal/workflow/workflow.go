// Package workflow is the pure state machine behind cases and
// investigations. Services consult it before every mutation; a record in a
// locked status admits no change at all.
package workflow

// Case statuses.
const (
	StatusReceived             = "received"
	StatusSignalled            = "signalled"
	StatusDissectedAtExpert    = "dissected-at-expert"
	StatusDissectedAtDescriber = "dissected-at-describer"
	StatusRegistered           = "registered"
	StatusSigned               = "signed"
	StatusClosed               = "closed"
	StatusExpired              = "expired"
	StatusRejected             = "rejected"
	StatusPostmail             = "postmail"
	StatusInvoiceArrived       = "invoice-arrived"
	StatusPoliceForwarded      = "police-forwarded"
)

// caseTransitions is the forward edge set of the case lifecycle. Closing and
// expiring are reachable from any live status and are handled separately.
var caseTransitions = map[string][]string{
	StatusReceived:             {StatusSignalled, StatusRejected, StatusPostmail, StatusPoliceForwarded},
	StatusSignalled:            {StatusDissectedAtExpert},
	StatusDissectedAtExpert:    {StatusDissectedAtDescriber},
	StatusDissectedAtDescriber: {StatusRegistered},
	StatusRegistered:           {StatusSigned},
	StatusSigned:               {StatusInvoiceArrived},
}

// locked statuses admit no mutation of any kind, audit rows excepted.
var locked = map[string]bool{
	StatusClosed:  true,
	StatusExpired: true,
}

// terminal statuses have no outgoing edges.
var terminal = map[string]bool{
	StatusClosed:          true,
	StatusExpired:         true,
	StatusRejected:        true,
	StatusPostmail:        true,
	StatusInvoiceArrived:  true,
	StatusPoliceForwarded: true,
}

func IsLocked(status string) bool {
	return locked[status]
}

func IsTerminal(status string) bool {
	return terminal[status]
}

// CanTransition reports whether a case may move from one status to another.
// Any live status may close or expire.
func CanTransition(from, to string) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StatusClosed || to == StatusExpired {
		return true
	}
	for _, next := range caseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Investigation statuses reuse the received/signalled/closed spine.
var investigationTransitions = map[string][]string{
	StatusReceived:  {StatusSignalled},
	StatusSignalled: {StatusClosed},
}

func CanTransitionInvestigation(from, to string) bool {
	if IsLocked(from) {
		return false
	}
	if to == StatusClosed {
		return true
	}
	// Reassignment re-signals an already signalled investigation.
	if from == StatusSignalled && to == StatusSignalled {
		return true
	}
	for _, next := range investigationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
