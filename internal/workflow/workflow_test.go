package workflow

import (
	"testing"
)

func TestHappyPath(t *testing.T) {
	chain := []string{
		StatusReceived, StatusSignalled, StatusDissectedAtExpert,
		StatusDissectedAtDescriber, StatusRegistered, StatusSigned,
	}
	for i := 0; i < len(chain)-1; i++ {
		if !CanTransition(chain[i], chain[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", chain[i], chain[i+1])
		}
	}
}

func TestNoSkippingStages(t *testing.T) {
	if CanTransition(StatusReceived, StatusDissectedAtExpert) {
		t.Fatal("received must not skip signalling")
	}
	if CanTransition(StatusSignalled, StatusRegistered) {
		t.Fatal("signalled must not skip dissection")
	}
}

func TestAnyLiveStatusMayCloseOrExpire(t *testing.T) {
	for _, from := range []string{StatusReceived, StatusSignalled, StatusDissectedAtExpert, StatusRegistered} {
		if !CanTransition(from, StatusClosed) {
			t.Fatalf("%s should be closable", from)
		}
		if !CanTransition(from, StatusExpired) {
			t.Fatalf("%s should be expirable", from)
		}
	}
}

func TestTerminalStatusesAreDeadEnds(t *testing.T) {
	for _, from := range []string{StatusClosed, StatusExpired, StatusRejected, StatusPostmail, StatusInvoiceArrived, StatusPoliceForwarded} {
		for _, to := range []string{StatusReceived, StatusSignalled, StatusClosed, StatusExpired} {
			if CanTransition(from, to) {
				t.Fatalf("terminal %s allowed transition to %s", from, to)
			}
		}
	}
}

func TestLockedSet(t *testing.T) {
	if !IsLocked(StatusClosed) || !IsLocked(StatusExpired) {
		t.Fatal("closed and expired are locked")
	}
	if IsLocked(StatusRejected) {
		t.Fatal("rejected is terminal but not locked")
	}
}

func TestInvestigationReassignmentResignals(t *testing.T) {
	if !CanTransitionInvestigation(StatusSignalled, StatusSignalled) {
		t.Fatal("reassignment keeps status at signalled")
	}
	if !CanTransitionInvestigation(StatusReceived, StatusSignalled) {
		t.Fatal("received -> signalled must hold")
	}
	if CanTransitionInvestigation(StatusClosed, StatusSignalled) {
		t.Fatal("closed investigation must not reopen")
	}
}
