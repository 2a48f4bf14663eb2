package incident

// Workflow actions. Each moves an incident from one of a fixed set of
// statuses to a single target status.
const (
	ActionStartReview    = "start_review"
	ActionReturnToOpen   = "return_to_open"
	ActionRequestClosure = "request_closure"
	ActionApproveClosure = "approve_closure"
	ActionRejectClosure  = "reject_closure"
	ActionClose          = "close"
	ActionReopen         = "reopen"
	ActionReopenInReview = "reopen_in_review"
)

type transition struct {
	from      []string
	to        string
	adminOnly bool
	// patchable actions may be triggered by a plain status change.
	patchable bool
}

var transitions = map[string]transition{
	ActionStartReview:    {from: []string{StatusOpen}, to: StatusInReview, patchable: true},
	ActionReturnToOpen:   {from: []string{StatusInReview}, to: StatusOpen, patchable: true},
	ActionRequestClosure: {from: []string{StatusOpen, StatusInReview}, to: StatusPendingClosure},
	ActionApproveClosure: {from: []string{StatusPendingClosure}, to: StatusClosed, adminOnly: true},
	ActionRejectClosure:  {from: []string{StatusPendingClosure}, to: StatusInReview, adminOnly: true},
	ActionClose:          {from: []string{StatusOpen, StatusInReview}, to: StatusClosed, adminOnly: true, patchable: true},
	ActionReopen:         {from: []string{StatusClosed}, to: StatusOpen, adminOnly: true, patchable: true},
	ActionReopenInReview: {from: []string{StatusClosed}, to: StatusInReview, adminOnly: true, patchable: true},
}

// ValidTransition reports whether action may be applied to an incident in
// fromStatus.
func ValidTransition(action, fromStatus string) bool {
	t, ok := transitions[action]
	if !ok {
		return false
	}
	for _, status := range t.from {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// TargetStatus returns the status an action produces.
func TargetStatus(action string) string {
	return transitions[action].to
}

// AdminOnly reports whether only administrators may perform action.
func AdminOnly(action string) bool {
	return transitions[action].adminOnly
}

// statusChangeAction finds the patchable action that moves from -> to.
func statusChangeAction(from, to string) (string, bool) {
	for action, t := range transitions {
		if t.patchable && t.to == to && ValidTransition(action, from) {
			return action, true
		}
	}
	return "", false
}

func validStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInReview, StatusPendingClosure, StatusClosed:
		return true
	}
	return false
}
