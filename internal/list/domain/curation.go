package domain

// Decision is the curation outcome for a contribution attempt.
type Decision int

const (
	// DecisionReject aborts the contribution before any mutation.
	DecisionReject Decision = iota
	// DecisionPending creates the item awaiting owner moderation.
	DecisionPending
	// DecisionApprove creates the item immediately visible.
	DecisionApprove
)

// Decide evaluates the curation table for a contribution attempt.
//
// The owner is always an approved contributor. Non-owners are rejected on
// closed lists, held for moderation on curated lists, and auto-approved on
// open lists.
func Decide(curation Curation, actorIsOwner bool) Decision {
	if actorIsOwner {
		return DecisionApprove
	}
	switch curation {
	case CurationOpen:
		return DecisionApprove
	case CurationCurated:
		return DecisionPending
	default:
		return DecisionReject
	}
}
