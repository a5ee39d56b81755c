package models

// SeenStatus answers "has the user consumed this item"
type SeenStatus string

const (
	SeenStatusNotInDatabase       SeenStatus = "not_in_database"
	SeenStatusNotConsumed         SeenStatus = "not_consumed"
	SeenStatusCurrentlyUnderway   SeenStatus = "currently_underway"
	SeenStatusConsumedAtLeastOnce SeenStatus = "consumed_at_least_once"
)

// ComputeStatus derives the consumption status from a catalog lookup and the
// user's events for that entry. The events are re-sorted on a copy, so callers
// may pass them in any order.
func ComputeStatus(catalogHit bool, history []Seen) SeenStatus {
	if !catalogHit {
		return SeenStatusNotInDatabase
	}
	if len(history) == 0 {
		return SeenStatusNotConsumed
	}

	ordered := make([]Seen, len(history))
	copy(ordered, history)
	SortSeenHistory(ordered)

	if ordered[0].IsUnderway() {
		return SeenStatusCurrentlyUnderway
	}
	return SeenStatusConsumedAtLeastOnce
}
