package logic

import "github.com/patrickwarner/openadtrigger/internal/models"

// MatchesConditions reports whether every condition of c holds for snap.
// It stops at the first condition that does not hold. A campaign without
// conditions never matches; the registry rejects those anyway.
func MatchesConditions(c models.Campaign, snap models.ContextSnapshot) bool {
	if len(c.Conditions) == 0 {
		return false
	}
	for _, p := range c.Conditions {
		if !EvaluatePredicate(p, snap) {
			return false
		}
	}
	return true
}

// MatchedConditions renders the conditions of c for the trigger record. ok
// is false when any condition does not hold.
func MatchedConditions(c models.Campaign, snap models.ContextSnapshot) (matched []string, ok bool) {
	if !MatchesConditions(c, snap) {
		return nil, false
	}
	matched = make([]string, len(c.Conditions))
	for i, p := range c.Conditions {
		matched[i] = p.String()
	}
	return matched, true
}
