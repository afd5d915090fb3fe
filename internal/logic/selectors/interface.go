package selectors

import (
	"errors"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// ErrInvariantViolation marks a candidate that should never have reached the
// resolver, such as a campaign not placed at the location being evaluated.
var ErrInvariantViolation = errors.New("candidate invariant violated")

// Resolver orders eligible campaigns for one location and picks the winner.
type Resolver interface {
	// Rank returns candidates in the order they should be offered the
	// location: best first. The result is deterministic for a given input set.
	Rank(candidates []models.Campaign, locationID string) []models.Campaign
	// Select returns the top-ranked candidate, or false when there is none.
	Select(candidates []models.Campaign, locationID string) (models.Campaign, bool)
}
