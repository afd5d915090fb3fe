package selectors

import (
	"fmt"
	"sort"

	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"

	"go.uber.org/zap"
)

// PriorityResolver ranks candidates by priority, highest first. Ties go to the
// campaign registered earlier, then to the lexically smaller ID.
type PriorityResolver struct {
	strict  bool
	logger  *zap.Logger
	metrics observability.MetricsRegistry
}

// NewPriorityResolver creates a resolver. In strict mode an invalid candidate
// panics; otherwise it is logged, counted and skipped.
func NewPriorityResolver(strict bool, logger *zap.Logger, metrics observability.MetricsRegistry) *PriorityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &PriorityResolver{strict: strict, logger: logger, metrics: metrics}
}

// Rank drops invalid candidates and sorts the rest. The input slice is not
// modified.
func (r *PriorityResolver) Rank(candidates []models.Campaign, locationID string) []models.Campaign {
	ranked := make([]models.Campaign, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if err := checkCandidate(c, locationID, seen); err != nil {
			r.violation(err, c, locationID)
			continue
		}
		seen[c.ID] = struct{}{}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

// Select returns the best candidate.
func (r *PriorityResolver) Select(candidates []models.Campaign, locationID string) (models.Campaign, bool) {
	ranked := r.Rank(candidates, locationID)
	if len(ranked) == 0 {
		return models.Campaign{}, false
	}
	return ranked[0], true
}

func less(a, b models.Campaign) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}

func checkCandidate(c models.Campaign, locationID string, seen map[string]struct{}) error {
	switch {
	case !c.AppliesTo(locationID):
		return fmt.Errorf("%w: campaign %s is not placed at %s", ErrInvariantViolation, c.ID, locationID)
	case !c.Active:
		return fmt.Errorf("%w: campaign %s is inactive", ErrInvariantViolation, c.ID)
	}
	if _, dup := seen[c.ID]; dup {
		return fmt.Errorf("%w: campaign %s offered twice", ErrInvariantViolation, c.ID)
	}
	return nil
}

func (r *PriorityResolver) violation(err error, c models.Campaign, locationID string) {
	if r.strict {
		panic(err)
	}
	r.metrics.IncrementInvariantViolations()
	r.logger.Error("dropping invalid candidate",
		zap.Error(err),
		zap.String("campaign_id", c.ID),
		zap.String("location_id", locationID))
}

var _ Resolver = (*PriorityResolver)(nil)
