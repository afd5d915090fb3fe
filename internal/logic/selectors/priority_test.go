package selectors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

func campaign(id string, priority int, seq uint64, locs ...string) models.Campaign {
	c := models.NewTestCampaign(id, priority, locs...)
	c.Seq = seq
	return c
}

func rankedIDs(cs []models.Campaign) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestPriorityResolver_Rank(t *testing.T) {
	r := NewPriorityResolver(true, nil, nil)
	tests := []struct {
		name  string
		input []models.Campaign
		want  []string
	}{
		{
			name:  "higher priority wins",
			input: []models.Campaign{campaign("C1", 5, 1, "L"), campaign("C2", 8, 2, "L")},
			want:  []string{"C2", "C1"},
		},
		{
			name:  "tie goes to earlier registration",
			input: []models.Campaign{campaign("B", 7, 2, "L"), campaign("A", 7, 1, "L")},
			want:  []string{"A", "B"},
		},
		{
			name:  "tie on priority and seq falls back to id",
			input: []models.Campaign{campaign("z", 4, 3, "L"), campaign("a", 4, 3, "L")},
			want:  []string{"a", "z"},
		},
		{
			name:  "empty",
			input: nil,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rankedIDs(r.Rank(tt.input, "L")))
		})
	}
}

func TestPriorityResolver_Deterministic(t *testing.T) {
	r := NewPriorityResolver(true, nil, nil)
	in := []models.Campaign{
		campaign("c", 3, 3, "L"), campaign("a", 9, 5, "L"), campaign("b", 3, 1, "L"), campaign("d", 9, 2, "L"),
	}
	reversed := []models.Campaign{in[3], in[2], in[1], in[0]}
	assert.Equal(t, rankedIDs(r.Rank(in, "L")), rankedIDs(r.Rank(reversed, "L")))
	assert.Equal(t, []string{"d", "a", "b", "c"}, rankedIDs(r.Rank(in, "L")))
	assert.Equal(t, "c", in[0].ID, "input left untouched")
}

func TestPriorityResolver_Select(t *testing.T) {
	r := NewPriorityResolver(false, nil, nil)
	_, ok := r.Select(nil, "L")
	assert.False(t, ok)

	winner, ok := r.Select([]models.Campaign{campaign("C1", 5, 1, "L"), campaign("C2", 8, 2, "L")}, "L")
	require.True(t, ok)
	assert.Equal(t, "C2", winner.ID)
}

func TestPriorityResolver_LenientSkipsViolations(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	r := NewPriorityResolver(false, nil, metrics)

	inactive := campaign("off", 9, 4, "L")
	inactive.Active = false
	in := []models.Campaign{
		campaign("elsewhere", 10, 1, "M"),
		inactive,
		campaign("ok", 1, 2, "L"),
		campaign("ok", 1, 2, "L"),
	}
	got := r.Rank(in, "L")
	assert.Equal(t, []string{"ok"}, rankedIDs(got))
	assert.Equal(t, 3, metrics.InvariantViolations)
}

func TestPriorityResolver_StrictPanics(t *testing.T) {
	r := NewPriorityResolver(true, nil, nil)
	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		err, ok := rec.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrInvariantViolation))
	}()
	r.Rank([]models.Campaign{campaign("elsewhere", 10, 1, "M")}, "L")
}
