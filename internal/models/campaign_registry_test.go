package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func campaignIDs(cs []Campaign) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := NewInMemoryCampaignRegistry()

	for _, id := range []string{"b", "a", "c"} {
		_, err := r.Register(NewTestCampaign(id, 5, "L1"))
		require.NoError(t, err)
	}
	_, err := r.Register(NewTestCampaign("other", 5, "L2"))
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "c"}, campaignIDs(r.List("L1")))
	assert.Equal(t, []string{"other"}, campaignIDs(r.List("L2")))
	assert.Empty(t, r.List("nowhere"))
}

func TestRegistry_AssignsID(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	id, err := r.Register(NewTestCampaign("", 5, "L"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, ok := r.Get(id)
	assert.True(t, ok)
}

func TestRegistry_RejectsInvalidInFull(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	_, err := r.Register(NewTestCampaign("c1", 5, "L"))
	require.NoError(t, err)

	bad := NewTestCampaign("c1", 0, "L")
	bad.Conditions = nil
	_, err = r.Register(bad)
	require.Error(t, err)

	stored, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, 5, stored.Priority)
	assert.Len(t, stored.Conditions, 1)
}

func TestRegistry_UpdateKeepsRegistrationOrder(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	_, _ = r.Register(NewTestCampaign("a", 5, "L"))
	_, _ = r.Register(NewTestCampaign("b", 5, "L"))

	updated := NewTestCampaign("a", 9, "L")
	_, err := r.Register(updated)
	require.NoError(t, err)

	list := r.List("L")
	assert.Equal(t, []string{"a", "b"}, campaignIDs(list))
	assert.Equal(t, 9, list[0].Priority)
	assert.Less(t, list[0].Seq, list[1].Seq)
}

func TestRegistry_DeactivateActivate(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	_, _ = r.Register(NewTestCampaign("a", 5, "L"))

	require.NoError(t, r.Deactivate("a"))
	assert.Empty(t, r.List("L"))
	c, ok := r.Get("a")
	require.True(t, ok)
	assert.False(t, c.Active)

	require.NoError(t, r.Activate("a"))
	assert.Len(t, r.List("L"), 1)

	assert.ErrorIs(t, r.Deactivate("missing"), ErrNotFound)
}

func TestRegistry_SnapshotIsStable(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	_, _ = r.Register(NewTestCampaign("a", 5, "L"))
	snap := r.Snapshot()

	_, _ = r.Register(NewTestCampaign("b", 5, "L"))
	require.NoError(t, r.Deactivate("a"))

	assert.Equal(t, []string{"a"}, campaignIDs(snap.ForLocation("L")))
	assert.Equal(t, []string{"b"}, campaignIDs(r.List("L")))
}

func TestRegistry_ReturnedCampaignsAreCopies(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	_, _ = r.Register(NewTestCampaign("a", 5, "L"))

	list := r.List("L")
	list[0].LocationScope[0] = "mutated"
	*list[0].Conditions[0].Operand.Number = 500

	again := r.List("L")
	require.Len(t, again, 1)
	assert.Equal(t, "L", again[0].LocationScope[0])
	assert.Equal(t, float64(-100), *again[0].Conditions[0].Operand.Number)
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Register(NewTestCampaign(fmt.Sprintf("c%d", i), 5, "L"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list := r.List("L")
	require.Len(t, list, 50)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Seq, list[i].Seq)
	}
}

func TestRegistry_WarningsAttached(t *testing.T) {
	r := NewInMemoryCampaignRegistry()
	c := NewTestCampaign("a", 5, "L")
	c.Conditions = append(c.Conditions, Predicate{Category: "astrology", Key: "moon", Operator: OpEqual, Operand: Operand{Text: "full"}})
	_, err := r.Register(c)
	require.NoError(t, err)

	stored, _ := r.Get("a")
	assert.Len(t, stored.Warnings, 1)
}
