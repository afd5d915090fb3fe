package models

// NewTestRegistry creates a new in-memory campaign registry for testing
func NewTestRegistry() CampaignRegistry {
	return NewInMemoryCampaignRegistry()
}

// NewTestCampaign returns a valid, active, always-open campaign with a single
// temperature predicate (temperature > -100) placed at the given locations.
func NewTestCampaign(id string, priority int, locations ...string) Campaign {
	return Campaign{
		ID:            id,
		AdvertiserID:  "adv-" + id,
		CreativeID:    "creative-" + id,
		LocationScope: locations,
		Priority:      priority,
		Conditions: []Predicate{
			{Category: CategoryEnvironmental, Key: KeyTemperature, Operator: OpGreaterThan, Operand: Operand{Number: Float(-100)}},
		},
		Calendar: Calendar{Recurrence: Recurrence{Kind: RecurrenceDaily}},
		Active:   true,
	}
}
