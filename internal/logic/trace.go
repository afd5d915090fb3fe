package logic

import "github.com/patrickwarner/openadtrigger/internal/models"

// TraceStep records the campaigns still in play after an evaluation stage.
type TraceStep struct {
	Stage       string            `json:"stage"`
	CampaignIDs []string          `json:"campaign_ids"`
	Details     map[string]string `json:"details,omitempty"`
}

// EvaluationTrace captures the ordered stages of one location evaluation.
// A nil trace ignores every call so callers can pass nil when not debugging.
type EvaluationTrace struct {
	LocationID string      `json:"location_id"`
	Steps      []TraceStep `json:"steps"`
}

// AddStep appends a trace entry for the given stage.
func (t *EvaluationTrace) AddStep(stage string, campaigns []models.Campaign) {
	t.AddStepWithDetails(stage, campaigns, nil)
}

// AddStepWithDetails appends a trace entry with extra detail about the stage,
// such as why campaigns were dropped.
func (t *EvaluationTrace) AddStepWithDetails(stage string, campaigns []models.Campaign, details map[string]string) {
	if t == nil {
		return
	}
	step := TraceStep{Stage: stage, CampaignIDs: make([]string, 0, len(campaigns)), Details: details}
	for _, c := range campaigns {
		step.CampaignIDs = append(step.CampaignIDs, c.ID)
	}
	t.Steps = append(t.Steps, step)
}
