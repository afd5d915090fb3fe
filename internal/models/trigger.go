package models

import (
	"fmt"
	"strings"
	"time"
)

// TriggerStatus is the lifecycle state of a PlaybackTrigger.
type TriggerStatus string

const (
	TriggerPending TriggerStatus = "pending"
	TriggerDone    TriggerStatus = "done"
	TriggerFailed  TriggerStatus = "failed"
)

// ParseTriggerStatus accepts a status name in any case.
func ParseTriggerStatus(s string) (TriggerStatus, error) {
	switch st := TriggerStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case TriggerPending, TriggerDone, TriggerFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown trigger status %q", s)
}

// CanTransition reports whether a trigger may move from s to next. Only
// pending triggers change state, and only to a terminal status.
func (s TriggerStatus) CanTransition(next TriggerStatus) bool {
	return s == TriggerPending && (next == TriggerDone || next == TriggerFailed)
}

// PlaybackTrigger is the fact that a campaign fired at a location.
type PlaybackTrigger struct {
	ID                string        `json:"id"`
	CampaignID        string        `json:"campaign_id"`
	AdvertiserID      string        `json:"advertiser_id,omitempty"`
	CreativeID        string        `json:"creative_id,omitempty"`
	LocationID        string        `json:"location_id"`
	FiredAt           time.Time     `json:"fired_at"`
	MatchedConditions []string      `json:"matched_conditions"`
	ResolvedPriority  int           `json:"resolved_priority"`
	Status            TriggerStatus `json:"status"`
}

// TriggerOutcome is a terminal status reported back by the playback or
// billing side for audit.
type TriggerOutcome struct {
	TriggerID  string        `json:"trigger_id"`
	Status     TriggerStatus `json:"status"`
	Detail     string        `json:"detail,omitempty"`
	ReportedAt time.Time     `json:"reported_at"`
}
