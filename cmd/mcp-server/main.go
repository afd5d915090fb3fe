package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/logic"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
	"go.uber.org/zap"
)

// Campaign authoring tool types
type ValidateCampaignInput struct {
	Campaign models.Campaign `json:"campaign"`
}

type ValidateCampaignOutput struct {
	Valid    bool                `json:"valid"`
	Fields   []models.FieldError `json:"fields,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

type CheckCalendarInput struct {
	Calendar models.Calendar `json:"calendar"`
	At       time.Time       `json:"at"`
	TimeZone string          `json:"time_zone,omitempty"`
}

type CheckCalendarOutput struct {
	Open      bool   `json:"open"`
	LocalTime string `json:"local_time"`
}

type EvaluateConditionsInput struct {
	Conditions []models.Predicate     `json:"conditions"`
	Snapshot   models.ContextSnapshot `json:"snapshot"`
}

type EvaluateConditionsOutput struct {
	Matched   bool     `json:"matched"`
	Satisfied []string `json:"satisfied"`
	Failed    []string `json:"failed"`
}

type RecentTriggersInput struct {
	LocationID string `json:"location_id,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type RecentTriggersOutput struct {
	Triggers []models.PlaybackTrigger `json:"triggers"`
}

// TriggerServer holds the dependencies the MCP tools read from.
type TriggerServer struct {
	triggers analytics.TriggerLog
	logger   *zap.Logger
}

// ValidateCampaign runs the registry's validation without registering.
func (s *TriggerServer) ValidateCampaign(ctx context.Context, req *mcp.CallToolRequest, input ValidateCampaignInput) (*mcp.CallToolResult, ValidateCampaignOutput, error) {
	c := input.Campaign
	if c.ID == "" {
		// the registry assigns IDs, so a draft without one is still valid
		c.ID = "draft"
	}
	warnings, err := c.Validate()
	out := ValidateCampaignOutput{Valid: err == nil, Warnings: warnings}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		out.Fields = verr.Fields
	} else if err != nil {
		return nil, ValidateCampaignOutput{}, err
	}
	s.logger.Debug("validated campaign draft",
		zap.String("campaign_id", input.Campaign.ID),
		zap.Bool("valid", out.Valid),
		zap.Int("warnings", len(warnings)))
	return nil, out, nil
}

// CheckCalendar reports whether a calendar is open at an instant, read in
// the given IANA zone.
func (s *TriggerServer) CheckCalendar(ctx context.Context, req *mcp.CallToolRequest, input CheckCalendarInput) (*mcp.CallToolResult, CheckCalendarOutput, error) {
	zone := models.Location{ID: "mcp", TimeZone: input.TimeZone}.Zone()
	at := input.At
	if at.IsZero() {
		at = time.Now()
	}
	local := at.In(zone)
	return nil, CheckCalendarOutput{
		Open:      logic.IsOpen(input.Calendar, local),
		LocalTime: local.Format(time.RFC3339),
	}, nil
}

// EvaluateConditions checks each predicate against a snapshot.
func (s *TriggerServer) EvaluateConditions(ctx context.Context, req *mcp.CallToolRequest, input EvaluateConditionsInput) (*mcp.CallToolResult, EvaluateConditionsOutput, error) {
	out := EvaluateConditionsOutput{Satisfied: []string{}, Failed: []string{}}
	for _, p := range input.Conditions {
		if logic.EvaluatePredicate(p, input.Snapshot) {
			out.Satisfied = append(out.Satisfied, p.String())
		} else {
			out.Failed = append(out.Failed, p.String())
		}
	}
	out.Matched = len(input.Conditions) > 0 && len(out.Failed) == 0
	return nil, out, nil
}

// RecentTriggers lists fired triggers from the trigger log, newest first.
func (s *TriggerServer) RecentTriggers(ctx context.Context, req *mcp.CallToolRequest, input RecentTriggersInput) (*mcp.CallToolResult, RecentTriggersOutput, error) {
	if s.triggers == nil {
		return nil, RecentTriggersOutput{}, analytics.ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	limit := input.Limit
	if limit <= 0 || limit > 1000 {
		limit = analytics.DefaultRecentLimit
	}
	triggers, err := s.triggers.RecentTriggers(ctx, input.LocationID, limit)
	if err != nil {
		return nil, RecentTriggersOutput{}, fmt.Errorf("query triggers: %w", err)
	}
	if triggers == nil {
		triggers = []models.PlaybackTrigger{}
	}
	return nil, RecentTriggersOutput{Triggers: triggers}, nil
}

func newMCPServer(s *TriggerServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "openadtrigger",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_campaign",
		Description: "Validate a campaign definition and list every invalid field and warning",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"campaign": map[string]interface{}{
					"type":        "object",
					"description": "Campaign definition in the admin API JSON format",
				},
			},
			"required": []string{"campaign"},
		},
	}, s.ValidateCampaign)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_calendar",
		Description: "Check whether a campaign calendar is open at a given instant",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"calendar": map[string]interface{}{
					"type":        "object",
					"description": "Calendar with start_date, end_date, recurrence and time_of_day_window",
				},
				"at": map[string]interface{}{
					"type":        "string",
					"format":      "date-time",
					"description": "Instant to check (optional, defaults to now)",
				},
				"time_zone": map[string]interface{}{
					"type":        "string",
					"description": "IANA time zone of the location (optional, defaults to UTC)",
				},
			},
			"required": []string{"calendar"},
		},
	}, s.CheckCalendar)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate_conditions",
		Description: "Evaluate campaign conditions against a context snapshot",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"conditions": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "object"},
					"description": "Predicates with category, key, operator and operand",
				},
				"snapshot": map[string]interface{}{
					"type":        "object",
					"description": "Context snapshot for one location",
				},
			},
			"required": []string{"conditions", "snapshot"},
		},
	}, s.EvaluateConditions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recent_triggers",
		Description: "List recently fired playback triggers",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"location_id": map[string]interface{}{
					"type":        "string",
					"description": "Only triggers for this location (optional)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     1000,
					"description": "Maximum rows (optional, defaults to 50)",
				},
			},
		},
	}, s.RecentTriggers)

	return server
}

func main() {
	// stdout carries the MCP protocol, so logs go to stderr
	logger, err := observability.InitStderrLogger("openadtrigger-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	s := &TriggerServer{logger: logger}

	if dsn := os.Getenv("CLICKHOUSE_DSN"); dsn != "" {
		chLog, err := analytics.InitClickHouse(dsn, 5, 2, 30*time.Minute)
		if err != nil {
			logger.Warn("ClickHouse unavailable, recent_triggers disabled", zap.Error(err))
		} else {
			defer chLog.Close()
			s.triggers = chLog
			logger.Info("ClickHouse connected for trigger history")
		}
	}

	server := newMCPServer(s)

	var logBuffer bytes.Buffer
	loggingTransport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio")

	if err := server.Run(context.Background(), loggingTransport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
