package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/patrickwarner/openadtrigger/internal/analytics"
	"github.com/patrickwarner/openadtrigger/internal/config"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

// campaignSummary counts a campaign's triggers by terminal status.
type campaignSummary struct {
	CampaignID string         `json:"campaign_id"`
	Triggers   int            `json:"triggers"`
	Locations  int            `json:"locations"`
	ByStatus   map[string]int `json:"by_status"`
	LastFired  time.Time      `json:"last_fired"`
}

func summarize(triggers []models.PlaybackTrigger) []campaignSummary {
	byID := map[string]*campaignSummary{}
	locs := map[string]map[string]struct{}{}
	for _, t := range triggers {
		s, ok := byID[t.CampaignID]
		if !ok {
			s = &campaignSummary{CampaignID: t.CampaignID, ByStatus: map[string]int{}}
			byID[t.CampaignID] = s
			locs[t.CampaignID] = map[string]struct{}{}
		}
		s.Triggers++
		s.ByStatus[string(t.Status)]++
		locs[t.CampaignID][t.LocationID] = struct{}{}
		if t.FiredAt.After(s.LastFired) {
			s.LastFired = t.FiredAt
		}
	}
	out := make([]campaignSummary, 0, len(byID))
	for id, s := range byID {
		s.Locations = len(locs[id])
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Triggers != out[j].Triggers {
			return out[i].Triggers > out[j].Triggers
		}
		return out[i].CampaignID < out[j].CampaignID
	})
	return out
}

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var location string
	var dsn string
	var limit int
	var summary bool
	flag.StringVar(&location, "location", "", "location ID (empty for all)")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.IntVar(&limit, "limit", analytics.DefaultRecentLimit, "maximum triggers to read")
	flag.BoolVar(&summary, "summary", false, "print per-campaign counts instead of raw triggers")
	flag.Parse()

	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		dsn = cfg.ClickHouseDSN
	}

	log, err := analytics.InitClickHouse(dsn, 2, 1, 5*time.Minute)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	triggers, err := log.RecentTriggers(ctx, location, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query triggers: %v\n", err)
		os.Exit(1)
	}

	var out any = triggers
	if summary {
		out = summarize(triggers)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode triggers: %v\n", err)
		os.Exit(1)
	}
}
