package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/patrickwarner/openadtrigger/internal/config"
	"github.com/patrickwarner/openadtrigger/internal/db"
	"github.com/patrickwarner/openadtrigger/internal/models"
	"github.com/patrickwarner/openadtrigger/internal/observability"
)

var (
	locCount    = flag.Int("locations", 5, "number of locations")
	campCount   = flag.Int("campaigns", 20, "number of campaigns")
	seed        = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	out         = flag.String("out", "-", "campaign seed YAML path (- for stdout)")
	toPostgres  = flag.Bool("postgres", false, "upsert generated locations into Postgres")
	apiURL      = flag.String("api", "", "engine base URL; when set campaigns are registered through the admin API")
	timeZoneCSV = flag.String("zones", "UTC,Europe/Berlin,America/New_York,Asia/Tokyo", "time zones to assign to locations")
)

var (
	locationTypes = []string{"mall", "transit", "gym", "cafe"}
	advertisers   = []string{"cold-drinks", "umbrella-co", "coffee-house", "sportswear", "grocer"}
)

type seedFile struct {
	Campaigns []models.Campaign `yaml:"campaigns"`
}

func main() {
	flag.Parse()

	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	r := rand.New(rand.NewSource(*seed))
	locations := randomLocations(r, *locCount, strings.Split(*timeZoneCSV, ","))

	campaigns := make([]models.Campaign, 0, *campCount)
	for i := 0; i < *campCount; i++ {
		c := randomCampaign(r, i, locations)
		if _, err := c.Validate(); err != nil {
			logger.Fatal("generated invalid campaign", zap.String("campaign_id", c.ID), zap.Error(err))
		}
		campaigns = append(campaigns, c)
	}

	if *toPostgres {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
		pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer pg.Close()
		for _, l := range locations {
			if err := pg.UpsertLocation(context.Background(), l); err != nil {
				logger.Fatal("upsert location", zap.Error(err))
			}
		}
		logger.Info("locations written", zap.Int("count", len(locations)))
	} else {
		ids := make([]string, len(locations))
		for i, l := range locations {
			ids[i] = l.ID + "@" + l.TimeZone
		}
		logger.Info("set LOCATIONS for a static directory", zap.String("LOCATIONS", strings.Join(ids, ",")))
	}

	if *apiURL != "" {
		if err := registerCampaigns(*apiURL, campaigns, logger); err != nil {
			logger.Fatal("register campaigns", zap.Error(err))
		}
		return
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Fatal("create seed file", zap.Error(err))
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := writeSeed(w, campaigns); err != nil {
		logger.Fatal("write seed", zap.Error(err))
	}
	logger.Info("campaign seed written", zap.String("out", *out), zap.Int("campaigns", len(campaigns)))
}

func writeSeed(w io.Writer, campaigns []models.Campaign) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seedFile{Campaigns: campaigns}); err != nil {
		return err
	}
	return enc.Close()
}

func registerCampaigns(baseURL string, campaigns []models.Campaign, logger *zap.Logger) error {
	client := &http.Client{Timeout: 10 * time.Second}
	for _, c := range campaigns {
		body, err := json.Marshal(c)
		if err != nil {
			return err
		}
		resp, err := client.Post(strings.TrimRight(baseURL, "/")+"/api/campaigns", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post campaign %s: %w", c.ID, err)
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("post campaign %s: http %d: %s", c.ID, resp.StatusCode, msg)
		}
		logger.Debug("campaign registered", zap.String("campaign_id", c.ID))
	}
	logger.Info("campaigns registered", zap.String("api", baseURL), zap.Int("count", len(campaigns)))
	return nil
}

func randomLocations(r *rand.Rand, n int, zones []string) []models.Location {
	out := make([]models.Location, n)
	for i := range out {
		typ := locationTypes[r.Intn(len(locationTypes))]
		out[i] = models.Location{
			ID:       fmt.Sprintf("%s-%d", typ, i+1),
			Name:     fmt.Sprintf("Demo %s %d", typ, i+1),
			Type:     typ,
			TimeZone: strings.TrimSpace(zones[r.Intn(len(zones))]),
			Active:   true,
		}
	}
	return out
}

func randomCampaign(r *rand.Rand, i int, locations []models.Location) models.Campaign {
	adv := advertisers[r.Intn(len(advertisers))]
	c := models.Campaign{
		ID:           fmt.Sprintf("%s-%d", adv, i+1),
		AdvertiserID: adv,
		Name:         fmt.Sprintf("%s spot %d", adv, i+1),
		CreativeID:   fmt.Sprintf("%s-creative-%d", adv, r.Intn(5)+1),
		Priority:     models.MinPriority + r.Intn(models.MaxPriority),
		Conditions:   []models.Predicate{randomPredicate(r)},
		Calendar:     randomCalendar(r),
		Active:       true,
	}
	// one to three locations
	perm := r.Perm(len(locations))
	for _, idx := range perm[:min(len(perm), 1+r.Intn(3))] {
		c.LocationScope = append(c.LocationScope, locations[idx].ID)
	}
	if r.Intn(3) == 0 {
		c.MinSpacingMinutes = 15 * (1 + r.Intn(4))
	}
	return c
}

func randomPredicate(r *rand.Rand) models.Predicate {
	switch r.Intn(4) {
	case 0:
		return models.Predicate{Category: models.CategoryEnvironmental, Key: models.KeyTemperature,
			Operator: models.OpAbove, Operand: models.Operand{Number: models.Float(float64(15 + r.Intn(15)))}}
	case 1:
		return models.Predicate{Category: models.CategoryEnvironmental, Key: models.KeyHumidity,
			Operator: models.OpAbove, Operand: models.Operand{Number: models.Float(float64(50 + r.Intn(40)))}}
	case 2:
		return models.Predicate{Category: models.CategoryLocation, Key: models.KeyFootTraffic,
			Operator: models.OpGreaterOrEqual, Operand: models.Operand{Number: models.Float(float64(30 + r.Intn(50)))}}
	default:
		return models.Predicate{Category: models.CategoryLocation, Key: models.KeyLocationType,
			Operator: models.OpIn, Operand: models.Operand{Set: []string{locationTypes[r.Intn(len(locationTypes))]}}}
	}
}

func randomCalendar(r *rand.Rand) models.Calendar {
	start := models.DateOf(time.Now())
	cal := models.Calendar{StartDate: start}
	switch r.Intn(3) {
	case 0:
		cal.Recurrence = models.Recurrence{Kind: models.RecurrenceDaily}
	case 1:
		cal.Recurrence = models.Recurrence{Kind: models.RecurrenceWeekly, Weekdays: []models.Weekday{
			models.Weekday(time.Monday), models.Weekday(time.Wednesday), models.Weekday(time.Friday),
		}}
	default:
		every := []int{15, 30, 60, 120}[r.Intn(4)]
		stop := models.NewTimeOfDay(20, 0)
		cal.Recurrence = models.Recurrence{Kind: models.RecurrenceIntervalRepeat, EveryMinutes: every, StopBefore: &stop}
	}
	if r.Intn(2) == 0 {
		open := 7 + r.Intn(4)
		cal.Window = &models.TimeWindow{Start: models.NewTimeOfDay(open, 0), End: models.NewTimeOfDay(open+10, 0)}
	}
	return cal
}
