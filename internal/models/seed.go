package models

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type campaignSeedFile struct {
	Campaigns []yaml.Node `yaml:"campaigns"`
}

// DecodeCampaignSeed reads a YAML catalogue of the form
//
//	campaigns:
//	  - id: summer-heat
//	    priority: 8
//	    ...
//
// Campaigns default to active when is_active is omitted.
func DecodeCampaignSeed(r io.Reader) ([]Campaign, error) {
	var file campaignSeedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode campaign seed: %w", err)
	}
	out := make([]Campaign, 0, len(file.Campaigns))
	for i := range file.Campaigns {
		c := Campaign{Active: true}
		if err := file.Campaigns[i].Decode(&c); err != nil {
			return nil, fmt.Errorf("campaign %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadCampaignSeed registers every campaign in the YAML file at path.
// Invalid campaigns are logged with their field errors and skipped. It
// returns the number of campaigns registered.
func LoadCampaignSeed(path string, registry CampaignRegistry, logger *zap.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open campaign seed: %w", err)
	}
	defer func() { _ = f.Close() }()

	campaigns, err := DecodeCampaignSeed(f)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, c := range campaigns {
		id, err := registry.Register(c)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				logger.Error("invalid seed campaign",
					zap.String("campaign_id", c.ID),
					zap.Any("fields", verr.Fields))
				continue
			}
			return loaded, err
		}
		stored, _ := registry.Get(id)
		for _, w := range stored.Warnings {
			logger.Warn("seed campaign warning", zap.String("campaign_id", id), zap.String("warning", w))
		}
		loaded++
	}
	return loaded, nil
}
