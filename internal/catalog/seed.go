package catalog

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedRecord struct {
	Owner       string        `yaml:"owner"`
	AcquiredAgo time.Duration `yaml:"acquired_ago"`
	Price       string        `yaml:"price"`
}

type seedAsset struct {
	ID               string        `yaml:"id"`
	Title            string        `yaml:"title"`
	Description      string        `yaml:"description"`
	ImageURL         string        `yaml:"image_url"`
	AdditionalImages []string      `yaml:"additional_images"`
	Creator          string        `yaml:"creator"`
	CreatedAgo       time.Duration `yaml:"created_ago"`
	History          []seedRecord  `yaml:"history"`
}

// DefaultSeed returns the built-in demo catalog with timestamps relative to now.
func DefaultSeed(now time.Time) ([]Asset, error) {
	return LoadSeed(defaultSeed, now)
}

// LoadSeed parses a YAML catalog. Each asset's owner and price are taken
// from the last entry of its history.
func LoadSeed(data []byte, now time.Time) ([]Asset, error) {
	var records []seedAsset
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}

	seen := make(map[string]bool, len(records))
	assets := make([]Asset, 0, len(records))
	for i, r := range records {
		switch {
		case r.ID == "":
			return nil, fmt.Errorf("seed asset %d: missing id", i)
		case seen[r.ID]:
			return nil, fmt.Errorf("seed asset %s: duplicate id", r.ID)
		case len(r.History) == 0:
			return nil, fmt.Errorf("seed asset %s: empty ownership history", r.ID)
		case !SameIdentity(r.History[0].Owner, r.Creator):
			return nil, fmt.Errorf("seed asset %s: first owner %s is not the creator", r.ID, r.History[0].Owner)
		}
		seen[r.ID] = true

		history := make([]OwnershipRecord, len(r.History))
		for j, h := range r.History {
			if err := validatePrice(h.Price); err != nil {
				return nil, fmt.Errorf("seed asset %s: %w", r.ID, err)
			}
			history[j] = OwnershipRecord{
				Owner:      h.Owner,
				AcquiredAt: now.Add(-h.AcquiredAgo),
				Price:      h.Price,
			}
		}
		last := history[len(history)-1]

		assets = append(assets, Asset{
			ID:               r.ID,
			Title:            r.Title,
			Description:      r.Description,
			ImageURL:         r.ImageURL,
			AdditionalImages: r.AdditionalImages,
			Creator:          r.Creator,
			Owner:            last.Owner,
			Price:            last.Price,
			CreatedAt:        now.Add(-r.CreatedAgo),
			History:          history,
		})
	}
	return assets, nil
}
