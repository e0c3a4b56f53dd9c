// Package seed loads the space catalog file and stores it.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"spacegrid/internal/database"
	"spacegrid/internal/models"

	"gopkg.in/yaml.v2"
)

type catalogFile struct {
	Spaces []models.Space `yaml:"spaces"`
}

var ErrEmptyCatalog = errors.New("no spaces in catalog")

// ParseSpaces decodes and validates a catalog document.
func ParseSpaces(data []byte) ([]models.Space, error) {
	var cfg catalogFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse spaces: %w", err)
	}
	if len(cfg.Spaces) == 0 {
		return nil, ErrEmptyCatalog
	}
	if err := models.ValidateSpaces(cfg.Spaces); err != nil {
		return nil, err
	}
	return cfg.Spaces, nil
}

func LoadSpacesFile(path string) ([]models.Space, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spaces: %w", err)
	}
	return ParseSpaces(data)
}

// SpaceStore is satisfied by service.SpaceService.
type SpaceStore interface {
	GetSpace(ctx context.Context, id string) (*models.Space, error)
	SaveSpace(ctx context.Context, space *models.Space) error
}

type Result struct {
	Created int
	Updated int
}

// Apply upserts every space, counting new and replaced ones.
func Apply(ctx context.Context, store SpaceStore, spaces []models.Space) (Result, error) {
	var res Result
	for i := range spaces {
		sp := &spaces[i]
		_, err := store.GetSpace(ctx, sp.ID)
		switch {
		case err == nil:
			res.Updated++
		case errors.Is(err, database.ErrSpaceNotFound):
			res.Created++
		default:
			return res, fmt.Errorf("get %s: %w", sp.ID, err)
		}
		if err := store.SaveSpace(ctx, sp); err != nil {
			return res, fmt.Errorf("save %s: %w", sp.ID, err)
		}
	}
	return res, nil
}
