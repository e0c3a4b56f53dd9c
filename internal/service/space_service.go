package service

import (
	"context"
	"fmt"

	"spacegrid/internal/domain"
	"spacegrid/internal/events"
	"spacegrid/internal/models"

	"github.com/rs/zerolog"
)

type SpaceService struct {
	repo     domain.SpaceRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewSpaceService(repo domain.SpaceRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *SpaceService {
	return &SpaceService{repo: repo, eventBus: eventBus, logger: orNop(logger)}
}

func (s *SpaceService) ListSpaces(ctx context.Context) ([]models.Space, error) {
	return s.repo.ListSpaces(ctx)
}

func (s *SpaceService) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	return s.repo.GetSpace(ctx, id)
}

// SaveSpace validates and stores a space, then announces the change.
func (s *SpaceService) SaveSpace(ctx context.Context, space *models.Space) error {
	if err := models.ValidateSpace(space); err != nil {
		return err
	}
	if err := s.repo.UpsertSpace(ctx, space); err != nil {
		return fmt.Errorf("save space %s: %w", space.ID, err)
	}

	if s.eventBus != nil {
		payload := map[string]string{"space_id": space.ID}
		if err := s.eventBus.PublishJSON(events.EventSpaceUpdated, payload); err != nil {
			s.logger.Error().Err(err).Str("space_id", space.ID).Msg("publish event error")
		}
	}
	return nil
}
