package service

import (
	"context"
	"fmt"

	"github.com/postloom/postloom/internal/models"
	"github.com/postloom/postloom/internal/repository"
)

type SettingsService interface {
	GetSettingsInfo(ctx context.Context, userID int64) (*models.Settings, error)
	UpdateSettings(ctx context.Context, userID int64, notifyOnFailure bool, timezone string) error
}

type settingsService struct {
	sr repository.SettingsRepository
}

func NewSettingsService(sr repository.SettingsRepository) SettingsService {
	return &settingsService{
		sr: sr,
	}
}

// GetSettingsInfo falls back to defaults for users that never touched
// their settings. Failure notifications default to on.
func (s *settingsService) GetSettingsInfo(ctx context.Context, userID int64) (*models.Settings, error) {
	settings, isExist, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !isExist {
		return &models.Settings{
			UserID:          userID,
			NotifyOnFailure: true,
			Timezone:        "UTC",
		}, nil
	}

	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID int64, notifyOnFailure bool, timezone string) error {
	if timezone == "" {
		timezone = "UTC"
	}

	settings := models.Settings{
		UserID:          userID,
		NotifyOnFailure: notifyOnFailure,
		Timezone:        timezone,
	}
	if err := s.sr.Upsert(ctx, &settings); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
