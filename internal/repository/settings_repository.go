package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
)

type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Settings, bool, error)
	Upsert(ctx context.Context, s *models.Settings) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.Settings, bool, error) {
	query := `SELECT id, user_id, notify_on_failure, timezone, created_at, updated_at FROM settings WHERE user_id = $1`
	row := r.db.QueryRowContext(ctx, query, userID)

	var settings models.Settings
	err := row.Scan(&settings.ID, &settings.UserID, &settings.NotifyOnFailure, &settings.Timezone, &settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}

	return &settings, true, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *models.Settings) error {
	query := `
		INSERT INTO settings (user_id, notify_on_failure, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET notify_on_failure = EXCLUDED.notify_on_failure,
			timezone = EXCLUDED.timezone,
			updated_at = $4
	`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.NotifyOnFailure, s.Timezone, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
