package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
)

type PlatformRepository interface {
	Upsert(ctx context.Context, cp *models.ConnectedPlatform) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ConnectedPlatform, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error)
	HasActive(ctx context.Context, userID int64, platform string) (bool, error)
	GetActive(ctx context.Context, userID int64, platform string) (*models.ConnectedPlatform, error)
	CheckByUserID(ctx context.Context, id, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type platformRepository struct {
	db *sql.DB
}

func NewPlatformRepository(db *sql.DB) PlatformRepository {
	return &platformRepository{db: db}
}

const platformColumns = `id, user_id, platform, profile_id, account_name, account_handle, profile_picture_url, access_token, active, created_at, updated_at`

// Upsert keys on (user_id, platform, profile_id) so reconnecting the same
// account refreshes the stored token instead of duplicating the row.
func (r *platformRepository) Upsert(ctx context.Context, cp *models.ConnectedPlatform) (int64, error) {
	query := `
		INSERT INTO connected_platforms (user_id, platform, profile_id, account_name, account_handle, profile_picture_url, access_token, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (user_id, platform, profile_id)
		DO UPDATE SET account_name = EXCLUDED.account_name,
			account_handle = EXCLUDED.account_handle,
			profile_picture_url = EXCLUDED.profile_picture_url,
			access_token = EXCLUDED.access_token,
			active = TRUE,
			updated_at = $8
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		cp.UserID,
		cp.Platform,
		cp.ProfileID,
		cp.AccountName,
		cp.AccountHandle,
		cp.ProfilePicture,
		cp.AccessToken,
		time.Now(),
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *platformRepository) GetByID(ctx context.Context, id int64) (*models.ConnectedPlatform, error) {
	query := `SELECT ` + platformColumns + ` FROM connected_platforms WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var cp models.ConnectedPlatform
	err := row.Scan(&cp.ID, &cp.UserID, &cp.Platform, &cp.ProfileID, &cp.AccountName, &cp.AccountHandle, &cp.ProfilePicture, &cp.AccessToken, &cp.Active, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &cp, nil
}

func (r *platformRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedPlatform, error) {
	query := `SELECT ` + platformColumns + ` FROM connected_platforms WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var platforms []*models.ConnectedPlatform
	for rows.Next() {
		var cp models.ConnectedPlatform
		err := rows.Scan(&cp.ID, &cp.UserID, &cp.Platform, &cp.ProfileID, &cp.AccountName, &cp.AccountHandle, &cp.ProfilePicture, &cp.AccessToken, &cp.Active, &cp.CreatedAt, &cp.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		platforms = append(platforms, &cp)
	}
	return platforms, rows.Err()
}

func (r *platformRepository) HasActive(ctx context.Context, userID int64, platform string) (bool, error) {
	query := `SELECT 1 FROM connected_platforms WHERE user_id = $1 AND platform = $2 AND active = TRUE LIMIT 1`

	var result int
	err := r.db.QueryRowContext(ctx, query, userID, platform).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// GetActive returns the oldest active account for a user/platform pair,
// the one the publish worker posts through.
func (r *platformRepository) GetActive(ctx context.Context, userID int64, platform string) (*models.ConnectedPlatform, error) {
	query := `SELECT ` + platformColumns + ` FROM connected_platforms WHERE user_id = $1 AND platform = $2 AND active = TRUE ORDER BY created_at LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, userID, platform)

	var cp models.ConnectedPlatform
	err := row.Scan(&cp.ID, &cp.UserID, &cp.Platform, &cp.ProfileID, &cp.AccountName, &cp.AccountHandle, &cp.ProfilePicture, &cp.AccessToken, &cp.Active, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &cp, nil
}

func (r *platformRepository) CheckByUserID(ctx context.Context, id, userID int64) (bool, error) {
	query := `SELECT 1 FROM connected_platforms WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *platformRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM connected_platforms WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
