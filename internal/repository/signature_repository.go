package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postloom/postloom/internal/models"
)

type SignatureRepository interface {
	Create(ctx context.Context, sig *models.Signature) (int64, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Signature, error)
	CheckByUserID(ctx context.Context, id, userID int64) (bool, error)
	Update(ctx context.Context, sig *models.Signature) error
	SetDefault(ctx context.Context, userID, id int64) error
	Remove(ctx context.Context, id int64) error
}

type signatureRepository struct {
	db *sql.DB
}

func NewSignatureRepository(db *sql.DB) SignatureRepository {
	return &signatureRepository{db: db}
}

func (r *signatureRepository) Create(ctx context.Context, sig *models.Signature) (int64, error) {
	query := `
		INSERT INTO signatures (user_id, name, content, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, sig.UserID, sig.Name, sig.Content, sig.IsDefault).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *signatureRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Signature, error) {
	query := `SELECT id, user_id, name, content, is_default, created_at, updated_at FROM signatures WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var signatures []*models.Signature
	for rows.Next() {
		var sig models.Signature
		err := rows.Scan(&sig.ID, &sig.UserID, &sig.Name, &sig.Content, &sig.IsDefault, &sig.CreatedAt, &sig.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		signatures = append(signatures, &sig)
	}
	return signatures, rows.Err()
}

func (r *signatureRepository) CheckByUserID(ctx context.Context, id, userID int64) (bool, error) {
	query := `SELECT 1 FROM signatures WHERE id = $1 AND user_id = $2`

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

func (r *signatureRepository) Update(ctx context.Context, sig *models.Signature) error {
	query := `
		UPDATE signatures
		SET name = $1,
			content = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, sig.Name, sig.Content, time.Now(), sig.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// SetDefault demotes the old default and promotes the new one in a single
// transaction so there is never more or less than one default per user.
func (r *signatureRepository) SetDefault(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE signatures SET is_default = FALSE, updated_at = $1 WHERE user_id = $2 AND is_default = TRUE`, time.Now(), userID); err != nil {
		slog.Info(err.Error())
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE signatures SET is_default = TRUE, updated_at = $1 WHERE id = $2 AND user_id = $3`, time.Now(), id, userID); err != nil {
		slog.Info(err.Error())
		return err
	}

	return tx.Commit()
}

func (r *signatureRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM signatures WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
