package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edunexa/tuition-api/internal/models"
)

// BackupRepository provides database access for tenant snapshot metadata.
type BackupRepository struct {
	db *sqlx.DB
}

// NewBackupRepository creates a new instance of BackupRepository.
func NewBackupRepository(db *sqlx.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

const backupColumns = `id, tuition_id, created_by, filename, size_bytes, status, expires_at, created_at`

// List returns ready backups for a tuition, newest first.
func (r *BackupRepository) List(ctx context.Context, tuitionID string) ([]models.Backup, error) {
	query := fmt.Sprintf(`SELECT %s FROM backups
        WHERE tuition_id = $1 AND status = 'ready' ORDER BY created_at DESC`, backupColumns)
	var backups []models.Backup
	if err := r.db.SelectContext(ctx, &backups, query, tuitionID); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

// FindByID loads a backup scoped to a tuition.
func (r *BackupRepository) FindByID(ctx context.Context, tuitionID, id string) (*models.Backup, error) {
	query := fmt.Sprintf(`SELECT %s FROM backups WHERE tuition_id = $1 AND id = $2 LIMIT 1`, backupColumns)
	var backup models.Backup
	if err := r.db.GetContext(ctx, &backup, query, tuitionID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find backup: %w", err)
	}
	return &backup, nil
}

// Create inserts backup metadata.
func (r *BackupRepository) Create(ctx context.Context, backup *models.Backup) error {
	if backup.ID == "" {
		backup.ID = uuid.NewString()
	}
	if backup.CreatedAt.IsZero() {
		backup.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO backups (id, tuition_id, created_by, filename, size_bytes, status, expires_at, created_at)
        VALUES (:id, :tuition_id, :created_by, :filename, :size_bytes, :status, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, backup); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	return nil
}

// UpdateStatus transitions a backup's lifecycle state.
func (r *BackupRepository) UpdateStatus(ctx context.Context, id string, status models.BackupStatus) error {
	const query = `UPDATE backups SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update backup status: %w", err)
	}
	return nil
}

// OldestReadyBeyond returns ready backups for a tuition in excess of keep,
// oldest first. Feeds the retention trim after each new snapshot.
func (r *BackupRepository) OldestReadyBeyond(ctx context.Context, tuitionID string, keep int) ([]models.Backup, error) {
	query := fmt.Sprintf(`SELECT %s FROM backups
        WHERE tuition_id = $1 AND status = 'ready'
        ORDER BY created_at DESC OFFSET $2`, backupColumns)
	var backups []models.Backup
	if err := r.db.SelectContext(ctx, &backups, query, tuitionID, keep); err != nil {
		return nil, fmt.Errorf("backups beyond retention: %w", err)
	}
	return backups, nil
}

// ListExpired returns ready backups whose expiry has passed.
func (r *BackupRepository) ListExpired(ctx context.Context, asOf time.Time) ([]models.Backup, error) {
	query := fmt.Sprintf(`SELECT %s FROM backups
        WHERE status = 'ready' AND expires_at <= $1`, backupColumns)
	var backups []models.Backup
	if err := r.db.SelectContext(ctx, &backups, query, asOf); err != nil {
		return nil, fmt.Errorf("list expired backups: %w", err)
	}
	return backups, nil
}
