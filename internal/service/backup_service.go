package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/dto"
	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/export"
	"github.com/edunexa/tuition-api/pkg/storage"
)

type backupRepository interface {
	List(ctx context.Context, tuitionID string) ([]models.Backup, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.Backup, error)
	Create(ctx context.Context, backup *models.Backup) error
	UpdateStatus(ctx context.Context, id string, status models.BackupStatus) error
	OldestReadyBeyond(ctx context.Context, tuitionID string, keep int) ([]models.Backup, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]models.Backup, error)
}

type snapshotExporter interface {
	Tables() []string
	ExportTenant(ctx context.Context, tuitionID string) (map[string][]map[string]interface{}, error)
}

type backupRateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type backupAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BackupConfig tunes snapshot retention and creation throttling.
type BackupConfig struct {
	RetentionCount int
	ExpiryDays     int
	RateLimit      int
	RateWindow     time.Duration
}

func (c BackupConfig) withDefaults() BackupConfig {
	if c.RetentionCount <= 0 {
		c.RetentionCount = 2
	}
	if c.ExpiryDays <= 0 {
		c.ExpiryDays = 60
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	return c
}

// BackupService creates, lists and serves tenant data snapshots.
type BackupService struct {
	repo     backupRepository
	snapshot snapshotExporter
	limiter  backupRateLimiter
	audit    backupAuditWriter
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	excel    *export.ExcelExporter
	cfg      BackupConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewBackupService constructs the backup service.
func NewBackupService(
	repo backupRepository,
	snapshot snapshotExporter,
	limiter backupRateLimiter,
	audit backupAuditWriter,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	excel *export.ExcelExporter,
	cfg BackupConfig,
	logger *zap.Logger,
) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if excel == nil {
		excel = export.NewExcelExporter()
	}
	return &BackupService{
		repo:     repo,
		snapshot: snapshot,
		limiter:  limiter,
		audit:    audit,
		store:    store,
		signer:   signer,
		excel:    excel,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock.
func (s *BackupService) WithClock(now func() time.Time) *BackupService {
	if now != nil {
		s.now = now
	}
	return s
}

// Create snapshots every tenant table into a JSON archive, stores it and trims
// snapshots beyond the retention count.
func (s *BackupService) Create(ctx context.Context, tuitionID, userID string) (*dto.BackupResponse, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "backup:"+userID, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			s.logger.Warn("backup rate check failed, allowing", zap.Error(err))
		} else if !allowed {
			return nil, appErrors.Clone(appErrors.ErrRateLimited, "backup creation limit reached, try again shortly")
		}
	}

	data, err := s.snapshot.ExportTenant(ctx, tuitionID)
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	createdAt := s.now()
	archive := map[string]interface{}{
		"tuition_id": tuitionID,
		"created_at": createdAt.Format(time.RFC3339),
		"format":     "json/v1",
		"tables":     data,
	}
	payload, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	backup := &models.Backup{
		TuitionID: tuitionID,
		CreatedBy: &userID,
		SizeBytes: int64(len(payload)),
		Status:    models.BackupStatusReady,
		ExpiresAt: createdAt.AddDate(0, 0, s.cfg.ExpiryDays),
		CreatedAt: createdAt,
	}
	backup.Filename = fmt.Sprintf("backups/%s/%s.json", tuitionID, createdAt.Format("20060102-150405"))

	if _, err := s.store.Save(backup.Filename, payload); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	if err := s.repo.Create(ctx, backup); err != nil {
		// metadata insert failed, remove the orphaned archive
		if delErr := s.store.Delete(backup.Filename); delErr != nil {
			s.logger.Warn("failed to remove orphaned backup file", zap.String("filename", backup.Filename), zap.Error(delErr))
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	s.trimRetention(ctx, tuitionID)
	s.writeAudit(ctx, tuitionID, userID, models.AuditActionBackupCreate, backup.ID)

	s.logger.Info("backup created",
		zap.String("tuition_id", tuitionID),
		zap.String("backup_id", backup.ID),
		zap.Int64("size_bytes", backup.SizeBytes))
	resp := toBackupResponse(backup)
	return &resp, nil
}

// List returns ready snapshots for a tuition, newest first.
func (s *BackupService) List(ctx context.Context, tuitionID string) ([]dto.BackupResponse, error) {
	backups, err := s.repo.List(ctx, tuitionID)
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	out := make([]dto.BackupResponse, 0, len(backups))
	for i := range backups {
		out = append(out, toBackupResponse(&backups[i]))
	}
	return out, nil
}

// Download issues a signed URL for a snapshot archive.
func (s *BackupService) Download(ctx context.Context, tuitionID, userID, id string) (*dto.BackupDownloadResponse, error) {
	backup, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "backup not found")
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	if backup.Status != models.BackupStatusReady {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "backup is no longer available")
	}
	token, expiresAt, err := s.signer.Generate(backup.ID, backup.Filename)
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	s.writeAudit(ctx, tuitionID, userID, models.AuditActionBackupDownload, backup.ID)
	return &dto.BackupDownloadResponse{
		URL:       "/api/v1/backups/download?token=" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveToken validates a signed token and opens the referenced archive.
// Returns the backup metadata alongside the file path for streaming.
func (s *BackupService) ResolveToken(ctx context.Context, token string) (string, string, error) {
	backupID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return backupID, s.store.Path(relPath), nil
}

// ExportExcel renders the current tenant data as a workbook with one sheet per
// table and returns the XLSX bytes.
func (s *BackupService) ExportExcel(ctx context.Context, tuitionID, userID string) ([]byte, string, error) {
	data, err := s.snapshot.ExportTenant(ctx, tuitionID)
	if err != nil {
		return nil, "", appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	wb := export.Workbook{}
	for _, table := range s.snapshot.Tables() {
		rows := data[table]
		wb.Sheets = append(wb.Sheets, export.Sheet{Name: table, Data: tableDataset(rows)})
	}
	payload, err := s.excel.Render(wb)
	if err != nil {
		return nil, "", appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	s.writeAudit(ctx, tuitionID, userID, models.AuditActionBackupExport, "")
	filename := fmt.Sprintf("export-%s.xlsx", s.now().Format("20060102"))
	return payload, filename, nil
}

// SweepExpired transitions backups past their expiry and removes their files.
// Wired to the scheduler.
func (s *BackupService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	swept := 0
	for i := range expired {
		b := &expired[i]
		if err := s.store.Delete(b.Filename); err != nil {
			s.logger.Warn("failed to delete expired backup file", zap.String("filename", b.Filename), zap.Error(err))
			continue
		}
		if err := s.repo.UpdateStatus(ctx, b.ID, models.BackupStatusExpired); err != nil {
			s.logger.Warn("failed to mark backup expired", zap.String("backup_id", b.ID), zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("expired backups swept", zap.Int("count", swept))
	}
	return swept, nil
}

// trimRetention deletes the oldest snapshots beyond the retention count.
func (s *BackupService) trimRetention(ctx context.Context, tuitionID string) {
	stale, err := s.repo.OldestReadyBeyond(ctx, tuitionID, s.cfg.RetentionCount)
	if err != nil {
		s.logger.Warn("retention query failed", zap.String("tuition_id", tuitionID), zap.Error(err))
		return
	}
	for i := range stale {
		b := &stale[i]
		if err := s.store.Delete(b.Filename); err != nil {
			s.logger.Warn("failed to delete trimmed backup file", zap.String("filename", b.Filename), zap.Error(err))
			continue
		}
		if err := s.repo.UpdateStatus(ctx, b.ID, models.BackupStatusDeleted); err != nil {
			s.logger.Warn("failed to mark backup deleted", zap.String("backup_id", b.ID), zap.Error(err))
		}
	}
}

func (s *BackupService) writeAudit(ctx context.Context, tuitionID, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		TuitionID: &tuitionID,
		UserID:    &userID,
		Action:    action,
		Resource:  "backups",
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func toBackupResponse(backup *models.Backup) dto.BackupResponse {
	return dto.BackupResponse{
		ID:        backup.ID,
		Filename:  backup.Filename,
		SizeBytes: backup.SizeBytes,
		Status:    string(backup.Status),
		ExpiresAt: backup.ExpiresAt,
		CreatedAt: backup.CreatedAt,
	}
}

// tableDataset flattens generic row maps into an export dataset with sorted,
// stable column headers.
func tableDataset(rows []map[string]interface{}) export.Dataset {
	headerSet := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			headerSet[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(headerSet))
	for k := range headerSet {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	out := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		flat := make(map[string]string, len(row))
		for _, h := range headers {
			flat[h] = stringifyCell(row[h])
		}
		out.Rows = append(out.Rows, flat)
	}
	return out
}

func stringifyCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
