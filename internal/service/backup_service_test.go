package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
	"github.com/edunexa/tuition-api/pkg/storage"
)

type mockBackupRepo struct {
	backups  map[string]models.Backup
	stale    []models.Backup
	expired  []models.Backup
	statuses map[string]models.BackupStatus
	nextID   int
}

func newMockBackupRepo() *mockBackupRepo {
	return &mockBackupRepo{backups: make(map[string]models.Backup), statuses: make(map[string]models.BackupStatus)}
}

func (m *mockBackupRepo) List(ctx context.Context, tuitionID string) ([]models.Backup, error) {
	out := make([]models.Backup, 0, len(m.backups))
	for _, b := range m.backups {
		if b.TuitionID == tuitionID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBackupRepo) FindByID(ctx context.Context, tuitionID, id string) (*models.Backup, error) {
	if b, ok := m.backups[id]; ok && b.TuitionID == tuitionID {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBackupRepo) Create(ctx context.Context, backup *models.Backup) error {
	m.nextID++
	backup.ID = "b" + string(rune('0'+m.nextID))
	m.backups[backup.ID] = *backup
	return nil
}

func (m *mockBackupRepo) UpdateStatus(ctx context.Context, id string, status models.BackupStatus) error {
	m.statuses[id] = status
	if b, ok := m.backups[id]; ok {
		b.Status = status
		m.backups[id] = b
	}
	return nil
}

func (m *mockBackupRepo) OldestReadyBeyond(ctx context.Context, tuitionID string, keep int) ([]models.Backup, error) {
	return m.stale, nil
}

func (m *mockBackupRepo) ListExpired(ctx context.Context, asOf time.Time) ([]models.Backup, error) {
	return m.expired, nil
}

type mockSnapshot struct {
	data map[string][]map[string]interface{}
	err  error
}

func (m *mockSnapshot) Tables() []string {
	return []string{"students", "fees"}
}

func (m *mockSnapshot) ExportTenant(ctx context.Context, tuitionID string) (map[string][]map[string]interface{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

type fixedLimiter struct {
	allowed bool
	keys    []string
}

func (f *fixedLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, nil
}

func snapshotData() map[string][]map[string]interface{} {
	return map[string][]map[string]interface{}{
		"students": {
			{"id": "s1", "full_name": "Asha", "roll_no": 12},
		},
		"fees": {
			{"id": "f1", "amount": 1500.0, "status": "pending"},
		},
	}
}

func newTestBackupService(t *testing.T, repo *mockBackupRepo, limiter *fixedLimiter) (*BackupService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewBackupService(repo, &mockSnapshot{data: snapshotData()}, limiter, nil, store, signer, nil, BackupConfig{}, zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC) })
	return svc, store
}

func TestBackupServiceCreate(t *testing.T) {
	repo := newMockBackupRepo()
	svc, store := newTestBackupService(t, repo, &fixedLimiter{allowed: true})

	resp, err := svc.Create(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, string(models.BackupStatusReady), resp.Status)
	assert.True(t, strings.HasPrefix(resp.Filename, "backups/t1/"), resp.Filename)
	assert.Equal(t, time.Date(2026, time.May, 9, 8, 0, 0, 0, time.UTC), resp.ExpiresAt)
	assert.Equal(t, time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC), resp.CreatedAt)
	assert.Positive(t, resp.SizeBytes)

	raw, err := os.ReadFile(store.Path(resp.Filename))
	require.NoError(t, err)
	var archive struct {
		TuitionID string                              `json:"tuition_id"`
		Format    string                              `json:"format"`
		Tables    map[string][]map[string]interface{} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(raw, &archive))
	assert.Equal(t, "t1", archive.TuitionID)
	assert.Equal(t, "json/v1", archive.Format)
	require.Len(t, archive.Tables["students"], 1)
}

func TestBackupServiceCreateRateLimited(t *testing.T) {
	limiter := &fixedLimiter{allowed: false}
	svc, _ := newTestBackupService(t, newMockBackupRepo(), limiter)

	_, err := svc.Create(context.Background(), "t1", "u1")
	require.Error(t, err)
	require.Len(t, limiter.keys, 1)
	assert.Equal(t, "backup:u1", limiter.keys[0])
}

func TestBackupServiceCreateTrimsRetention(t *testing.T) {
	repo := newMockBackupRepo()
	svc, store := newTestBackupService(t, repo, &fixedLimiter{allowed: true})

	// Seed an old archive that the retention pass should remove.
	_, err := store.Save("backups/t1/old.json", []byte("{}"))
	require.NoError(t, err)
	repo.stale = []models.Backup{{ID: "old", TuitionID: "t1", Filename: "backups/t1/old.json", Status: models.BackupStatusReady}}

	_, err = svc.Create(context.Background(), "t1", "u1")
	require.NoError(t, err)

	assert.Equal(t, models.BackupStatusDeleted, repo.statuses["old"])
	_, err = os.Stat(store.Path("backups/t1/old.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestBackupServiceDownloadTokenRoundTrip(t *testing.T) {
	repo := newMockBackupRepo()
	svc, store := newTestBackupService(t, repo, &fixedLimiter{allowed: true})

	created, err := svc.Create(context.Background(), "t1", "u1")
	require.NoError(t, err)

	link, err := svc.Download(context.Background(), "t1", "u1", created.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/backups/download?token="), link.URL)

	token := strings.TrimPrefix(link.URL, "/api/v1/backups/download?token=")
	backupID, path, err := svc.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, backupID)
	assert.Equal(t, store.Path(created.Filename), path)

	_, _, err = svc.ResolveToken(context.Background(), token+"x")
	require.Error(t, err)
}

func TestBackupServiceDownloadUnknownID(t *testing.T) {
	svc, _ := newTestBackupService(t, newMockBackupRepo(), &fixedLimiter{allowed: true})

	_, err := svc.Download(context.Background(), "t1", "u1", "missing")
	require.Error(t, err)
}

func TestBackupServiceSweepExpired(t *testing.T) {
	repo := newMockBackupRepo()
	svc, store := newTestBackupService(t, repo, &fixedLimiter{allowed: true})

	_, err := store.Save("backups/t1/stale.json", []byte("{}"))
	require.NoError(t, err)
	repo.expired = []models.Backup{{ID: "b9", TuitionID: "t1", Filename: "backups/t1/stale.json", Status: models.BackupStatusReady}}

	swept, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, models.BackupStatusExpired, repo.statuses["b9"])
}

func TestBackupServiceExportExcel(t *testing.T) {
	svc, _ := newTestBackupService(t, newMockBackupRepo(), &fixedLimiter{allowed: true})

	payload, filename, err := svc.ExportExcel(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
	assert.Equal(t, "export-20260310.xlsx", filename)
}
