package service

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/dto"
	"github.com/edunexa/tuition-api/internal/models"
	"github.com/edunexa/tuition-api/pkg/jobs"
	"github.com/edunexa/tuition-api/pkg/storage"
)

type mockReportRepo struct {
	mu       sync.Mutex
	jobs     map[string]models.ReportJob
	failed   map[string]string
	finished map[string]string
	nextID   int
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{jobs: make(map[string]models.ReportJob), failed: make(map[string]string), finished: make(map[string]string)}
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	job.ID = "job" + string(rune('0'+m.nextID))
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, tuitionID, id string) (*models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.TuitionID == tuitionID {
		return &j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportRepo) List(ctx context.Context, tuitionID string, limit int) ([]models.ReportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ReportJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.TuitionID == tuitionID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *mockReportRepo) UpdateProgress(ctx context.Context, id string, status models.ReportStatus, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Status = status
	j.Progress = progress
	m.jobs[id] = j
	return nil
}

func (m *mockReportRepo) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Status = models.ReportStatusFinished
	j.Progress = 100
	j.ResultURL = &resultURL
	m.jobs[id] = j
	m.finished[id] = resultURL
	return nil
}

func (m *mockReportRepo) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Status = models.ReportStatusFailed
	m.jobs[id] = j
	m.failed[id] = message
	return nil
}

func (m *mockReportRepo) job(id string) models.ReportJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func (m *mockReportRepo) finishedURL(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url, ok := m.finished[id]
	return url, ok
}

func (m *mockReportRepo) failedMessage(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[id]
}

type mockReportAttendance struct{}

func (m *mockReportAttendance) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	return nil, 0, nil
}

func (m *mockReportAttendance) Summary(ctx context.Context, tuitionID, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{Present: 9, Absent: 1, Total: 10, Percent: 90}, nil
}

type mockReportFees struct {
	fees  []models.FeeDetail
	pages map[int][]models.FeeDetail
	total int
}

func (m *mockReportFees) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	if m.pages != nil {
		return m.pages[filter.Page], m.total, nil
	}
	return m.fees, len(m.fees), nil
}

type mockReportResults struct {
	results []models.TestResultDetail
}

func (m *mockReportResults) List(ctx context.Context, filter models.TestFilter) ([]models.WeeklyTestDetail, int, error) {
	return nil, 0, nil
}

func (m *mockReportResults) ListResults(ctx context.Context, tuitionID, testID string) ([]models.TestResultDetail, error) {
	return m.results, nil
}

func (m *mockReportResults) ListResultsForStudent(ctx context.Context, tuitionID, studentID string) ([]models.TestResultDetail, error) {
	return m.results, nil
}

func reportQueueJob(jobID string) jobs.Job {
	return jobs.Job{ID: "q-" + jobID, Type: "report", Payload: reportJobPayload{TuitionID: "t1", JobID: jobID}}
}

func newTestReportService(t *testing.T) (*ReportService, *mockReportRepo, *storage.LocalStorage) {
	t.Helper()
	return newTestReportServiceWithFees(t, &mockReportFees{fees: []models.FeeDetail{
		{Fee: models.Fee{ID: "f1", StudentID: "s1", Label: "March", Amount: 1500, Status: models.FeeStatusPending, DueDate: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)}},
	}})
}

func newTestReportServiceWithFees(t *testing.T, fees *mockReportFees) (*ReportService, *mockReportRepo, *storage.LocalStorage) {
	t.Helper()
	repo := newMockReportRepo()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	svc := NewReportService(repo, &mockReportAttendance{}, fees, &mockReportResults{}, store, signer, ReportQueueConfig{Workers: 1}, zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC) })
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc, repo, store
}

func TestReportServiceEnqueueValidation(t *testing.T) {
	svc, _, _ := newTestReportService(t)

	_, err := svc.Enqueue(context.Background(), "t1", "u1", dto.ReportRequest{Type: "payroll"})
	require.Error(t, err)

	_, err = svc.Enqueue(context.Background(), "t1", "u1", dto.ReportRequest{Type: models.ReportTypeAttendance, Format: "docx"})
	require.Error(t, err)

	// Progress reports are per-student.
	_, err = svc.Enqueue(context.Background(), "t1", "u1", dto.ReportRequest{Type: models.ReportTypeProgress})
	require.Error(t, err)
}

func TestReportServiceEnqueuePersistsQueuedJob(t *testing.T) {
	svc, repo, _ := newTestReportService(t)

	resp, err := svc.Enqueue(context.Background(), "t1", "u1", dto.ReportRequest{Type: models.ReportTypeFees})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)

	job := repo.job(resp.ID)
	assert.Equal(t, models.ReportTypeFees, job.Type)
	// Omitted formats default to CSV.
	assert.Equal(t, models.ReportFormatCSV, job.Params.Format)
	assert.Equal(t, "u1", job.CreatedBy)
}

func TestReportServiceProcessFeeReport(t *testing.T) {
	svc, repo, _ := newTestReportService(t)

	resp, err := svc.Enqueue(context.Background(), "t1", "u1", dto.ReportRequest{Type: models.ReportTypeFees})
	require.NoError(t, err)

	require.NoError(t, svc.process(context.Background(), reportQueueJob(resp.ID)))

	resultURL, ok := repo.finishedURL(resp.ID)
	require.True(t, ok, "job should be finished")
	require.True(t, strings.HasPrefix(resultURL, "/api/v1/reports/download?token="), resultURL)

	token := strings.TrimPrefix(resultURL, "/api/v1/reports/download?token=")
	jobID, path, err := svc.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, jobID)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "March")
}

func TestReportServiceProcessDrainsAllFeePages(t *testing.T) {
	fee := func(id, label string) models.FeeDetail {
		return models.FeeDetail{Fee: models.Fee{ID: id, StudentID: "s1", Label: label, Amount: 1000, Status: models.FeeStatusPending, DueDate: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)}}
	}
	// A reported total larger than one page forces a second fetch.
	fees := &mockReportFees{
		total: reportPageSize + 2,
		pages: map[int][]models.FeeDetail{
			1: {fee("f1", "March"), fee("f2", "April")},
			2: {fee("f3", "May")},
		},
	}
	svc, repo, _ := newTestReportServiceWithFees(t, fees)

	job := &models.ReportJob{TuitionID: "t1", Type: models.ReportTypeFees, Status: models.ReportStatusQueued, CreatedBy: "u1", Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, svc.process(context.Background(), reportQueueJob(job.ID)))

	resultURL, ok := repo.finishedURL(job.ID)
	require.True(t, ok, "job should be finished")
	token := strings.TrimPrefix(resultURL, "/api/v1/reports/download?token=")
	_, path, err := svc.ResolveToken(token)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "March")
	assert.Contains(t, string(content), "May", "rows past the first page are included")
}

func TestReportServiceProcessSkipsFinishedJob(t *testing.T) {
	svc, repo, _ := newTestReportService(t)

	// Persist the job without touching the queue so only the direct
	// process call below ever sees it.
	job := &models.ReportJob{TuitionID: "t1", Type: models.ReportTypeFees, Status: models.ReportStatusQueued, CreatedBy: "u1", Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, repo.MarkFinished(context.Background(), job.ID, "/done", time.Now()))

	require.NoError(t, svc.process(context.Background(), reportQueueJob(job.ID)))
	finished, _ := repo.finishedURL(job.ID)
	assert.Equal(t, "/done", finished, "already finished jobs are untouched")
}

func TestReportServiceProcessBadDateRangeFails(t *testing.T) {
	svc, repo, _ := newTestReportService(t)

	from, to := "2026-03-20", "2026-03-01"
	resp, err := svc.Enqueue(context.Background(), "t1", "u1", dto.ReportRequest{
		Type: models.ReportTypeFees, DateFrom: &from, DateTo: &to,
	})
	require.NoError(t, err)

	require.NoError(t, svc.process(context.Background(), reportQueueJob(resp.ID)))
	assert.NotEmpty(t, repo.failedMessage(resp.ID))
	assert.Equal(t, models.ReportStatusFailed, repo.job(resp.ID).Status)
}

func TestReportServiceStatusNotFound(t *testing.T) {
	svc, _, _ := newTestReportService(t)

	_, err := svc.Status(context.Background(), "t1", "missing")
	require.Error(t, err)
}
