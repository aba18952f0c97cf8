package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/dto"
	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
	"github.com/edunexa/tuition-api/pkg/export"
	"github.com/edunexa/tuition-api/pkg/jobs"
	"github.com/edunexa/tuition-api/pkg/storage"
)

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, tuitionID, id string) (*models.ReportJob, error)
	List(ctx context.Context, tuitionID string, limit int) ([]models.ReportJob, error)
	UpdateProgress(ctx context.Context, id string, status models.ReportStatus, progress int) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
}

type reportAttendanceSource interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	Summary(ctx context.Context, tuitionID, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type reportFeeSource interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error)
}

type reportResultSource interface {
	List(ctx context.Context, filter models.TestFilter) ([]models.WeeklyTestDetail, int, error)
	ListResults(ctx context.Context, tuitionID, testID string) ([]models.TestResultDetail, error)
	ListResultsForStudent(ctx context.Context, tuitionID, studentID string) ([]models.TestResultDetail, error)
}

// reportJobPayload travels through the in-memory queue. Workers reload the
// persisted job row so restarts never process stale parameters.
type reportJobPayload struct {
	TuitionID string
	JobID     string
}

// ReportService enqueues report jobs and renders them in background workers.
type ReportService struct {
	repo       reportRepository
	attendance reportAttendanceSource
	fees       reportFeeSource
	results    reportResultSource
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	queue      *jobs.Queue
	logger     *zap.Logger
	now        func() time.Time
}

// ReportQueueConfig tunes the background worker pool.
type ReportQueueConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewReportService constructs the report service and its worker queue.
// Call Start before enqueueing and Stop on shutdown.
func NewReportService(
	repo reportRepository,
	attendance reportAttendanceSource,
	fees reportFeeSource,
	results reportResultSource,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	queueCfg ReportQueueConfig,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReportService{
		repo:       repo,
		attendance: attendance,
		fees:       fees,
		results:    results,
		store:      store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("reports", s.process, jobs.QueueConfig{
		Workers:    queueCfg.Workers,
		MaxRetries: queueCfg.MaxRetries,
		RetryDelay: queueCfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// WithClock overrides the service clock.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	if now != nil {
		s.now = now
	}
	return s
}

// Enqueue persists a queued job row and pushes it to the worker pool.
func (s *ReportService) Enqueue(ctx context.Context, tuitionID, userID string, req dto.ReportRequest) (*dto.ReportJobResponse, error) {
	switch req.Type {
	case models.ReportTypeAttendance, models.ReportTypeFees, models.ReportTypeResults, models.ReportTypeProgress:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	format := req.Format
	if format == "" {
		format = models.ReportFormatCSV
	}
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if req.Type == models.ReportTypeProgress && (req.StudentID == nil || *req.StudentID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "progress reports require a student")
	}

	job := &models.ReportJob{
		TuitionID: tuitionID,
		Type:      req.Type,
		Status:    models.ReportStatusQueued,
		CreatedBy: userID,
		CreatedAt: s.now(),
		Params: models.ReportJobParams{
			StudentID:  req.StudentID,
			DivisionID: req.DivisionID,
			DateFrom:   req.DateFrom,
			DateTo:     req.DateTo,
			Format:     format,
		},
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(job.Type),
		Payload: reportJobPayload{TuitionID: tuitionID, JobID: job.ID},
	}); err != nil {
		now := s.now()
		if failErr := s.repo.MarkFailed(ctx, job.ID, "worker queue unavailable", now); failErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}

	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status reports the lifecycle of a single job.
func (s *ReportService) Status(ctx context.Context, tuitionID, id string) (*dto.ReportStatusResponse, error) {
	job, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	return &dto.ReportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// List returns recent jobs for a tuition.
func (s *ReportService) List(ctx context.Context, tuitionID string, limit int) ([]dto.ReportStatusResponse, error) {
	items, err := s.repo.List(ctx, tuitionID, limit)
	if err != nil {
		return nil, appErrors.WrapErr(err, appErrors.ErrInternal)
	}
	out := make([]dto.ReportStatusResponse, 0, len(items))
	for i := range items {
		job := &items[i]
		out = append(out, dto.ReportStatusResponse{
			ID:        job.ID,
			Status:    job.Status,
			Progress:  job.Progress,
			ResultURL: job.ResultURL,
			Error:     job.ErrorMessage,
		})
	}
	return out, nil
}

// ResolveToken validates a signed download token and returns the absolute file path.
func (s *ReportService) ResolveToken(token string) (string, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return jobID, s.store.Path(relPath), nil
}

// process is the queue handler: it builds the dataset, renders the requested
// format and records the signed result URL.
func (s *ReportService) process(ctx context.Context, qj jobs.Job) error {
	payload, ok := qj.Payload.(reportJobPayload)
	if !ok {
		s.logger.Error("report job carries unexpected payload", zap.String("job_id", qj.ID))
		return nil
	}

	job, err := s.repo.FindByID(ctx, payload.TuitionID, payload.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load report job: %w", err)
	}
	if job.Status == models.ReportStatusFinished || job.Status == models.ReportStatusFailed {
		return nil
	}

	if err := s.repo.UpdateProgress(ctx, job.ID, models.ReportStatusProcessing, 10); err != nil {
		return fmt.Errorf("mark report processing: %w", err)
	}

	data, title, err := s.buildDataset(ctx, job)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}
	if err := s.repo.UpdateProgress(ctx, job.ID, models.ReportStatusProcessing, 60); err != nil {
		return fmt.Errorf("record report progress: %w", err)
	}

	var content []byte
	ext := "csv"
	switch job.Params.Format {
	case models.ReportFormatPDF:
		content, err = s.pdf.Render(data, title)
		ext = "pdf"
	default:
		content, err = s.csv.Render(data)
	}
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	relPath := fmt.Sprintf("reports/%s/%s.%s", job.TuitionID, job.ID, ext)
	if _, err := s.store.Save(relPath, content); err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(ctx, job.ID, err)
		return nil
	}
	resultURL := "/api/v1/reports/download?token=" + token
	if err := s.repo.MarkFinished(ctx, job.ID, resultURL, s.now()); err != nil {
		return fmt.Errorf("mark report finished: %w", err)
	}
	s.logger.Info("report finished",
		zap.String("tuition_id", job.TuitionID),
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)))
	return nil
}

func (s *ReportService) fail(ctx context.Context, jobID string, cause error) {
	s.logger.Error("report job failed", zap.String("job_id", jobID), zap.Error(cause))
	if err := s.repo.MarkFailed(ctx, jobID, cause.Error(), s.now()); err != nil {
		s.logger.Error("failed to record report failure", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ReportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	from, to, err := parseReportRange(job.Params.DateFrom, job.Params.DateTo)
	if err != nil {
		return export.Dataset{}, "", err
	}

	switch job.Type {
	case models.ReportTypeAttendance:
		return s.attendanceDataset(ctx, job, from, to)
	case models.ReportTypeFees:
		return s.feeDataset(ctx, job, from, to)
	case models.ReportTypeResults:
		return s.resultsDataset(ctx, job, from, to)
	case models.ReportTypeProgress:
		return s.progressDataset(ctx, job, from, to)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %q", job.Type)
	}
}

func (s *ReportService) attendanceDataset(ctx context.Context, job *models.ReportJob, from, to *time.Time) (export.Dataset, string, error) {
	filter := models.AttendanceFilter{
		TuitionID: job.TuitionID,
		DateFrom:  from,
		DateTo:    to,
		PageSize:  reportPageSize,
	}
	if job.Params.StudentID != nil {
		filter.StudentID = *job.Params.StudentID
	}
	if job.Params.DivisionID != nil {
		filter.DivisionID = *job.Params.DivisionID
	}

	data := export.Dataset{Headers: []string{"Date", "Student", "Subject", "Status", "Notes"}}
	for page := 1; ; page++ {
		filter.Page = page
		records, total, err := s.attendance.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("attendance rows: %w", err)
		}
		for i := range records {
			r := &records[i]
			row := map[string]string{
				"Date":    r.Date.Format("2006-01-02"),
				"Student": r.StudentName,
				"Status":  string(r.Status),
			}
			if r.SubjectName != nil {
				row["Subject"] = *r.SubjectName
			}
			if r.Notes != nil {
				row["Notes"] = *r.Notes
			}
			data.Rows = append(data.Rows, row)
		}
		if len(records) == 0 || page*reportPageSize >= total {
			break
		}
	}
	return data, "Attendance Report", nil
}

func (s *ReportService) feeDataset(ctx context.Context, job *models.ReportJob, from, to *time.Time) (export.Dataset, string, error) {
	filter := models.FeeFilter{
		TuitionID: job.TuitionID,
		DueFrom:   from,
		DueTo:     to,
		PageSize:  reportPageSize,
	}
	if job.Params.StudentID != nil {
		filter.StudentID = *job.Params.StudentID
	}

	data := export.Dataset{Headers: []string{"Student", "Label", "Amount", "Due Date", "Status", "Paid At", "Receipt"}}
	for page := 1; ; page++ {
		filter.Page = page
		fees, total, err := s.fees.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("fee rows: %w", err)
		}
		for i := range fees {
			f := &fees[i]
			row := map[string]string{
				"Student":  f.StudentName,
				"Label":    f.Label,
				"Amount":   fmt.Sprintf("%.2f", f.Amount),
				"Due Date": f.DueDate.Format("2006-01-02"),
				"Status":   string(f.Status),
			}
			if f.PaidAt != nil {
				row["Paid At"] = f.PaidAt.Format("2006-01-02")
			}
			if f.ReceiptNo != nil {
				row["Receipt"] = *f.ReceiptNo
			}
			data.Rows = append(data.Rows, row)
		}
		if len(fees) == 0 || page*reportPageSize >= total {
			break
		}
	}
	return data, "Fee Report", nil
}

func (s *ReportService) resultsDataset(ctx context.Context, job *models.ReportJob, from, to *time.Time) (export.Dataset, string, error) {
	filter := models.TestFilter{
		TuitionID: job.TuitionID,
		DateFrom:  from,
		DateTo:    to,
		PageSize:  reportPageSize,
	}
	if job.Params.DivisionID != nil {
		filter.DivisionID = *job.Params.DivisionID
	}
	data := export.Dataset{Headers: []string{"Test", "Date", "Student", "Marks", "Max Marks", "Remarks"}}
	for page := 1; ; page++ {
		filter.Page = page
		tests, total, err := s.results.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("test rows: %w", err)
		}
		for i := range tests {
			t := &tests[i]
			results, err := s.results.ListResults(ctx, job.TuitionID, t.ID)
			if err != nil {
				return export.Dataset{}, "", fmt.Errorf("test results: %w", err)
			}
			for j := range results {
				r := &results[j]
				row := map[string]string{
					"Test":      t.Name,
					"Date":      t.Date.Format("2006-01-02"),
					"Student":   r.StudentName,
					"Marks":     fmt.Sprintf("%.1f", r.Marks),
					"Max Marks": fmt.Sprintf("%.1f", t.MaxMarks),
				}
				if r.Remarks != nil {
					row["Remarks"] = *r.Remarks
				}
				data.Rows = append(data.Rows, row)
			}
		}
		if len(tests) == 0 || page*reportPageSize >= total {
			break
		}
	}
	return data, "Test Results Report", nil
}

// progressDataset combines one student's attendance summary and test history.
func (s *ReportService) progressDataset(ctx context.Context, job *models.ReportJob, from, to *time.Time) (export.Dataset, string, error) {
	studentID := *job.Params.StudentID
	summary, err := s.attendance.Summary(ctx, job.TuitionID, studentID, from, to)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("attendance summary: %w", err)
	}
	results, err := s.results.ListResultsForStudent(ctx, job.TuitionID, studentID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("student results: %w", err)
	}

	data := export.Dataset{Headers: []string{"Section", "Item", "Value"}}
	data.Rows = append(data.Rows,
		map[string]string{"Section": "Attendance", "Item": "Present", "Value": fmt.Sprintf("%d", summary.Present)},
		map[string]string{"Section": "Attendance", "Item": "Absent", "Value": fmt.Sprintf("%d", summary.Absent)},
		map[string]string{"Section": "Attendance", "Item": "Late", "Value": fmt.Sprintf("%d", summary.Late)},
		map[string]string{"Section": "Attendance", "Item": "Excused", "Value": fmt.Sprintf("%d", summary.Excused)},
		map[string]string{"Section": "Attendance", "Item": "Percent", "Value": fmt.Sprintf("%.1f%%", summary.Percent)},
	)
	for i := range results {
		r := &results[i]
		data.Rows = append(data.Rows, map[string]string{
			"Section": "Tests",
			"Item":    r.TestID,
			"Value":   fmt.Sprintf("%.1f / %.1f", r.Marks, r.MaxMarks),
		})
	}
	return data, "Student Progress Report", nil
}

// reportPageSize is the fetch size per page while draining report rows.
// The builders page until the repository total is exhausted, so exports
// are never truncated at a single page.
const reportPageSize = 500

func parseReportRange(fromRaw, toRaw *string) (*time.Time, *time.Time, error) {
	parse := func(raw *string) (*time.Time, error) {
		if raw == nil || *raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", *raw)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", *raw)
		}
		return &t, nil
	}
	from, err := parse(fromRaw)
	if err != nil {
		return nil, nil, err
	}
	to, err := parse(toRaw)
	if err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("date range ends before it starts")
	}
	return from, to, nil
}
