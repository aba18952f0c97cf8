package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edunexa/tuition-api/internal/models"
	appErrors "github.com/edunexa/tuition-api/pkg/errors"
)

type testRepository interface {
	List(ctx context.Context, filter models.TestFilter) ([]models.WeeklyTestDetail, int, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.WeeklyTestDetail, error)
	Create(ctx context.Context, test *models.WeeklyTest) error
	Update(ctx context.Context, test *models.WeeklyTest) error
	Delete(ctx context.Context, tuitionID, id string) error
	ListResults(ctx context.Context, tuitionID, testID string) ([]models.TestResultDetail, error)
	UpsertResults(ctx context.Context, results []models.TestResult) error
	ListResultsForStudent(ctx context.Context, tuitionID, studentID string) ([]models.TestResultDetail, error)
}

// WeeklyTestRequest holds payload for scheduling a test.
type WeeklyTestRequest struct {
	DivisionID string    `json:"division_id" validate:"required"`
	SubjectID  string    `json:"subject_id" validate:"required"`
	Name       string    `json:"name" validate:"required"`
	Date       time.Time `json:"date" validate:"required"`
	MaxMarks   float64   `json:"max_marks" validate:"required,gt=0"`
}

// TestResultEntry is one student's score in a results submission.
type TestResultEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Marks     float64 `json:"marks" validate:"gte=0"`
	Remarks   *string `json:"remarks,omitempty"`
}

// SubmitResultsRequest records scores for a test.
type SubmitResultsRequest struct {
	Results []TestResultEntry `json:"results" validate:"required,min=1,dive"`
}

// TestService handles weekly test use-cases.
type TestService struct {
	repo      testRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTestService constructs the test service.
func NewTestService(repo testRepository, validate *validator.Validate, logger *zap.Logger) *TestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestService{repo: repo, validator: validate, logger: logger}
}

// List returns weekly tests and pagination metadata.
func (s *TestService) List(ctx context.Context, filter models.TestFilter) ([]models.WeeklyTestDetail, *models.Pagination, error) {
	tests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weekly tests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return tests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one weekly test.
func (s *TestService) Get(ctx context.Context, tuitionID, id string) (*models.WeeklyTestDetail, error) {
	test, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "weekly test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly test")
	}
	return test, nil
}

// Create schedules a weekly test.
func (s *TestService) Create(ctx context.Context, tuitionID string, req WeeklyTestRequest) (*models.WeeklyTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test payload")
	}
	test := &models.WeeklyTest{
		TuitionID:  tuitionID,
		DivisionID: req.DivisionID,
		SubjectID:  req.SubjectID,
		Name:       req.Name,
		Date:       truncateToDay(req.Date),
		MaxMarks:   req.MaxMarks,
	}
	if err := s.repo.Create(ctx, test); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create weekly test")
	}
	return test, nil
}

// Update modifies a scheduled test.
func (s *TestService) Update(ctx context.Context, tuitionID, id string, req WeeklyTestRequest) (*models.WeeklyTest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test payload")
	}
	test := &models.WeeklyTest{
		ID:         id,
		TuitionID:  tuitionID,
		DivisionID: req.DivisionID,
		SubjectID:  req.SubjectID,
		Name:       req.Name,
		Date:       truncateToDay(req.Date),
		MaxMarks:   req.MaxMarks,
	}
	if err := s.repo.Update(ctx, test); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "weekly test not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update weekly test")
	}
	return test, nil
}

// Delete removes a test and its results.
func (s *TestService) Delete(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.Delete(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "weekly test not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete weekly test")
	}
	return nil
}

// Results returns recorded scores for a test.
func (s *TestService) Results(ctx context.Context, tuitionID, testID string) ([]models.TestResultDetail, error) {
	if _, err := s.Get(ctx, tuitionID, testID); err != nil {
		return nil, err
	}
	results, err := s.repo.ListResults(ctx, tuitionID, testID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list test results")
	}
	return results, nil
}

// SubmitResults records or replaces scores for a test. Marks above the test's
// maximum are rejected.
func (s *TestService) SubmitResults(ctx context.Context, tuitionID, testID string, req SubmitResultsRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid results payload")
	}
	test, err := s.Get(ctx, tuitionID, testID)
	if err != nil {
		return 0, err
	}
	results := make([]models.TestResult, 0, len(req.Results))
	for _, entry := range req.Results {
		if entry.Marks > test.MaxMarks {
			return 0, appErrors.Clone(appErrors.ErrValidation, "marks exceed test maximum")
		}
		results = append(results, models.TestResult{
			TuitionID: tuitionID,
			TestID:    testID,
			StudentID: entry.StudentID,
			Marks:     entry.Marks,
			Remarks:   entry.Remarks,
		})
	}
	if err := s.repo.UpsertResults(ctx, results); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record results")
	}
	return len(results), nil
}

// StudentResults returns a student's scores across tests.
func (s *TestService) StudentResults(ctx context.Context, tuitionID, studentID string) ([]models.TestResultDetail, error) {
	results, err := s.repo.ListResultsForStudent(ctx, tuitionID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student results")
	}
	return results, nil
}
