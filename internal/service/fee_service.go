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

type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error)
	FindByID(ctx context.Context, tuitionID, id string) (*models.FeeDetail, error)
	Create(ctx context.Context, fee *models.Fee) error
	Update(ctx context.Context, fee *models.Fee) error
	Delete(ctx context.Context, tuitionID, id string) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// CreateFeeRequest holds payload for raising a fee installment.
type CreateFeeRequest struct {
	StudentID string    `json:"student_id" validate:"required"`
	Label     string    `json:"label" validate:"required"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

// RecordPaymentRequest marks a fee as paid.
type RecordPaymentRequest struct {
	Method    string `json:"method" validate:"required"`
	ReceiptNo string `json:"receipt_no"`
}

// FeeService handles fee use-cases.
type FeeService struct {
	repo      feeRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFeeService constructs the fee service.
func NewFeeService(repo feeRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, cache: cache, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns fees and pagination metadata.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, *models.Pagination, error) {
	fees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return fees, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one fee installment.
func (s *FeeService) Get(ctx context.Context, tuitionID, id string) (*models.FeeDetail, error) {
	fee, err := s.repo.FindByID(ctx, tuitionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	return fee, nil
}

// Create raises a fee installment for a student.
func (s *FeeService) Create(ctx context.Context, tuitionID string, req CreateFeeRequest) (*models.Fee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}
	fee := &models.Fee{
		TuitionID: tuitionID,
		StudentID: req.StudentID,
		Label:     req.Label,
		Amount:    req.Amount,
		DueDate:   truncateToDay(req.DueDate),
		Status:    models.FeeStatusPending,
	}
	if err := s.repo.Create(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee")
	}
	s.invalidate(ctx, tuitionID)
	return fee, nil
}

// RecordPayment marks an installment paid at the current time.
func (s *FeeService) RecordPayment(ctx context.Context, tuitionID, id string, req RecordPaymentRequest) (*models.Fee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	detail, err := s.Get(ctx, tuitionID, id)
	if err != nil {
		return nil, err
	}
	if detail.Status == models.FeeStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "fee already paid")
	}
	fee := detail.Fee
	paidAt := s.now()
	fee.Status = models.FeeStatusPaid
	fee.PaidAt = &paidAt
	fee.Method = &req.Method
	if req.ReceiptNo != "" {
		fee.ReceiptNo = &req.ReceiptNo
	}
	if err := s.repo.Update(ctx, &fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	s.invalidate(ctx, tuitionID)
	return &fee, nil
}

// Waive cancels an installment without payment.
func (s *FeeService) Waive(ctx context.Context, tuitionID, id string) (*models.Fee, error) {
	detail, err := s.Get(ctx, tuitionID, id)
	if err != nil {
		return nil, err
	}
	if detail.Status == models.FeeStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "paid fees cannot be waived")
	}
	fee := detail.Fee
	fee.Status = models.FeeStatusWaived
	if err := s.repo.Update(ctx, &fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to waive fee")
	}
	s.invalidate(ctx, tuitionID)
	return &fee, nil
}

// Delete removes an installment.
func (s *FeeService) Delete(ctx context.Context, tuitionID, id string) error {
	if err := s.repo.Delete(ctx, tuitionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fee")
	}
	s.invalidate(ctx, tuitionID)
	return nil
}

// SweepOverdue flips pending installments past due to overdue. Runs from the
// daily batch scheduler.
func (s *FeeService) SweepOverdue(ctx context.Context) (int64, error) {
	changed, err := s.repo.MarkOverdue(ctx, truncateToDay(s.now()))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep overdue fees")
	}
	if changed > 0 {
		s.logger.Info("fees marked overdue", zap.Int64("count", changed))
	}
	return changed, nil
}

func (s *FeeService) invalidate(ctx context.Context, tuitionID string) {
	if err := s.cache.Invalidate(ctx, "dashboard:"+tuitionID+":*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
