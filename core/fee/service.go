package fee

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
)

var nowFunc = time.Now // mockable

// consistencyWorkers bounds the concurrent checks of CheckAllConsistency.
const consistencyWorkers = 8

type (
	// Repository persists cohorts, enrollments, the payment ledger and stored schedules.
	// Lookups of missing records return ErrNotFound.
	Repository interface {
		SaveCohort(ctx context.Context, c Cohort) (Cohort, error)
		GetCohort(ctx context.Context, id string) (Cohort, error)
		SaveEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, studentID string) (Enrollment, error)
		ListEnrollments(ctx context.Context) ([]Enrollment, error)

		// QueryTransactions returns the ledger of a student ordered by creation time.
		QueryTransactions(ctx context.Context, studentID string) ([]Transaction, error)
		GetTransaction(ctx context.Context, id string) (Transaction, error)
		CreateTransaction(ctx context.Context, txn Transaction) (Transaction, error)
		UpdateTransactionStatus(ctx context.Context, id string, status TransactionStatus) (Transaction, error)

		SaveSchedule(ctx context.Context, studentID string, s Schedule) error
		GetStoredSchedule(ctx context.Context, studentID string) (Schedule, error)
	}

	Service struct {
		repo     Repository
		engine   *Engine
		validate *validator.Validate
		logger   core.Logger
		mailSvc  core.EmailService

		cache *scheduleCache
		locks *keyedMutex
	}
)

func NewService(
	repo Repository,
	engine *Engine,
	validate *validator.Validate,
	logger core.Logger,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		validate: validate,
		logger:   logger,
		mailSvc:  mailSvc,
		cache:    newScheduleCache(),
		locks:    newKeyedMutex(),
	}
}

func (svc *Service) Engine() *Engine { return svc.engine }

// Preview computes a schedule without touching the store.
func (svc *Service) Preview(sp SchedulePreview) (*Schedule, error) {
	if err := svc.validate.Struct(sp); err != nil {
		return nil, err
	}
	return svc.engine.GenerateSchedule(sp.Plan, sp.FeeStructure, sp.Scholarship, sp.StartDate)
}

// Schedule returns the schedule of an enrolled student.
func (svc *Service) Schedule(ctx context.Context, studentID string) (*Schedule, error) {
	enr, err := svc.repo.GetEnrollment(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "getting enrollment")
	}
	return svc.scheduleOf(ctx, enr)
}

func (svc *Service) scheduleOf(ctx context.Context, enr Enrollment) (*Schedule, error) {
	cohort, err := svc.repo.GetCohort(ctx, enr.CohortID)
	if err != nil {
		return nil, errors.Wrap(err, "getting cohort")
	}

	var sch Scholarship
	if enr.Scholarship != nil {
		sch = *enr.Scholarship
	}

	key := scheduleKey(enr.Plan, cohort.FeeStructure, sch, cohort.StartDate)
	if s, ok := svc.cache.get(enr.StudentID, key); ok {
		return s, nil
	}
	s, err := svc.engine.GenerateSchedule(enr.Plan, cohort.FeeStructure, sch, cohort.StartDate)
	if err != nil {
		return nil, err
	}
	svc.cache.set(enr.StudentID, key, s)
	return s, nil
}

// PaymentView reconciles the ledger of a student against their schedule as of now.
func (svc *Service) PaymentView(ctx context.Context, studentID string) (*Reconciliation, error) {
	enr, err := svc.repo.GetEnrollment(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "getting enrollment")
	}
	return svc.paymentView(ctx, enr)
}

func (svc *Service) paymentView(ctx context.Context, enr Enrollment) (*Reconciliation, error) {
	s, err := svc.scheduleOf(ctx, enr)
	if err != nil {
		return nil, err
	}
	txns, err := svc.repo.QueryTransactions(ctx, enr.StudentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}

	r, err := svc.engine.Reconcile(s, txns, nowFunc())
	if err != nil {
		svc.logger.Error("reconciling payments", err, map[string]interface{}{"student_id": enr.StudentID}, enrollmentPerson(enr))
		return nil, err
	}
	if len(r.Unmatched) > 0 {
		svc.logger.Warn("transactions excluded from reconciliation", map[string]interface{}{
			"student_id": enr.StudentID,
			"count":      len(r.Unmatched),
		})
	}
	return r, nil
}

// SubmitPayment records a pending transaction once the installment can accept it.
// Submissions of one student are serialised so that concurrent requests see each other's reservations.
func (svc *Service) SubmitPayment(ctx context.Context, np NewPayment) (Transaction, error) {
	if err := svc.validate.Struct(np); err != nil {
		return Transaction{}, err
	}

	// the ledger only holds whole cents
	np.Amount = roundCents(np.Amount)

	unlock := svc.locks.lock(np.StudentID)
	defer unlock()

	enr, err := svc.repo.GetEnrollment(ctx, np.StudentID)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "getting enrollment")
	}
	view, err := svc.paymentView(ctx, enr)
	if err != nil {
		return Transaction{}, err
	}
	ri, ok := view.Installment(np.Ref())
	if !ok {
		return Transaction{}, core.NewValidationError(
			ErrInstallmentNotFound,
			core.FieldError{Field: "installment_number", Error: ErrInstallmentNotFound.Error()},
		)
	}
	if err := CheckPayment(ri, np.Amount); err != nil {
		return Transaction{}, core.NewValidationError(err, core.FieldError{Field: "amount", Error: err.Error()})
	}

	txn, err := svc.repo.CreateTransaction(ctx, Transaction{
		ID:         uuid.New().String(),
		StudentID:  np.StudentID,
		Amount:     np.Amount,
		Ref:        np.Ref(),
		Status:     TransactionPending,
		ReceiptURL: np.ReceiptURL,
		CreatedAt:  nowFunc().UTC(),
	})
	if err != nil {
		return Transaction{}, errors.Wrap(err, "creating transaction")
	}
	svc.logger.Info("payment submitted", map[string]interface{}{
		"student_id":     txn.StudentID,
		"transaction_id": txn.ID,
		"amount":         txn.Amount.StringFixed(centPlaces),
	}, enrollmentPerson(enr))
	return txn, nil
}

// VerifyPayment approves or rejects a pending transaction.
func (svc *Service) VerifyPayment(ctx context.Context, txnID string, approve bool) (Transaction, error) {
	txn, err := svc.repo.GetTransaction(ctx, txnID)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "getting transaction")
	}

	unlock := svc.locks.lock(txn.StudentID)
	defer unlock()

	// re-read under the student lock
	if txn, err = svc.repo.GetTransaction(ctx, txnID); err != nil {
		return Transaction{}, errors.Wrap(err, "getting transaction")
	}
	if txn.Status != TransactionPending {
		return Transaction{}, core.NewValidationError(
			ErrTransactionVerified,
			core.FieldError{Field: "verification_status", Error: ErrTransactionVerified.Error()},
		)
	}

	status := TransactionRejected
	if approve {
		status = TransactionApproved
	}
	if txn, err = svc.repo.UpdateTransactionStatus(ctx, txnID, status); err != nil {
		return Transaction{}, errors.Wrap(err, "updating transaction")
	}
	svc.logger.Info("payment verified", map[string]interface{}{
		"student_id":     txn.StudentID,
		"transaction_id": txn.ID,
		"status":         string(txn.Status),
	})
	return txn, nil
}

// StoreSchedule persists the current schedule of a student.
func (svc *Service) StoreSchedule(ctx context.Context, studentID string) (*Schedule, error) {
	s, err := svc.Schedule(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if err := svc.repo.SaveSchedule(ctx, studentID, *s); err != nil {
		return nil, errors.Wrap(err, "saving schedule")
	}
	return s, nil
}

// CheckConsistency compares the stored schedule of a student with a recomputed one.
func (svc *Service) CheckConsistency(ctx context.Context, studentID string) (ConsistencyReport, error) {
	stored, err := svc.repo.GetStoredSchedule(ctx, studentID)
	if err != nil {
		return ConsistencyReport{}, errors.Wrap(err, "getting stored schedule")
	}
	computed, err := svc.Schedule(ctx, studentID)
	if err != nil {
		return ConsistencyReport{}, err
	}

	report := CompareSchedules(&stored, computed)
	if !report.Consistent {
		svc.logger.Warn("stored schedule drifted", map[string]interface{}{
			"student_id": studentID,
			"mismatches": len(report.Mismatches),
		})
	}
	return report, nil
}

// CheckAllConsistency runs CheckConsistency for every enrolled student with a stored schedule.
// Students without one are skipped. At most consistencyWorkers checks run at a time.
func (svc *Service) CheckAllConsistency(ctx context.Context) (map[string]ConsistencyReport, error) {
	enrs, err := svc.repo.ListEnrollments(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		reports  = make(map[string]ConsistencyReport, len(enrs))
	)
	sem := make(chan struct{}, consistencyWorkers)
	for _, enr := range enrs {
		wg.Add(1)
		sem <- struct{}{}
		go func(studentID string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			report, err := svc.CheckConsistency(ctx, studentID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Cause(err) == ErrNotFound:
			case err != nil:
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "checking %s", studentID)
				}
			default:
				reports[studentID] = report
			}
		}(enr.StudentID)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return reports, nil
}

// enrollmentPerson attributes log entries to the student.
func enrollmentPerson(enr Enrollment) core.Person {
	return core.Person{ID: enr.StudentID, Name: enr.StudentName, Email: enr.StudentEmail}
}
