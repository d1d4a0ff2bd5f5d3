package fee_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	"github.com/trezcool/masomo-fees/services/email"
	"github.com/trezcool/masomo-fees/storage/database/inmem"
	"github.com/trezcool/masomo-fees/tests"
)

var ctx = context.Background()

func setup(t *testing.T, policy fee.Policy) (*fee.Service, fee.Repository) {
	repo := inmemdb.NewFeeRepository(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(&core.Config{AppName: "Fees"})
	svc := fee.NewService(repo, fee.NewEngine(policy), testutil.NewValidator(), testutil.NopLogger{}, mailSvc)

	testutil.CreateCohort(t, repo, "c24", "2024-01-01", testutil.StandardFees())
	return svc, repo
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, _ := time.Parse(fee.DateLayout, s)
	return t
}

func TestService_Schedule(t *testing.T) {
	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "s1@test.cd", "c24", fee.PlanSemesterWise, nil)
	testutil.CreateEnrollment(t, repo, "s2", "s2@test.cd", "c24", fee.PlanSemesterWise, nil)
	testutil.CreateEnrollment(t, repo, "s3", "s3@test.cd", "c24", fee.PlanInstallmentWise, &fee.Scholarship{Percentage: d("20")})

	s1, err := svc.Schedule(ctx, "s1")
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, s1.Installments, 4)

	// same inputs share the cached schedule, which callers cannot corrupt
	s1.Installments[0].AmountPayable = d("1")
	s2, err := svc.Schedule(ctx, "s2")
	if assert.NoError(t, err) {
		assert.True(t, d("125000").Equal(s2.Installments[0].AmountPayable))
	}
	assert.Equal(t, 1, svc.CachedSchedules())

	s3, err := svc.Schedule(ctx, "s3")
	if assert.NoError(t, err) {
		assert.Len(t, s3.Installments, 12)
		assert.True(t, d("400000").Equal(s3.ProgramFee))
	}
	assert.Equal(t, 2, svc.CachedSchedules())

	_, err = svc.Schedule(ctx, "nobody")
	assert.Equal(t, fee.ErrNotFound, errors.Cause(err))
}

func TestService_Schedule_feeStructureChange(t *testing.T) {
	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)

	_, err := svc.Schedule(ctx, "s1")
	assert.NoError(t, err)

	fs := testutil.StandardFees()
	fs.TotalProgramFee = d("600000")
	testutil.CreateCohort(t, repo, "c24", "2024-01-01", fs)

	s, err := svc.Schedule(ctx, "s1")
	if assert.NoError(t, err) {
		assert.True(t, d("150000").Equal(s.Installments[0].AmountPayable))
	}
	assert.Equal(t, 1, svc.CachedSchedules()) // the superseded schedule is gone
}

func TestService_Schedule_sharedEntryEviction(t *testing.T) {
	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)
	testutil.CreateEnrollment(t, repo, "s2", "", "c24", fee.PlanSemesterWise, nil)

	for _, id := range []string{"s1", "s2"} {
		_, err := svc.Schedule(ctx, id)
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, svc.CachedSchedules())

	// s1 switches plan: the shared entry stays for s2
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanOneShot, nil)
	_, err := svc.Schedule(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, 2, svc.CachedSchedules())

	// s2 follows: the semester-wise entry has no owner left
	testutil.CreateEnrollment(t, repo, "s2", "", "c24", fee.PlanOneShot, nil)
	_, err = svc.Schedule(ctx, "s2")
	assert.NoError(t, err)
	assert.Equal(t, 1, svc.CachedSchedules())
}

func TestService_PaymentView(t *testing.T) {
	defer fee.SetNow(day("2024-08-15"))()

	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)
	sem1 := fee.InstallmentRef{SemesterNumber: 1, InstallmentNumber: 1}
	testutil.CreateTransaction(t, repo, "s1", "60000", sem1, fee.TransactionApproved, day("2024-01-02"))
	testutil.CreateTransaction(t, repo, "s1", "65000", sem1, fee.TransactionPending, day("2024-01-03"))

	view, err := svc.PaymentView(ctx, "s1")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "2024-08-15", view.AsOf.Format(fee.DateLayout))
	assert.Equal(t, fee.StatusPartiallyPaid, view.Installments[0].Status)
	assert.True(t, d("65000").Equal(view.Installments[0].AmountPending))
	assert.Equal(t, fee.StatusOverdue, view.Installments[1].Status)
	assert.Equal(t, fee.StatusPending, view.Installments[2].Status)
}

func TestService_PaymentView_unmatched(t *testing.T) {
	stray := fee.InstallmentRef{SemesterNumber: 7, InstallmentNumber: 7}

	t.Run("strict", func(t *testing.T) {
		svc, repo := setup(t, fee.DefaultPolicy())
		testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)
		testutil.CreateTransaction(t, repo, "s1", "10", stray, fee.TransactionApproved)

		_, err := svc.PaymentView(ctx, "s1")
		_, ok := errors.Cause(err).(*fee.UnmatchedTransactionError)
		assert.True(t, ok, "error = %v", err)
	})
	t.Run("exclude", func(t *testing.T) {
		svc, repo := setup(t, fee.Policy{Unmatched: fee.UnmatchedExclude, MaxPartialPayments: 2})
		testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)
		testutil.CreateTransaction(t, repo, "s1", "10", stray, fee.TransactionApproved)

		view, err := svc.PaymentView(ctx, "s1")
		if assert.NoError(t, err) {
			assert.Len(t, view.Unmatched, 1)
		}
	})
}

func TestService_SubmitPayment(t *testing.T) {
	defer fee.SetNow(day("2024-01-15"))()

	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)

	payment := func(amount string, sem, inst int) fee.NewPayment {
		return fee.NewPayment{StudentID: "s1", Amount: d(amount), SemesterNumber: sem, InstallmentNumber: inst}
	}
	isValidation := func(err error) bool { _, ok := errors.Cause(err).(*core.ValidationError); return ok }
	isValidator := func(err error) bool { _, ok := errors.Cause(err).(validator.ValidationErrors); return ok }

	tests := []struct {
		name    string
		np      fee.NewPayment
		wantErr error
		check   func(error) bool
	}{
		{name: "first partial", np: payment("50000", 1, 1)},
		{name: "second partial", np: payment("50000", 1, 1)},
		{name: "third partial over limit", np: payment("10000", 1, 1), wantErr: fee.ErrPartialPaymentLimit},
		{name: "over the reservation", np: payment("25000.01", 1, 1), wantErr: fee.ErrOverpayment},
		{name: "closing payment", np: payment("25000", 1, 1)},
		{name: "fully reserved", np: payment("1", 1, 1), wantErr: fee.ErrInstallmentSettled},
		{name: "unknown installment", np: payment("10", 9, 9), wantErr: fee.ErrInstallmentNotFound},
		{name: "zero amount", np: payment("0", 2, 2), check: isValidator},
		{name: "sub-cent amount", np: payment("0.004", 2, 2), wantErr: fee.ErrNonPositiveAmount},
		{name: "bad receipt url", np: fee.NewPayment{StudentID: "s1", Amount: d("10"), SemesterNumber: 2, InstallmentNumber: 2, ReceiptURL: "nope"}, check: isValidator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := svc.SubmitPayment(ctx, tt.np)
			switch {
			case tt.wantErr != nil:
				if assert.True(t, isValidation(err), "error = %v", err) {
					assert.Equal(t, tt.wantErr, errors.Cause(err).(*core.ValidationError).Err)
				}
			case tt.check != nil:
				assert.True(t, tt.check(err), "error = %v", err)
			default:
				if assert.NoError(t, err) {
					assert.NotEmpty(t, txn.ID)
					assert.Equal(t, fee.TransactionPending, txn.Status)
					assert.Equal(t, day("2024-01-15"), txn.CreatedAt)
				}
			}
		})
	}

	txns, err := repo.QueryTransactions(ctx, "s1")
	if assert.NoError(t, err) {
		assert.Len(t, txns, 3)
	}
	assert.Equal(t, 0, svc.HeldLocks())
}

func TestService_SubmitPayment_roundsToCents(t *testing.T) {
	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)

	txn, err := svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("100.005"), SemesterNumber: 1, InstallmentNumber: 1})
	if assert.NoError(t, err) {
		assert.Equal(t, "100.01", txn.Amount.StringFixed(2))
	}

	// sub-cent submissions never reach the ledger nor count against the partial payment cap
	for i := 0; i < 3; i++ {
		_, err = svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("0.001"), SemesterNumber: 1, InstallmentNumber: 1})
		assert.Error(t, err)
	}
	_, err = svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("100"), SemesterNumber: 1, InstallmentNumber: 1})
	assert.NoError(t, err)

	txns, err := repo.QueryTransactions(ctx, "s1")
	if assert.NoError(t, err) && assert.Len(t, txns, 2) {
		for _, txn := range txns {
			assert.True(t, txn.Amount.IsPositive(), txn.Amount.String())
		}
	}
}

type loggedCall struct {
	msg  string
	args []interface{}
}

type recordingLogger struct {
	testutil.NopLogger
	mu    sync.Mutex
	infos []loggedCall
}

func (l *recordingLogger) Info(msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, loggedCall{msg: msg, args: args})
}

func TestService_SubmitPayment_logsStudent(t *testing.T) {
	repo := inmemdb.NewFeeRepository(inmemdb.Open())
	logger := new(recordingLogger)
	svc := fee.NewService(repo, fee.NewEngine(fee.DefaultPolicy()), testutil.NewValidator(), logger, emailsvc.NewConsoleServiceMock(&core.Config{}))
	testutil.CreateCohort(t, repo, "c24", "2024-01-01", testutil.StandardFees())
	testutil.CreateEnrollment(t, repo, "s1", "s1@test.cd", "c24", fee.PlanSemesterWise, nil)

	_, err := svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("10"), SemesterNumber: 1, InstallmentNumber: 1})
	if !assert.NoError(t, err) || !assert.Len(t, logger.infos, 1) {
		return
	}
	assert.Equal(t, "payment submitted", logger.infos[0].msg)
	assert.Contains(t, logger.infos[0].args, core.Person{ID: "s1", Name: "Student s1", Email: "s1@test.cd"})
}

func TestService_SubmitPayment_concurrent(t *testing.T) {
	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("125000"), SemesterNumber: 1, InstallmentNumber: 1})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 0, svc.HeldLocks())
}

func TestService_VerifyPayment(t *testing.T) {
	defer fee.SetNow(day("2024-01-15"))()

	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)

	txn, err := svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("125000"), SemesterNumber: 1, InstallmentNumber: 1})
	if !assert.NoError(t, err) {
		return
	}

	approved, err := svc.VerifyPayment(ctx, txn.ID, true)
	if assert.NoError(t, err) {
		assert.Equal(t, fee.TransactionApproved, approved.Status)
	}
	view, err := svc.PaymentView(ctx, "s1")
	if assert.NoError(t, err) {
		assert.Equal(t, fee.StatusPaid, view.Installments[0].Status)
	}

	_, err = svc.VerifyPayment(ctx, txn.ID, false)
	if vErr, ok := errors.Cause(err).(*core.ValidationError); assert.True(t, ok, "error = %v", err) {
		assert.Equal(t, fee.ErrTransactionVerified, vErr.Err)
	}

	_, err = svc.VerifyPayment(ctx, "missing", true)
	assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

	// a rejection frees the reservation
	txn, err = svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("125000"), SemesterNumber: 2, InstallmentNumber: 2})
	if assert.NoError(t, err) {
		_, err = svc.VerifyPayment(ctx, txn.ID, false)
		assert.NoError(t, err)
		_, err = svc.SubmitPayment(ctx, fee.NewPayment{StudentID: "s1", Amount: d("125000"), SemesterNumber: 2, InstallmentNumber: 2})
		assert.NoError(t, err)
	}
}

func TestService_Preview(t *testing.T) {
	svc, _ := setup(t, fee.DefaultPolicy())

	s, err := svc.Preview(fee.SchedulePreview{Plan: fee.PlanOneShot, FeeStructure: testutil.StandardFees(), StartDate: "2024-01-01"})
	if assert.NoError(t, err) {
		assert.True(t, d("500000").Equal(s.TotalAmount))
	}

	_, err = svc.Preview(fee.SchedulePreview{Plan: "monthly", FeeStructure: testutil.StandardFees(), StartDate: "2024-01-01"})
	_, ok := err.(validator.ValidationErrors)
	assert.True(t, ok, "error = %v", err)
}

func TestService_CheckConsistency(t *testing.T) {
	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "s1", "", "c24", fee.PlanSemesterWise, nil)
	testutil.CreateEnrollment(t, repo, "s2", "", "c24", fee.PlanOneShot, nil)

	_, err := svc.CheckConsistency(ctx, "s1")
	assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

	_, err = svc.StoreSchedule(ctx, "s1")
	if !assert.NoError(t, err) {
		return
	}
	report, err := svc.CheckConsistency(ctx, "s1")
	if assert.NoError(t, err) {
		assert.True(t, report.Consistent)
	}

	// tamper with the stored copy
	stored, _ := repo.GetStoredSchedule(ctx, "s1")
	stored.Installments[2].AmountPayable = d("100000")
	assert.NoError(t, repo.SaveSchedule(ctx, "s1", stored))

	reports, err := svc.CheckAllConsistency(ctx)
	if assert.NoError(t, err) {
		assert.Len(t, reports, 1) // s2 has no stored schedule
		assert.False(t, reports["s1"].Consistent)
		assert.Equal(t, 3, reports["s1"].Mismatches[0].InstallmentNumber)
	}
}

// slowStoreRepo records how many stored schedules are read at once.
type slowStoreRepo struct {
	fee.Repository
	mu            sync.Mutex
	inFlight, max int
}

func (r *slowStoreRepo) GetStoredSchedule(ctx context.Context, studentID string) (fee.Schedule, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.max {
		r.max = r.inFlight
	}
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return r.Repository.GetStoredSchedule(ctx, studentID)
}

func TestService_CheckAllConsistency_bounded(t *testing.T) {
	repo := &slowStoreRepo{Repository: inmemdb.NewFeeRepository(inmemdb.Open())}
	svc := fee.NewService(repo, fee.NewEngine(fee.DefaultPolicy()), testutil.NewValidator(), testutil.NopLogger{}, emailsvc.NewConsoleServiceMock(&core.Config{}))
	testutil.CreateCohort(t, repo, "c24", "2024-01-01", testutil.StandardFees())

	const students = 40
	for i := 0; i < students; i++ {
		id := fmt.Sprintf("s%02d", i)
		testutil.CreateEnrollment(t, repo, id, "", "c24", fee.PlanSemesterWise, nil)
		_, err := svc.StoreSchedule(ctx, id)
		assert.NoError(t, err)
	}

	reports, err := svc.CheckAllConsistency(ctx)
	if assert.NoError(t, err) {
		assert.Len(t, reports, students)
	}
	assert.True(t, repo.max >= 1)
	assert.True(t, repo.max <= fee.ConsistencyWorkers, "max in flight = %d", repo.max)
}

func TestService_SendReminders(t *testing.T) {
	defer fee.SetNow(day("2024-08-15"))()
	emailsvc.ResetSentMessages()
	defer emailsvc.ResetSentMessages()

	svc, repo := setup(t, fee.DefaultPolicy())
	testutil.CreateEnrollment(t, repo, "late", "late@test.cd", "c24", fee.PlanSemesterWise, nil)
	testutil.CreateEnrollment(t, repo, "paid", "paid@test.cd", "c24", fee.PlanOneShot, nil)
	testutil.CreateEnrollment(t, repo, "nomail", "", "c24", fee.PlanSemesterWise, nil)
	testutil.CreateTransaction(t, repo, "paid", "500000", fee.InstallmentRef{SemesterNumber: 1, InstallmentNumber: 1}, fee.TransactionApproved)

	n, err := svc.SendReminders(ctx)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 1, n)

	sent := emailsvc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "late@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "installment #1 (semester 1), due 2024-01-01: 125000.00 pending")
		assert.Contains(t, sent[0].TextContent, "installment #2 (semester 2), due 2024-07-01: 125000.00 pending")
		assert.Contains(t, sent[0].TextContent, "Total overdue: 250000.00")
	}
}
