package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	"github.com/trezcool/masomo-fees/storage/database"
)

// NewValidator returns a validator with the core and fee validators registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate
}

// PrepareDB connects to the test database and migrates it.
// The test is skipped when no database is reachable.
func PrepareDB(t *testing.T) *sqlx.DB {
	conf := core.NewConfig()
	if !conf.TestMode {
		t.Skip("database tests need ENV=test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Skipf("no test database: %v", err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		t.Skipf("no test database: %v", err)
	}
	if err = database.RunMigration(db.DB, "reset"); err != nil {
		t.Fatalf("resetting database: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func CreateCohort(t *testing.T, repo fee.Repository, id, startDate string, fs fee.FeeStructure) fee.Cohort {
	c, err := repo.SaveCohort(context.Background(), fee.Cohort{
		ID:           id,
		Name:         "Cohort " + id,
		StartDate:    startDate,
		FeeStructure: fs,
	})
	if err != nil {
		t.Fatalf("createCohort() failed: %v", err)
	}
	return c
}

func CreateEnrollment(
	t *testing.T,
	repo fee.Repository,
	studentID, email, cohortID string,
	plan fee.Plan,
	sch *fee.Scholarship,
) fee.Enrollment {
	enr, err := repo.SaveEnrollment(context.Background(), fee.Enrollment{
		StudentID:    studentID,
		StudentName:  "Student " + studentID,
		StudentEmail: email,
		CohortID:     cohortID,
		Plan:         plan,
		Scholarship:  sch,
	})
	if err != nil {
		t.Fatalf("createEnrollment() failed: %v", err)
	}
	return enr
}

func CreateTransaction(
	t *testing.T,
	repo fee.Repository,
	studentID string,
	amount string,
	ref fee.InstallmentRef,
	status fee.TransactionStatus,
	createdAt ...time.Time,
) fee.Transaction {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	txn, err := repo.CreateTransaction(context.Background(), fee.Transaction{
		ID:        uuid.New().String(),
		StudentID: studentID,
		Amount:    decimal.RequireFromString(amount),
		Ref:       ref,
		Status:    status,
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("createTransaction() failed: %v", err)
	}
	return txn
}

// StandardFees is a 4-semester fee structure: 500000 program fee, 50000 admission, 10% one-shot discount.
func StandardFees() fee.FeeStructure {
	return fee.FeeStructure{
		TotalProgramFee:           decimal.NewFromInt(500000),
		AdmissionFee:              decimal.NewFromInt(50000),
		NumberOfSemesters:         4,
		InstallmentsPerSemester:   3,
		OneShotDiscountPercentage: decimal.NewFromInt(10),
	}
}

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
