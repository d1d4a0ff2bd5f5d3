package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-fees/core/fee"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
	"github.com/trezcool/masomo-fees/tests"
)

func TestFeeRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewFeeRepository(db)
	ctx := context.Background()

	testutil.CreateCohort(t, repo, "c24", "2024-01-01", testutil.StandardFees())
	testutil.CreateEnrollment(t, repo, "s1", "s1@test.cd", "c24", fee.PlanInstallmentWise,
		&fee.Scholarship{Percentage: decimal.NewFromInt(20)})
	testutil.CreateEnrollment(t, repo, "s2", "", "c24", fee.PlanOneShot, nil)

	t.Run("cohort", func(t *testing.T) {
		c, err := repo.GetCohort(ctx, "c24")
		if assert.NoError(t, err) {
			assert.Equal(t, "2024-01-01", c.StartDate)
			assert.True(t, decimal.NewFromInt(500000).Equal(c.FeeStructure.TotalProgramFee))
			assert.Equal(t, 4, c.FeeStructure.NumberOfSemesters)
		}
		_, err = repo.GetCohort(ctx, "nope")
		assert.Equal(t, fee.ErrNotFound, errors.Cause(err))
	})

	t.Run("enrollments", func(t *testing.T) {
		enr, err := repo.GetEnrollment(ctx, "s1")
		if assert.NoError(t, err) && assert.NotNil(t, enr.Scholarship) {
			assert.True(t, decimal.NewFromInt(20).Equal(enr.Scholarship.Percentage))
		}
		enr, err = repo.GetEnrollment(ctx, "s2")
		if assert.NoError(t, err) {
			assert.Nil(t, enr.Scholarship)
		}
		enrs, err := repo.ListEnrollments(ctx)
		if assert.NoError(t, err) {
			assert.Len(t, enrs, 2)
		}
	})

	t.Run("ledger", func(t *testing.T) {
		t0 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
		ref := fee.InstallmentRef{SemesterNumber: 1, InstallmentNumber: 2}
		late := testutil.CreateTransaction(t, repo, "s1", "100.50", ref, fee.TransactionPending, t0.Add(time.Hour))
		early := testutil.CreateTransaction(t, repo, "s1", "200", ref, fee.TransactionApproved, t0)

		txns, err := repo.QueryTransactions(ctx, "s1")
		if assert.NoError(t, err) && assert.Len(t, txns, 2) {
			assert.Equal(t, early.ID, txns[0].ID)
			assert.Equal(t, ref, txns[1].Ref)
			assert.True(t, decimal.RequireFromString("100.50").Equal(txns[1].Amount))
		}

		txn, err := repo.UpdateTransactionStatus(ctx, late.ID, fee.TransactionRejected)
		if assert.NoError(t, err) {
			assert.Equal(t, fee.TransactionRejected, txn.Status)
		}
		_, err = repo.UpdateTransactionStatus(ctx, "nope", fee.TransactionApproved)
		assert.Equal(t, fee.ErrNotFound, errors.Cause(err))
	})

	t.Run("stored schedule", func(t *testing.T) {
		s, err := fee.NewEngine(fee.DefaultPolicy()).GenerateSchedule(fee.PlanSemesterWise, testutil.StandardFees(), fee.Scholarship{}, "2024-01-31")
		if !assert.NoError(t, err) {
			return
		}
		assert.NoError(t, repo.SaveSchedule(ctx, "s1", *s))
		assert.NoError(t, repo.SaveSchedule(ctx, "s1", *s)) // replaces

		stored, err := repo.GetStoredSchedule(ctx, "s1")
		if assert.NoError(t, err) {
			assert.True(t, fee.CompareSchedules(&stored, s).Consistent)
		}
		_, err = repo.GetStoredSchedule(ctx, "s2")
		assert.Equal(t, fee.ErrNotFound, errors.Cause(err))
	})
}
