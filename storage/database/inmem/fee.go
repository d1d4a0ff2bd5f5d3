package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-fees/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) SaveCohort(_ context.Context, c fee.Cohort) (fee.Cohort, error) {
	tbl := repo.db.cohort
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	tbl.table[c.ID] = &c
	return c, nil
}

func (repo *feeRepository) GetCohort(_ context.Context, id string) (fee.Cohort, error) {
	tbl := repo.db.cohort
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	if c, ok := tbl.table[id]; ok {
		return *c, nil
	}
	return fee.Cohort{}, fee.ErrNotFound
}

func (repo *feeRepository) SaveEnrollment(_ context.Context, enr fee.Enrollment) (fee.Enrollment, error) {
	tbl := repo.db.enrollment
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	if enr.Scholarship != nil {
		sch := *enr.Scholarship
		enr.Scholarship = &sch
	}
	tbl.table[enr.StudentID] = &enr
	return enr, nil
}

func (repo *feeRepository) GetEnrollment(_ context.Context, studentID string) (fee.Enrollment, error) {
	tbl := repo.db.enrollment
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	if enr, ok := tbl.table[studentID]; ok {
		return *enr, nil
	}
	return fee.Enrollment{}, fee.ErrNotFound
}

func (repo *feeRepository) ListEnrollments(_ context.Context) ([]fee.Enrollment, error) {
	tbl := repo.db.enrollment
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	enrs := make([]fee.Enrollment, 0, len(tbl.table))
	for _, enr := range tbl.table {
		enrs = append(enrs, *enr)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].StudentID < enrs[j].StudentID })
	return enrs, nil
}

func (repo *feeRepository) QueryTransactions(_ context.Context, studentID string) ([]fee.Transaction, error) {
	tbl := repo.db.transaction
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	txns := make([]fee.Transaction, 0)
	for _, txn := range tbl.table {
		if txn.StudentID == studentID {
			txns = append(txns, *txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID < txns[j].ID
		}
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
	return txns, nil
}

func (repo *feeRepository) GetTransaction(_ context.Context, id string) (fee.Transaction, error) {
	tbl := repo.db.transaction
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	if txn, ok := tbl.table[id]; ok {
		return *txn, nil
	}
	return fee.Transaction{}, fee.ErrNotFound
}

func (repo *feeRepository) CreateTransaction(_ context.Context, txn fee.Transaction) (fee.Transaction, error) {
	tbl := repo.db.transaction
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	tbl.table[txn.ID] = &txn
	return txn, nil
}

func (repo *feeRepository) UpdateTransactionStatus(_ context.Context, id string, status fee.TransactionStatus) (fee.Transaction, error) {
	tbl := repo.db.transaction
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	txn, ok := tbl.table[id]
	if !ok {
		return fee.Transaction{}, fee.ErrNotFound
	}
	txn.Status = status
	return *txn, nil
}

func (repo *feeRepository) SaveSchedule(_ context.Context, studentID string, s fee.Schedule) error {
	tbl := repo.db.schedule
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	s.Installments = append([]fee.Installment(nil), s.Installments...)
	tbl.table[studentID] = &s
	return nil
}

func (repo *feeRepository) GetStoredSchedule(_ context.Context, studentID string) (fee.Schedule, error) {
	tbl := repo.db.schedule
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	s, ok := tbl.table[studentID]
	if !ok {
		return fee.Schedule{}, fee.ErrNotFound
	}
	cp := *s
	cp.Installments = append([]fee.Installment(nil), s.Installments...)
	return cp, nil
}
