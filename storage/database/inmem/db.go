package inmemdb

import (
	"sync"

	"github.com/trezcool/masomo-fees/core/fee"
)

type (
	DB struct {
		cohort      *cohortTable
		enrollment  *enrollmentTable
		transaction *transactionTable
		schedule    *scheduleTable
	}

	cohortTable struct {
		table map[string]*fee.Cohort
		mutex sync.RWMutex
	}

	enrollmentTable struct {
		table map[string]*fee.Enrollment
		mutex sync.RWMutex
	}

	transactionTable struct {
		table map[string]*fee.Transaction
		mutex sync.RWMutex
	}

	scheduleTable struct {
		table map[string]*fee.Schedule
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		cohort:      &cohortTable{table: make(map[string]*fee.Cohort)},
		enrollment:  &enrollmentTable{table: make(map[string]*fee.Enrollment)},
		transaction: &transactionTable{table: make(map[string]*fee.Transaction)},
		schedule:    &scheduleTable{table: make(map[string]*fee.Schedule)},
	}
}
