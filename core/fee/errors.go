package fee

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrInstallmentNotFound = errors.New("installment not found in schedule")

	// payment acceptance
	ErrNonPositiveAmount   = errors.New("payment amount must be positive")
	ErrInstallmentSettled  = errors.New("installment is already paid")
	ErrOverpayment         = errors.New("payment exceeds the amount pending on the installment")
	ErrPartialPaymentLimit = errors.New("maximum number of partial payments reached for this installment")

	ErrTransactionVerified = errors.New("transaction has already been verified")
)

type InvalidPlanError struct {
	Plan Plan
}

func (err *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid payment plan %q", string(err.Plan))
}

type InvalidFeeStructureError struct {
	Field  string
	Reason string
}

func (err *InvalidFeeStructureError) Error() string {
	return fmt.Sprintf("invalid fee structure: %s %s", err.Field, err.Reason)
}

type InvalidDateError struct {
	Value string
	Err   error
}

func (err *InvalidDateError) Error() string {
	if err.Value == "" {
		return "invalid date: empty value"
	}
	return fmt.Sprintf("invalid date %q", err.Value)
}

func (err *InvalidDateError) Unwrap() error { return err.Err }

// UnmatchedTransactionError reports ledger entries referencing no installment of the schedule.
type UnmatchedTransactionError struct {
	Transactions []Transaction
}

func (err *UnmatchedTransactionError) Error() string {
	refs := make([]string, 0, len(err.Transactions))
	for _, txn := range err.Transactions {
		refs = append(refs, fmt.Sprintf("%s(sem %d, inst %d)", txn.ID, txn.Ref.SemesterNumber, txn.Ref.InstallmentNumber))
	}
	return fmt.Sprintf("%d transaction(s) match no installment: %s", len(err.Transactions), strings.Join(refs, ", "))
}

// IsDomainError tells whether err is one of the input errors of the engine.
func IsDomainError(err error) bool {
	switch errors.Cause(err).(type) {
	case *InvalidPlanError, *InvalidFeeStructureError, *InvalidDateError, *UnmatchedTransactionError:
		return true
	}
	return false
}
