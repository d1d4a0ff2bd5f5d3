package fee

import (
	"github.com/shopspring/decimal"
)

// CheckPayment tells why a payment of amount cannot be submitted against a reconciled
// installment, or returns nil when it can.
//
// Money awaiting approval is reserved: a payment may not exceed what is pending once the
// unverified submissions are accounted for. An amount below that is a partial payment, and
// those are capped at ri.MaxPartialPayments per installment.
func CheckPayment(ri ReconciledInstallment, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if ri.Status == StatusPaid {
		return ErrInstallmentSettled
	}

	open := nonNegative(ri.AmountPending.Sub(ri.AmountAwaitingApproval))
	if open.IsZero() {
		return ErrInstallmentSettled
	}
	if amount.GreaterThan(open) {
		return ErrOverpayment
	}
	if amount.LessThan(open) && ri.PartialPaymentCount >= ri.MaxPartialPayments {
		return ErrPartialPaymentLimit
	}
	return nil
}

// CanAcceptPayment reports whether CheckPayment accepts the payment.
func CanAcceptPayment(ri ReconciledInstallment, amount decimal.Decimal) bool {
	return CheckPayment(ri, amount) == nil
}
