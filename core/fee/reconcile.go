package fee

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Reconcile matches the ledger against the schedule and derives, per installment and in
// aggregate, what has been paid and what is still pending as of the given day.
//
// Only approved transactions are paid money. Pending ones are reported as awaiting approval
// and rejected ones are ignored. Neither the schedule nor the ledger is modified.
func (e *Engine) Reconcile(s *Schedule, txns []Transaction, asOf time.Time) (*Reconciliation, error) {
	today := dateOf(asOf)

	index := make(map[InstallmentRef]int, len(s.Installments))
	for i, inst := range s.Installments {
		index[inst.Ref()] = i
	}

	matched := make([][]Transaction, len(s.Installments))
	var unmatched []Transaction
	for _, txn := range txns {
		i, ok := index[txn.Ref]
		if !ok {
			unmatched = append(unmatched, txn)
			continue
		}
		matched[i] = append(matched[i], txn)
	}
	if len(unmatched) > 0 && e.policy.Unmatched != UnmatchedExclude {
		return nil, &UnmatchedTransactionError{Transactions: unmatched}
	}

	r := &Reconciliation{
		Plan:         s.Plan,
		AsOf:         today,
		Installments: make([]ReconciledInstallment, 0, len(s.Installments)),
		Unmatched:    unmatched,
	}
	for i, inst := range s.Installments {
		r.Installments = append(r.Installments, e.reconcileInstallment(inst, matched[i], today))
	}
	r.Summary = summarize(s, r.Installments)
	return r, nil
}

func (e *Engine) reconcileInstallment(inst Installment, txns []Transaction, today time.Time) ReconciledInstallment {
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })

	ri := ReconciledInstallment{
		Installment:            inst,
		AmountPaid:             decimal.Zero,
		AmountAwaitingApproval: decimal.Zero,
		MaxPartialPayments:     e.policy.MaxPartialPayments,
		Transactions:           txns,
	}
	if ri.Transactions == nil {
		ri.Transactions = []Transaction{}
	}

	for _, txn := range txns {
		switch txn.Status {
		case TransactionApproved:
			ri.AmountPaid = ri.AmountPaid.Add(txn.Amount)
		case TransactionPending:
			ri.AmountAwaitingApproval = ri.AmountAwaitingApproval.Add(txn.Amount)
		default:
			continue
		}
		if txn.Amount.LessThan(inst.AmountPayable) {
			ri.PartialPaymentCount++
		}
	}
	ri.AmountPending = nonNegative(inst.AmountPayable.Sub(ri.AmountPaid))
	ri.Status = installmentStatus(ri, today)
	return ri
}

func installmentStatus(ri ReconciledInstallment, today time.Time) InstallmentStatus {
	switch {
	case ri.AmountPending.IsZero():
		return StatusPaid
	case ri.AmountPaid.IsPositive():
		return StatusPartiallyPaid
	case ri.AmountPending.Equal(ri.AmountPayable) && ri.DueDate.Before(today):
		return StatusOverdue
	default:
		return StatusPending
	}
}

func summarize(s *Schedule, installments []ReconciledInstallment) Summary {
	sum := Summary{
		TotalAmountPayable: decimal.Zero,
		TotalAmountPaid:    decimal.Zero,
		AdmissionFee:       s.AdmissionFee,
	}
	for i, ri := range installments {
		sum.TotalAmountPayable = sum.TotalAmountPayable.Add(ri.AmountPayable)
		sum.TotalAmountPaid = sum.TotalAmountPaid.Add(ri.AmountPaid)
		if sum.NextDueInstallment == nil && ri.Status != StatusPaid {
			next := installments[i]
			sum.NextDueInstallment = &next
		}
	}

	// the admission fee is collected at registration outside the schedule
	if !s.AdmissionFeeInSchedule() {
		sum.AdmissionFeePrepaid = true
		sum.TotalAmountPayable = sum.TotalAmountPayable.Add(s.AdmissionFee)
		sum.TotalAmountPaid = sum.TotalAmountPaid.Add(s.AdmissionFee)
	}

	if sum.TotalAmountPayable.IsPositive() {
		sum.CompletionPercentage = sum.TotalAmountPaid.Mul(hundred).Div(sum.TotalAmountPayable).Round(0).IntPart()
	}
	return sum
}
