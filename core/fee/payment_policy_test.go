package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPayment(t *testing.T) {
	base := ReconciledInstallment{
		Installment:            Installment{InstallmentNumber: 1, SemesterNumber: 1, AmountPayable: dec("125000")},
		AmountPaid:             dec("0"),
		AmountPending:          dec("125000"),
		AmountAwaitingApproval: dec("0"),
		MaxPartialPayments:     2,
		Status:                 StatusPending,
	}
	with := func(f func(ri *ReconciledInstallment)) ReconciledInstallment {
		ri := base
		f(&ri)
		return ri
	}

	tests := []struct {
		name    string
		ri      ReconciledInstallment
		amount  string
		wantErr error
	}{
		{name: "full amount", ri: base, amount: "125000"},
		{name: "partial amount", ri: base, amount: "50000"},
		{name: "zero", ri: base, amount: "0", wantErr: ErrNonPositiveAmount},
		{name: "negative", ri: base, amount: "-1", wantErr: ErrNonPositiveAmount},
		{name: "above pending", ri: base, amount: "125000.01", wantErr: ErrOverpayment},
		{
			name:    "settled",
			ri:      with(func(ri *ReconciledInstallment) { ri.Status = StatusPaid; ri.AmountPending = dec("0") }),
			amount:  "1",
			wantErr: ErrInstallmentSettled,
		},
		{
			name:    "awaiting approval reserves money",
			ri:      with(func(ri *ReconciledInstallment) { ri.AmountAwaitingApproval = dec("100000"); ri.PartialPaymentCount = 1 }),
			amount:  "30000",
			wantErr: ErrOverpayment,
		},
		{
			name:   "remainder after reservation",
			ri:     with(func(ri *ReconciledInstallment) { ri.AmountAwaitingApproval = dec("100000"); ri.PartialPaymentCount = 1 }),
			amount: "25000",
		},
		{
			name:    "everything awaiting approval",
			ri:      with(func(ri *ReconciledInstallment) { ri.AmountAwaitingApproval = dec("125000") }),
			amount:  "1",
			wantErr: ErrInstallmentSettled,
		},
		{
			name:    "partial limit reached",
			ri:      with(func(ri *ReconciledInstallment) { ri.PartialPaymentCount = 2 }),
			amount:  "1000",
			wantErr: ErrPartialPaymentLimit,
		},
		{
			name:   "closing payment allowed past partial limit",
			ri:     with(func(ri *ReconciledInstallment) { ri.PartialPaymentCount = 2 }),
			amount: "125000",
		},
		{
			name:    "no partials allowed",
			ri:      with(func(ri *ReconciledInstallment) { ri.MaxPartialPayments = 0 }),
			amount:  "100",
			wantErr: ErrPartialPaymentLimit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPayment(tt.ri, dec(tt.amount))
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.wantErr == nil, CanAcceptPayment(tt.ri, dec(tt.amount)))
		})
	}
}
