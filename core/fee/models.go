package fee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is the payment plan a student picked. It determines the shape of the schedule.
type Plan string

const (
	PlanOneShot         Plan = "one_shot"
	PlanSemesterWise    Plan = "semester_wise"
	PlanInstallmentWise Plan = "installment_wise"
)

var Plans = []Plan{PlanOneShot, PlanSemesterWise, PlanInstallmentWise}

func (p Plan) Valid() bool {
	switch p {
	case PlanOneShot, PlanSemesterWise, PlanInstallmentWise:
		return true
	}
	return false
}

// FeeStructure is the fee configuration of a cohort.
type FeeStructure struct {
	TotalProgramFee           decimal.Decimal `json:"total_program_fee"`
	AdmissionFee              decimal.Decimal `json:"admission_fee"`
	NumberOfSemesters         int             `json:"number_of_semesters"`
	InstallmentsPerSemester   int             `json:"instalments_per_semester"`
	OneShotDiscountPercentage decimal.Decimal `json:"one_shot_discount_percentage" validate:"percent"`
	GSTInclusive              bool            `json:"program_fee_includes_gst"`
}

// Scholarship is a student's scholarship. Both percentages add up before being applied.
type Scholarship struct {
	Percentage                   decimal.Decimal `json:"amount_percentage" validate:"percent"`
	AdditionalDiscountPercentage decimal.Decimal `json:"additional_discount_percentage" validate:"percent"`
}

func (s Scholarship) TotalPercentage() decimal.Decimal {
	return s.Percentage.Add(s.AdditionalDiscountPercentage)
}

type Installment struct {
	InstallmentNumber int             `json:"installment_number"` // global sequence, 1-based
	SemesterNumber    int             `json:"semester_number"`
	DueDate           time.Time       `json:"due_date"` // UTC midnight
	AmountPayable     decimal.Decimal `json:"amount_payable"`
}

// Ref returns the ledger reference of the installment.
func (inst Installment) Ref() InstallmentRef {
	return InstallmentRef{SemesterNumber: inst.SemesterNumber, InstallmentNumber: inst.InstallmentNumber}
}

// Schedule is the canonical installment schedule of a (fee structure, plan, discount, start date) tuple.
// It is built fresh on every computation and never mutated afterwards.
type Schedule struct {
	Plan               Plan            `json:"plan"`
	AdmissionFee       decimal.Decimal `json:"admission_fee"`
	ProgramFee         decimal.Decimal `json:"program_fee"` // after discount
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	GSTInclusive       bool            `json:"gst_inclusive"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	StartDate          time.Time       `json:"start_date"`
	Installments       []Installment   `json:"installments"`
}

// AdmissionFeeInSchedule tells whether the admission fee is part of the installments.
// Only one-shot plans bundle it; the other plans collect it at registration.
func (s Schedule) AdmissionFeeInSchedule() bool {
	return s.Plan == PlanOneShot
}

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
)

// InstallmentRef identifies the installment a transaction pays for.
type InstallmentRef struct {
	SemesterNumber    int `json:"semester_number"`
	InstallmentNumber int `json:"installment_number"`
}

// Transaction is a ledger entry.
type Transaction struct {
	ID         string            `json:"id"`
	StudentID  string            `json:"student_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Ref        InstallmentRef    `json:"installment"`
	Status     TransactionStatus `json:"verification_status"`
	ReceiptURL string            `json:"receipt_url,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// InstallmentStatus is the payment status of a reconciled installment.
type InstallmentStatus string

const (
	StatusPending       InstallmentStatus = "pending"
	StatusPartiallyPaid InstallmentStatus = "partially_paid"
	StatusPaid          InstallmentStatus = "paid"
	StatusOverdue       InstallmentStatus = "overdue"
)

type ReconciledInstallment struct {
	Installment
	AmountPaid             decimal.Decimal   `json:"amount_paid"`
	AmountPending          decimal.Decimal   `json:"amount_pending"`
	AmountAwaitingApproval decimal.Decimal   `json:"amount_awaiting_approval"`
	PartialPaymentCount    int               `json:"partial_payment_count"`
	MaxPartialPayments     int               `json:"max_partial_payments"`
	Status                 InstallmentStatus `json:"status"`
	Transactions           []Transaction     `json:"transactions"`
}

type Summary struct {
	TotalAmountPayable   decimal.Decimal        `json:"total_amount_payable"`
	TotalAmountPaid      decimal.Decimal        `json:"total_amount_paid"`
	CompletionPercentage int64                  `json:"completion_percentage"`
	NextDueInstallment   *ReconciledInstallment `json:"next_due_installment"`
	AdmissionFee         decimal.Decimal        `json:"admission_fee"`
	AdmissionFeePrepaid  bool                   `json:"admission_fee_prepaid"`
}

// Reconciliation is the live payment view of a schedule against a ledger.
type Reconciliation struct {
	Plan         Plan                    `json:"plan"`
	AsOf         time.Time               `json:"as_of"`
	Installments []ReconciledInstallment `json:"installments"`
	Summary      Summary                 `json:"summary"`
	Unmatched    []Transaction           `json:"unmatched_transactions,omitempty"`
}

// Installment returns the reconciled installment matching ref.
func (r *Reconciliation) Installment(ref InstallmentRef) (ReconciledInstallment, bool) {
	for _, ri := range r.Installments {
		if ri.Ref() == ref {
			return ri, true
		}
	}
	return ReconciledInstallment{}, false
}

// Cohort is a batch of students sharing a start date and fee structure.
type Cohort struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	StartDate    string       `json:"start_date"`
	FeeStructure FeeStructure `json:"fee_structure"`
}

// Enrollment binds a student to a cohort with the plan and scholarship they picked.
type Enrollment struct {
	StudentID    string       `json:"student_id"`
	StudentName  string       `json:"student_name"`
	StudentEmail string       `json:"student_email"`
	CohortID     string       `json:"cohort_id"`
	Plan         Plan         `json:"plan"`
	Scholarship  *Scholarship `json:"scholarship,omitempty"`
}

// NewPayment contains information needed to submit a payment against an installment.
type NewPayment struct {
	StudentID         string          `json:"-" validate:"required"`
	Amount            decimal.Decimal `json:"amount" validate:"gt=0"`
	SemesterNumber    int             `json:"semester_number" validate:"gte=1"`
	InstallmentNumber int             `json:"installment_number" validate:"gte=1"`
	ReceiptURL        string          `json:"receipt_url" validate:"omitempty,url"`
}

func (np NewPayment) Ref() InstallmentRef {
	return InstallmentRef{SemesterNumber: np.SemesterNumber, InstallmentNumber: np.InstallmentNumber}
}

// SchedulePreview is a stateless schedule request.
type SchedulePreview struct {
	Plan         Plan         `json:"plan" validate:"required,plan"`
	FeeStructure FeeStructure `json:"fee_structure"`
	Scholarship  Scholarship  `json:"scholarship"`
	StartDate    string       `json:"start_date" validate:"required"`
}
