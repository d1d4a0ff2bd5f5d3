package fee

import (
	"github.com/shopspring/decimal"
)

const monthsPerSemester = 6

// GenerateSchedule builds the installment schedule of a fee structure for a plan.
//
// One-shot plans apply the one-shot discount and ignore the scholarship; the other plans
// apply the scholarship and ignore the one-shot discount. The admission fee is bundled in
// the single one-shot installment, and is collected at registration otherwise.
func (e *Engine) GenerateSchedule(plan Plan, fs FeeStructure, sch Scholarship, startDate string) (*Schedule, error) {
	if !plan.Valid() {
		return nil, &InvalidPlanError{Plan: plan}
	}
	if err := validateFeeStructure(fs); err != nil {
		return nil, err
	}
	start, err := ParseDate(startDate)
	if err != nil {
		return nil, err
	}

	discount := fs.OneShotDiscountPercentage
	if plan != PlanOneShot {
		if err := validateScholarship(sch); err != nil {
			return nil, err
		}
		discount = sch.TotalPercentage()
	}
	programFee := applyDiscount(fs.TotalProgramFee, discount)
	admissionFee := roundCents(fs.AdmissionFee)

	s := &Schedule{
		Plan:               plan,
		AdmissionFee:       admissionFee,
		ProgramFee:         programFee,
		DiscountPercentage: discount,
		GSTInclusive:       fs.GSTInclusive,
		TotalAmount:        admissionFee.Add(programFee),
		StartDate:          start,
	}

	switch plan {
	case PlanOneShot:
		s.Installments = []Installment{{
			InstallmentNumber: 1,
			SemesterNumber:    1,
			DueDate:           start,
			AmountPayable:     s.TotalAmount,
		}}
	case PlanSemesterWise:
		amounts := split(programFee, fs.NumberOfSemesters, e.policy.Rounding)
		s.Installments = make([]Installment, 0, fs.NumberOfSemesters)
		for i, amount := range amounts {
			s.Installments = append(s.Installments, Installment{
				InstallmentNumber: i + 1,
				SemesterNumber:    i + 1,
				DueDate:           addMonths(start, i*monthsPerSemester),
				AmountPayable:     amount,
			})
		}
	case PlanInstallmentWise:
		count := fs.NumberOfSemesters * fs.InstallmentsPerSemester
		amounts := split(programFee, count, e.policy.Rounding)
		s.Installments = make([]Installment, 0, count)
		for i, amount := range amounts {
			s.Installments = append(s.Installments, Installment{
				InstallmentNumber: i + 1,
				SemesterNumber:    i/fs.InstallmentsPerSemester + 1,
				DueDate:           addMonths(start, i),
				AmountPayable:     amount,
			})
		}
	}
	return s, nil
}

// InstallmentsTotal sums the amounts payable of the schedule.
func (s Schedule) InstallmentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range s.Installments {
		total = total.Add(inst.AmountPayable)
	}
	return total
}

func validateFeeStructure(fs FeeStructure) error {
	switch {
	case fs.TotalProgramFee.IsNegative():
		return &InvalidFeeStructureError{Field: "total_program_fee", Reason: "must not be negative"}
	case fs.AdmissionFee.IsNegative():
		return &InvalidFeeStructureError{Field: "admission_fee", Reason: "must not be negative"}
	case fs.NumberOfSemesters < 1:
		return &InvalidFeeStructureError{Field: "number_of_semesters", Reason: "must be at least 1"}
	case fs.InstallmentsPerSemester < 1:
		return &InvalidFeeStructureError{Field: "instalments_per_semester", Reason: "must be at least 1"}
	case !validPercentage(fs.OneShotDiscountPercentage):
		return &InvalidFeeStructureError{Field: "one_shot_discount_percentage", Reason: "must be between 0 and 100"}
	}
	return nil
}

func validateScholarship(sch Scholarship) error {
	switch {
	case !validPercentage(sch.Percentage):
		return &InvalidFeeStructureError{Field: "scholarship_percentage", Reason: "must be between 0 and 100"}
	case !validPercentage(sch.AdditionalDiscountPercentage):
		return &InvalidFeeStructureError{Field: "additional_discount_percentage", Reason: "must be between 0 and 100"}
	case !validPercentage(sch.TotalPercentage()):
		return &InvalidFeeStructureError{Field: "scholarship_percentage", Reason: "scholarship and additional discount exceed 100"}
	}
	return nil
}
