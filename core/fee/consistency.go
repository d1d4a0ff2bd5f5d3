package fee

import (
	"fmt"
	"strconv"

	"github.com/pmezard/go-difflib/difflib"
)

type Mismatch struct {
	InstallmentNumber int    `json:"installment_number,omitempty"` // 0 for schedule-level fields
	Field             string `json:"field"`
	Stored            string `json:"stored"`
	Computed          string `json:"computed"`
}

// ConsistencyReport is the outcome of comparing a persisted schedule with a recomputed one.
type ConsistencyReport struct {
	Consistent bool       `json:"consistent"`
	Mismatches []Mismatch `json:"mismatches"`
	Diff       string     `json:"diff,omitempty"`
}

// CompareSchedules diffs a stored schedule against a freshly computed one.
// Amounts are compared within Tolerance, dates by calendar day.
func CompareSchedules(stored, computed *Schedule) ConsistencyReport {
	var mms []Mismatch
	add := func(num int, field, s, c string) {
		mms = append(mms, Mismatch{InstallmentNumber: num, Field: field, Stored: s, Computed: c})
	}

	if stored.Plan != computed.Plan {
		add(0, "plan", string(stored.Plan), string(computed.Plan))
	}
	if !ApproxEqual(stored.TotalAmount, computed.TotalAmount, Tolerance) {
		add(0, "total_amount", stored.TotalAmount.StringFixed(centPlaces), computed.TotalAmount.StringFixed(centPlaces))
	}
	if !ApproxEqual(stored.AdmissionFee, computed.AdmissionFee, Tolerance) {
		add(0, "admission_fee", stored.AdmissionFee.StringFixed(centPlaces), computed.AdmissionFee.StringFixed(centPlaces))
	}
	if len(stored.Installments) != len(computed.Installments) {
		add(0, "installment_count", strconv.Itoa(len(stored.Installments)), strconv.Itoa(len(computed.Installments)))
	}

	n := len(stored.Installments)
	if len(computed.Installments) < n {
		n = len(computed.Installments)
	}
	for i := 0; i < n; i++ {
		st, cp := stored.Installments[i], computed.Installments[i]
		num := cp.InstallmentNumber
		if st.InstallmentNumber != cp.InstallmentNumber {
			add(num, "installment_number", strconv.Itoa(st.InstallmentNumber), strconv.Itoa(cp.InstallmentNumber))
		}
		if st.SemesterNumber != cp.SemesterNumber {
			add(num, "semester_number", strconv.Itoa(st.SemesterNumber), strconv.Itoa(cp.SemesterNumber))
		}
		if !dateOf(st.DueDate).Equal(dateOf(cp.DueDate)) {
			add(num, "due_date", st.DueDate.Format(DateLayout), cp.DueDate.Format(DateLayout))
		}
		if !ApproxEqual(st.AmountPayable, cp.AmountPayable, Tolerance) {
			add(num, "amount_payable", st.AmountPayable.StringFixed(centPlaces), cp.AmountPayable.StringFixed(centPlaces))
		}
	}

	report := ConsistencyReport{Consistent: len(mms) == 0, Mismatches: mms}
	if report.Mismatches == nil {
		report.Mismatches = []Mismatch{}
	}
	if !report.Consistent {
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        scheduleLines(stored),
			B:        scheduleLines(computed),
			FromFile: "stored",
			ToFile:   "computed",
			Context:  1,
		})
		if err == nil {
			report.Diff = diff
		}
	}
	return report
}

// scheduleLines renders one line per installment, used for diffs and CLI output.
func scheduleLines(s *Schedule) []string {
	lines := make([]string, 0, len(s.Installments)+1)
	lines = append(lines, fmt.Sprintf("plan=%s admission=%s program=%s total=%s\n",
		s.Plan, s.AdmissionFee.StringFixed(centPlaces), s.ProgramFee.StringFixed(centPlaces), s.TotalAmount.StringFixed(centPlaces)))
	for _, inst := range s.Installments {
		lines = append(lines, FormatInstallment(inst)+"\n")
	}
	return lines
}

// FormatInstallment renders an installment on a single line.
func FormatInstallment(inst Installment) string {
	return fmt.Sprintf("#%d sem=%d due=%s amount=%s",
		inst.InstallmentNumber, inst.SemesterNumber, inst.DueDate.Format(DateLayout), inst.AmountPayable.StringFixed(centPlaces))
}
