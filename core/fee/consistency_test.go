package fee

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareSchedules(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	computed, err := engine.GenerateSchedule(PlanSemesterWise, baseFees, Scholarship{}, "2024-01-01")
	if !assert.NoError(t, err) {
		return
	}

	t.Run("identical", func(t *testing.T) {
		report := CompareSchedules(computed.clone(), computed)
		assert.True(t, report.Consistent)
		assert.Empty(t, report.Mismatches)
		assert.Empty(t, report.Diff)
	})

	t.Run("within tolerance", func(t *testing.T) {
		stored := computed.clone()
		stored.Installments[0].AmountPayable = dec("125000.01")
		assert.True(t, CompareSchedules(stored, computed).Consistent)
	})

	t.Run("drifted", func(t *testing.T) {
		stored := computed.clone()
		stored.Installments[1].AmountPayable = dec("120000")
		stored.Installments[3].DueDate = day("2025-08-01")

		report := CompareSchedules(stored, computed)
		assert.False(t, report.Consistent)
		assert.Equal(t, []Mismatch{
			{InstallmentNumber: 2, Field: "amount_payable", Stored: "120000.00", Computed: "125000.00"},
			{InstallmentNumber: 4, Field: "due_date", Stored: "2025-08-01", Computed: "2025-07-01"},
		}, report.Mismatches)
		assert.True(t, strings.HasPrefix(report.Diff, "--- stored\n+++ computed\n"), report.Diff)
		assert.Contains(t, report.Diff, "-#2 sem=2 due=2024-07-01 amount=120000.00")
		assert.Contains(t, report.Diff, "+#2 sem=2 due=2024-07-01 amount=125000.00")
	})

	t.Run("missing installment", func(t *testing.T) {
		stored := computed.clone()
		stored.Installments = stored.Installments[:3]

		report := CompareSchedules(stored, computed)
		assert.False(t, report.Consistent)
		assert.Equal(t, Mismatch{Field: "installment_count", Stored: "3", Computed: "4"}, report.Mismatches[0])
	})
}
