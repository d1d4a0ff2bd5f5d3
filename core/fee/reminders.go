package fee

import (
	"context"
	"net/mail"
	"text/template"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

var reminderTmpl = template.Must(template.New("reminder").Parse(`Hello {{.Name}},

The following fee installments are overdue as of {{.AsOf}}:
{{range .Installments}}
  - installment #{{.Number}} (semester {{.Semester}}), due {{.DueDate}}: {{.Pending}} pending
{{- end}}

Total overdue: {{.Total}}

Please submit your payment at your earliest convenience.
`))

type (
	reminderLine struct {
		Number   int
		Semester int
		DueDate  string
		Pending  string
	}

	reminderData struct {
		Name         string
		AsOf         string
		Installments []reminderLine
		Total        string
	}
)

// SendReminders emails every enrolled student holding overdue installments.
// It returns the number of reminders handed to the email service.
func (svc *Service) SendReminders(ctx context.Context) (int, error) {
	enrs, err := svc.repo.ListEnrollments(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "listing enrollments")
	}

	var msgs []*core.EmailMessage
	for _, enr := range enrs {
		if enr.StudentEmail == "" {
			svc.logger.Warn("student has no email address", map[string]interface{}{"student_id": enr.StudentID})
			continue
		}
		view, err := svc.paymentView(ctx, enr)
		if err != nil {
			// one broken ledger must not block the others
			svc.logger.Error("building payment view for reminder", err, map[string]interface{}{"student_id": enr.StudentID}, enrollmentPerson(enr))
			continue
		}
		if msg := reminderMessage(enr, view); msg != nil {
			msgs = append(msgs, msg)
		}
	}

	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return len(msgs), nil
}

// reminderMessage returns nil when nothing is overdue.
func reminderMessage(enr Enrollment, view *Reconciliation) *core.EmailMessage {
	data := reminderData{Name: enr.StudentName, AsOf: view.AsOf.Format(DateLayout)}
	total := decimal.Zero
	for _, ri := range OverdueInstallments(view) {
		total = total.Add(ri.AmountPending)
		data.Installments = append(data.Installments, reminderLine{
			Number:   ri.InstallmentNumber,
			Semester: ri.SemesterNumber,
			DueDate:  ri.DueDate.Format(DateLayout),
			Pending:  ri.AmountPending.StringFixed(centPlaces),
		})
	}
	if len(data.Installments) == 0 {
		return nil
	}
	if data.Name == "" {
		data.Name = "student"
	}
	data.Total = total.StringFixed(centPlaces)

	return &core.EmailMessage{
		To:           []mail.Address{{Name: enr.StudentName, Address: enr.StudentEmail}},
		Subject:      "Overdue fee installments",
		TextTemplate: reminderTmpl,
		TemplateData: data,
	}
}

// OverdueInstallments lists the overdue installments of a reconciliation.
func OverdueInstallments(r *Reconciliation) []ReconciledInstallment {
	var out []ReconciledInstallment
	for _, ri := range r.Installments {
		if ri.Status == StatusOverdue {
			out = append(out, ri)
		}
	}
	return out
}
