package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

type (
	cohortRow struct {
		ID                        string          `db:"id"`
		Name                      string          `db:"name"`
		StartDate                 string          `db:"start_date"`
		TotalProgramFee           decimal.Decimal `db:"total_program_fee"`
		AdmissionFee              decimal.Decimal `db:"admission_fee"`
		NumberOfSemesters         int             `db:"number_of_semesters"`
		InstallmentsPerSemester   int             `db:"instalments_per_semester"`
		OneShotDiscountPercentage decimal.Decimal `db:"one_shot_discount_percentage"`
		GSTInclusive              bool            `db:"program_fee_includes_gst"`
	}

	enrollmentRow struct {
		StudentID                    string              `db:"student_id"`
		StudentName                  string              `db:"student_name"`
		StudentEmail                 string              `db:"student_email"`
		CohortID                     string              `db:"cohort_id"`
		Plan                         string              `db:"plan"`
		ScholarshipPercentage        decimal.NullDecimal `db:"scholarship_percentage"`
		AdditionalDiscountPercentage decimal.NullDecimal `db:"additional_discount_percentage"`
	}

	// transactionRow mirrors payment_transaction. A NULL installment_number is a payment
	// against a whole semester, i.e. the installment numbered like the semester.
	transactionRow struct {
		ID                 string          `db:"id"`
		StudentID          string          `db:"student_id"`
		Amount             decimal.Decimal `db:"amount"`
		SemesterNumber     int             `db:"semester_number"`
		InstallmentNumber  null.Int        `db:"installment_number"`
		VerificationStatus string          `db:"verification_status"`
		ReceiptURL         null.String     `db:"receipt_url"`
		CreatedAt          time.Time       `db:"created_at"`
	}

	scheduleHeaderRow struct {
		StudentID          string          `db:"student_id"`
		Plan               string          `db:"plan"`
		AdmissionFee       decimal.Decimal `db:"admission_fee"`
		ProgramFee         decimal.Decimal `db:"program_fee"`
		DiscountPercentage decimal.Decimal `db:"discount_percentage"`
		GSTInclusive       bool            `db:"gst_inclusive"`
		TotalAmount        decimal.Decimal `db:"total_amount"`
		StartDate          time.Time       `db:"start_date"`
	}

	scheduleRow struct {
		StudentID         string          `db:"student_id"`
		InstallmentNumber int             `db:"installment_number"`
		SemesterNumber    int             `db:"semester_number"`
		DueDate           time.Time       `db:"due_date"`
		AmountPayable     decimal.Decimal `db:"amount_payable"`
	}
)

func (row cohortRow) toCohort() fee.Cohort {
	return fee.Cohort{
		ID:        row.ID,
		Name:      row.Name,
		StartDate: row.StartDate,
		FeeStructure: fee.FeeStructure{
			TotalProgramFee:           row.TotalProgramFee,
			AdmissionFee:              row.AdmissionFee,
			NumberOfSemesters:         row.NumberOfSemesters,
			InstallmentsPerSemester:   row.InstallmentsPerSemester,
			OneShotDiscountPercentage: row.OneShotDiscountPercentage,
			GSTInclusive:              row.GSTInclusive,
		},
	}
}

func (row enrollmentRow) toEnrollment() fee.Enrollment {
	enr := fee.Enrollment{
		StudentID:    row.StudentID,
		StudentName:  row.StudentName,
		StudentEmail: row.StudentEmail,
		CohortID:     row.CohortID,
		Plan:         fee.Plan(row.Plan),
	}
	if row.ScholarshipPercentage.Valid || row.AdditionalDiscountPercentage.Valid {
		enr.Scholarship = &fee.Scholarship{
			Percentage:                   row.ScholarshipPercentage.Decimal,
			AdditionalDiscountPercentage: row.AdditionalDiscountPercentage.Decimal,
		}
	}
	return enr
}

func (row transactionRow) toTransaction() fee.Transaction {
	ref := fee.InstallmentRef{SemesterNumber: row.SemesterNumber, InstallmentNumber: row.SemesterNumber}
	if row.InstallmentNumber.Valid {
		ref.InstallmentNumber = row.InstallmentNumber.Int
	}
	return fee.Transaction{
		ID:         row.ID,
		StudentID:  row.StudentID,
		Amount:     row.Amount,
		Ref:        ref,
		Status:     fee.TransactionStatus(row.VerificationStatus),
		ReceiptURL: row.ReceiptURL.String,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *sqlx.DB) fee.Repository {
	return &feeRepository{db: db}
}

func notFound(err error) error {
	if err == sql.ErrNoRows {
		return fee.ErrNotFound
	}
	return err
}

func (repo *feeRepository) SaveCohort(ctx context.Context, c fee.Cohort) (fee.Cohort, error) {
	const q = `
INSERT INTO cohort (id, name, start_date, total_program_fee, admission_fee, number_of_semesters,
                    instalments_per_semester, one_shot_discount_percentage, program_fee_includes_gst)
VALUES (:id, :name, :start_date, :total_program_fee, :admission_fee, :number_of_semesters,
        :instalments_per_semester, :one_shot_discount_percentage, :program_fee_includes_gst)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    start_date = EXCLUDED.start_date,
    total_program_fee = EXCLUDED.total_program_fee,
    admission_fee = EXCLUDED.admission_fee,
    number_of_semesters = EXCLUDED.number_of_semesters,
    instalments_per_semester = EXCLUDED.instalments_per_semester,
    one_shot_discount_percentage = EXCLUDED.one_shot_discount_percentage,
    program_fee_includes_gst = EXCLUDED.program_fee_includes_gst`

	fs := c.FeeStructure
	row := cohortRow{
		ID:                        c.ID,
		Name:                      c.Name,
		StartDate:                 c.StartDate,
		TotalProgramFee:           fs.TotalProgramFee,
		AdmissionFee:              fs.AdmissionFee,
		NumberOfSemesters:         fs.NumberOfSemesters,
		InstallmentsPerSemester:   fs.InstallmentsPerSemester,
		OneShotDiscountPercentage: fs.OneShotDiscountPercentage,
		GSTInclusive:              fs.GSTInclusive,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return fee.Cohort{}, errors.Wrap(err, "saving cohort")
	}
	return c, nil
}

func (repo *feeRepository) GetCohort(ctx context.Context, id string) (fee.Cohort, error) {
	var row cohortRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM cohort WHERE id = $1`, id); err != nil {
		return fee.Cohort{}, notFound(err)
	}
	return row.toCohort(), nil
}

func (repo *feeRepository) SaveEnrollment(ctx context.Context, enr fee.Enrollment) (fee.Enrollment, error) {
	const q = `
INSERT INTO enrollment (student_id, student_name, student_email, cohort_id, plan,
                        scholarship_percentage, additional_discount_percentage)
VALUES (:student_id, :student_name, :student_email, :cohort_id, :plan,
        :scholarship_percentage, :additional_discount_percentage)
ON CONFLICT (student_id) DO UPDATE SET
    student_name = EXCLUDED.student_name,
    student_email = EXCLUDED.student_email,
    cohort_id = EXCLUDED.cohort_id,
    plan = EXCLUDED.plan,
    scholarship_percentage = EXCLUDED.scholarship_percentage,
    additional_discount_percentage = EXCLUDED.additional_discount_percentage`

	row := enrollmentRow{
		StudentID:    enr.StudentID,
		StudentName:  enr.StudentName,
		StudentEmail: enr.StudentEmail,
		CohortID:     enr.CohortID,
		Plan:         string(enr.Plan),
	}
	if enr.Scholarship != nil {
		row.ScholarshipPercentage = decimal.NullDecimal{Decimal: enr.Scholarship.Percentage, Valid: true}
		row.AdditionalDiscountPercentage = decimal.NullDecimal{Decimal: enr.Scholarship.AdditionalDiscountPercentage, Valid: true}
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return fee.Enrollment{}, errors.Wrap(err, "saving enrollment")
	}
	return enr, nil
}

func (repo *feeRepository) GetEnrollment(ctx context.Context, studentID string) (fee.Enrollment, error) {
	var row enrollmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM enrollment WHERE student_id = $1`, studentID); err != nil {
		return fee.Enrollment{}, notFound(err)
	}
	return row.toEnrollment(), nil
}

func (repo *feeRepository) ListEnrollments(ctx context.Context) ([]fee.Enrollment, error) {
	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM enrollment ORDER BY student_id`); err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	enrs := make([]fee.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, row.toEnrollment())
	}
	return enrs, nil
}

func (repo *feeRepository) QueryTransactions(ctx context.Context, studentID string) ([]fee.Transaction, error) {
	ordering := []core.DBOrdering{{Field: "created_at", Ascending: true}, {Field: "id", Ascending: true}}
	q := `SELECT * FROM payment_transaction WHERE student_id = $1 ORDER BY ` + core.OrderBy(ordering...)

	var rows []transactionRow
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying transactions")
	}
	txns := make([]fee.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, row.toTransaction())
	}
	return txns, nil
}

func (repo *feeRepository) GetTransaction(ctx context.Context, id string) (fee.Transaction, error) {
	var row transactionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM payment_transaction WHERE id = $1`, id); err != nil {
		return fee.Transaction{}, notFound(err)
	}
	return row.toTransaction(), nil
}

func (repo *feeRepository) CreateTransaction(ctx context.Context, txn fee.Transaction) (fee.Transaction, error) {
	const q = `
INSERT INTO payment_transaction (id, student_id, amount, semester_number, installment_number,
                                 verification_status, receipt_url, created_at)
VALUES (:id, :student_id, :amount, :semester_number, :installment_number,
        :verification_status, :receipt_url, :created_at)`

	row := transactionRow{
		ID:                 txn.ID,
		StudentID:          txn.StudentID,
		Amount:             txn.Amount,
		SemesterNumber:     txn.Ref.SemesterNumber,
		InstallmentNumber:  null.IntFrom(txn.Ref.InstallmentNumber),
		VerificationStatus: string(txn.Status),
		ReceiptURL:         null.NewString(txn.ReceiptURL, txn.ReceiptURL != ""),
		CreatedAt:          txn.CreatedAt,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return fee.Transaction{}, errors.Wrap(err, "creating transaction")
	}
	return txn, nil
}

func (repo *feeRepository) UpdateTransactionStatus(ctx context.Context, id string, status fee.TransactionStatus) (fee.Transaction, error) {
	const q = `UPDATE payment_transaction SET verification_status = $2 WHERE id = $1 RETURNING *`

	var row transactionRow
	if err := repo.db.GetContext(ctx, &row, q, id, string(status)); err != nil {
		return fee.Transaction{}, notFound(err)
	}
	return row.toTransaction(), nil
}

func (repo *feeRepository) SaveSchedule(ctx context.Context, studentID string, s fee.Schedule) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = deleteStoredSchedule(ctx, tx, studentID); err != nil {
		return err
	}

	header := scheduleHeaderRow{
		StudentID:          studentID,
		Plan:               string(s.Plan),
		AdmissionFee:       s.AdmissionFee,
		ProgramFee:         s.ProgramFee,
		DiscountPercentage: s.DiscountPercentage,
		GSTInclusive:       s.GSTInclusive,
		TotalAmount:        s.TotalAmount,
		StartDate:          s.StartDate,
	}
	const headerQ = `
INSERT INTO stored_schedule_header (student_id, plan, admission_fee, program_fee, discount_percentage,
                                    gst_inclusive, total_amount, start_date)
VALUES (:student_id, :plan, :admission_fee, :program_fee, :discount_percentage,
        :gst_inclusive, :total_amount, :start_date)`
	if _, err = tx.NamedExecContext(ctx, headerQ, header); err != nil {
		return errors.Wrap(err, "saving schedule header")
	}

	const rowQ = `
INSERT INTO stored_schedule (student_id, installment_number, semester_number, due_date, amount_payable)
VALUES (:student_id, :installment_number, :semester_number, :due_date, :amount_payable)`
	for _, inst := range s.Installments {
		row := scheduleRow{
			StudentID:         studentID,
			InstallmentNumber: inst.InstallmentNumber,
			SemesterNumber:    inst.SemesterNumber,
			DueDate:           inst.DueDate,
			AmountPayable:     inst.AmountPayable,
		}
		if _, err = tx.NamedExecContext(ctx, rowQ, row); err != nil {
			return errors.Wrapf(err, "saving installment %d", inst.InstallmentNumber)
		}
	}
	return errors.Wrap(tx.Commit(), "committing schedule")
}

func deleteStoredSchedule(ctx context.Context, ex core.DBExecutor, studentID string) error {
	for _, q := range []string{
		`DELETE FROM stored_schedule WHERE student_id = $1`,
		`DELETE FROM stored_schedule_header WHERE student_id = $1`,
	} {
		if _, err := ex.ExecContext(ctx, q, studentID); err != nil {
			return errors.Wrap(err, "deleting stored schedule")
		}
	}
	return nil
}

func (repo *feeRepository) GetStoredSchedule(ctx context.Context, studentID string) (fee.Schedule, error) {
	var header scheduleHeaderRow
	const headerQ = `
SELECT student_id, plan, admission_fee, program_fee, discount_percentage, gst_inclusive, total_amount, start_date
FROM stored_schedule_header WHERE student_id = $1`
	if err := repo.db.GetContext(ctx, &header, headerQ, studentID); err != nil {
		return fee.Schedule{}, notFound(err)
	}

	var rows []scheduleRow
	const rowsQ = `SELECT * FROM stored_schedule WHERE student_id = $1 ORDER BY installment_number`
	if err := repo.db.SelectContext(ctx, &rows, rowsQ, studentID); err != nil {
		return fee.Schedule{}, errors.Wrap(err, "querying stored installments")
	}

	s := fee.Schedule{
		Plan:               fee.Plan(header.Plan),
		AdmissionFee:       header.AdmissionFee,
		ProgramFee:         header.ProgramFee,
		DiscountPercentage: header.DiscountPercentage,
		GSTInclusive:       header.GSTInclusive,
		TotalAmount:        header.TotalAmount,
		StartDate:          calendarDay(header.StartDate),
		Installments:       make([]fee.Installment, 0, len(rows)),
	}
	for _, row := range rows {
		s.Installments = append(s.Installments, fee.Installment{
			InstallmentNumber: row.InstallmentNumber,
			SemesterNumber:    row.SemesterNumber,
			DueDate:           calendarDay(row.DueDate),
			AmountPayable:     row.AmountPayable,
		})
	}
	return s, nil
}
