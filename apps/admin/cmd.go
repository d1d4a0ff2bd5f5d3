package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/trezcool/masomo-fees/core/fee"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	feeSvc *fee.Service
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                - run a goose command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  schedule -student ID [-store]         - print (and optionally store) a student's schedule")
	_, _ = fmt.Fprintln(cli.out, "  reconcile -student ID                 - print a student's payment view")
	_, _ = fmt.Fprintln(cli.out, "  consistency [-student ID]             - compare stored schedules with recomputed ones")
	_, _ = fmt.Fprintln(cli.out, "  remind                                - email students with overdue installments")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	scheduleCmd := flag.NewFlagSet("schedule", flag.ContinueOnError)
	scheduleStudent := scheduleCmd.String("student", "", "The student's ID.")
	scheduleStore := scheduleCmd.Bool("store", false, "Persist the schedule for later consistency checks.")

	reconcileCmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	reconcileStudent := reconcileCmd.String("student", "", "The student's ID.")

	consistencyCmd := flag.NewFlagSet("consistency", flag.ContinueOnError)
	consistencyStudent := consistencyCmd.String("student", "", "The student's ID. All students with a stored schedule when empty.")

	for _, fs := range []*flag.FlagSet{scheduleCmd, reconcileCmd, consistencyCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "schedule":
		if err := scheduleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *scheduleStudent == "" {
			scheduleCmd.Usage()
			return errHelp
		}
		return cli.schedule(ctx, *scheduleStudent, *scheduleStore)
	case "reconcile":
		if err := reconcileCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reconcileStudent == "" {
			reconcileCmd.Usage()
			return errHelp
		}
		return cli.reconcile(ctx, *reconcileStudent)
	case "consistency":
		if err := consistencyCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.consistency(ctx, *consistencyStudent)
	case "remind":
		return cli.remind(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) schedule(ctx context.Context, studentID string, store bool) error {
	var (
		s   *fee.Schedule
		err error
	)
	if store {
		s, err = cli.feeSvc.StoreSchedule(ctx, studentID)
	} else {
		s, err = cli.feeSvc.Schedule(ctx, studentID)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cli.out, "plan: %s\ntotal: %s\n", s.Plan, s.TotalAmount.StringFixed(2))
	for _, inst := range s.Installments {
		_, _ = fmt.Fprintln(cli.out, fee.FormatInstallment(inst))
	}
	if store {
		_, _ = fmt.Fprintln(cli.out, "stored.")
	}
	return nil
}

func (cli *commandLine) reconcile(ctx context.Context, studentID string) error {
	view, err := cli.feeSvc.PaymentView(ctx, studentID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tSEM\tDUE\tPAYABLE\tPAID\tPENDING\tAWAITING\tSTATUS")
	for _, ri := range view.Installments {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ri.InstallmentNumber,
			ri.SemesterNumber,
			ri.DueDate.Format(fee.DateLayout),
			ri.AmountPayable.StringFixed(2),
			ri.AmountPaid.StringFixed(2),
			ri.AmountPending.StringFixed(2),
			ri.AmountAwaitingApproval.StringFixed(2),
			ri.Status,
		)
	}
	if err = w.Flush(); err != nil {
		return err
	}

	sum := view.Summary
	_, _ = fmt.Fprintf(cli.out, "paid %s of %s (%d%%)\n",
		sum.TotalAmountPaid.StringFixed(2), sum.TotalAmountPayable.StringFixed(2), sum.CompletionPercentage)
	for _, txn := range view.Unmatched {
		_, _ = fmt.Fprintf(cli.out, "unmatched: %s %s (sem %d, inst %d)\n",
			txn.ID, txn.Amount.StringFixed(2), txn.Ref.SemesterNumber, txn.Ref.InstallmentNumber)
	}
	return nil
}

func (cli *commandLine) consistency(ctx context.Context, studentID string) error {
	reports := make(map[string]fee.ConsistencyReport)
	if studentID != "" {
		report, err := cli.feeSvc.CheckConsistency(ctx, studentID)
		if err != nil {
			return err
		}
		reports[studentID] = report
	} else {
		var err error
		if reports, err = cli.feeSvc.CheckAllConsistency(ctx); err != nil {
			return err
		}
	}

	ids := make([]string, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var drifted int
	for _, id := range ids {
		report := reports[id]
		if report.Consistent {
			_, _ = fmt.Fprintf(cli.out, "%s: ok\n", id)
			continue
		}
		drifted++
		_, _ = fmt.Fprintf(cli.out, "%s: %d mismatch(es)\n%s", id, len(report.Mismatches), report.Diff)
	}
	if drifted > 0 {
		return fmt.Errorf("%d schedule(s) drifted", drifted)
	}
	return nil
}

func (cli *commandLine) remind(ctx context.Context) error {
	n, err := cli.feeSvc.SendReminders(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d reminder(s) sent\n", n)
	return nil
}
