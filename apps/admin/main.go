package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/storage/database"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	policy := fee.PolicyFromConfig(conf.Fees)
	if err := policy.Validate(); err != nil {
		logger.Fatal("invalid fees configuration", err)
	}

	// set up DB
	db, err := database.Open(context.Background(), conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(stdLogger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:     db.DB,
		feeSvc: fee.NewService(sqlxrepos.NewFeeRepository(db), fee.NewEngine(policy), validate, logger, mailSvc),
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait() // let queued emails go out
	}
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
