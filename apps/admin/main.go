package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/edulab/publication/core"
	"github.com/edulab/publication/core/publication"
	emailsvc "github.com/edulab/publication/services/email"
	logsvc "github.com/edulab/publication/services/logger"
	"github.com/edulab/publication/storage/database"
	sqlxrepos "github.com/edulab/publication/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	svc := publication.NewService(
		sqlxrepos.NewPublicationRepository(dbx),
		sqlxrepos.NewFileRepository(dbx),
		sqlxrepos.NewOverrideRepository(dbx),
		sqlxrepos.NewMembershipProvider(dbx),
		sqlxrepos.NewImportSource(dbx),
		sqlxrepos.NewCompletionTracker(dbx),
		emailsvc.NewConsoleService(conf),
		svcLogger,
		conf,
	)

	// start CLI
	cli := commandLine{
		db:  db,
		svc: svc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
