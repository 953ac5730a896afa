package main

import (
	"log"
	"os"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
	emailsvc "github.com/trezcool/mapato/services/email"
	logsvc "github.com/trezcool/mapato/services/logger"
	"github.com/trezcool/mapato/storage/database"
	sqlxrepos "github.com/trezcool/mapato/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	db, err := database.Open(core.Conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	appLogger := logsvc.NewRollbarLogger(logger, core.Conf)
	appLogger.Enable(false) // CLI runs log locally only

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleService())
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(db))
	subSvc := submission.NewService(sqlxrepos.NewSubmissionRepository(db))
	calc := split.NewCalculator(sqlxrepos.NewSplitRepository(db), subSvc, crsSvc, usrSvc, appLogger)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		calc:    calc,
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
