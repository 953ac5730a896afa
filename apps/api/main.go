package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/mapato/apps/api/echo"
	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/account"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/notification"
	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
	emailsvc "github.com/trezcool/mapato/services/email"
	logsvc "github.com/trezcool/mapato/services/logger"
	"github.com/trezcool/mapato/storage/database"
	sqlxrepos "github.com/trezcool/mapato/storage/database/sqlx"
)

func main() {
	conf := core.Conf

	// =========================================================================
	// Set up Dependencies

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Fatal("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc)
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(db))
	subSvc := submission.NewService(sqlxrepos.NewSubmissionRepository(db))
	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db))
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db))

	splitRepo := sqlxrepos.NewSplitRepository(db)
	splitSvc := split.NewService(splitRepo, usrSvc, crsSvc, auditSvc, mailSvc, logger)
	calc := split.NewCalculator(splitRepo, subSvc, crsSvc, usrSvc, logger)

	acctSvc := account.NewService(sqlxrepos.NewAccountRepository(db), usrSvc, notifSvc, auditSvc, mailSvc, logger)

	// every submission save re-runs the income calculation
	subSvc.OnSaved(func(submissionID int) {
		if err := calc.Recalculate(submissionID); err != nil {
			logger.Error("recalculating income", err, submissionID)
		}
	})
	// a deleted submission takes its ledger rows with it
	subSvc.OnDeleted(func(submissionID int) {
		if err := splitRepo.DeleteIncomeBySubmissionID(submissionID); err != nil {
			logger.Error("clearing income for deleted submission", err, submissionID)
		}
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Logger:        logger,
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		SubmissionSvc: subSvc,
		SplitSvc:      splitSvc,
		Calculator:    calc,
		AccountSvc:    acctSvc,
		NotifSvc:      notifSvc,
		AuditSvc:      auditSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
