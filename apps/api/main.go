package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"net/mail"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	echoapi "github.com/optioeducation/optio/apps/api/echo"
	"github.com/optioeducation/optio/core"
	"github.com/optioeducation/optio/core/badge"
	"github.com/optioeducation/optio/core/credit"
	"github.com/optioeducation/optio/core/generator"
	"github.com/optioeducation/optio/core/learning"
	"github.com/optioeducation/optio/core/observer"
	"github.com/optioeducation/optio/core/quest"
	"github.com/optioeducation/optio/core/user"
	emailsvc "github.com/optioeducation/optio/services/email"
	logsvc "github.com/optioeducation/optio/services/logger"
	"github.com/optioeducation/optio/storage/database"
	"github.com/optioeducation/optio/storage/database/sqlxrepos"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	sdb := sqlx.NewDb(db, conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	creditSvc := credit.NewService(sqlxrepos.NewCreditRepository(sdb))
	learningSvc := learning.NewService(sqlxrepos.NewLearningRepository(sdb))
	badgeSvc := badge.NewService(sqlxrepos.NewBadgeRepository(sdb), creditSvc, learningSvc, mailSvc)
	questSvc := quest.NewService(sqlxrepos.NewQuestRepository(sdb), creditSvc, learningSvc, badgeSvc)
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(sdb), mailSvc, conf)
	observerSvc := observer.NewService(
		sqlxrepos.NewObserverRepository(sdb),
		usrSvc, questSvc, badgeSvc, creditSvc, learningSvc, mailSvc, conf,
	)
	generatorSvc := generator.NewService(generator.NewClient(conf.LLM, logger), questSvc, conf.LLM, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	quest.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Observer Digest Scheduler

	sched := cron.New()
	if _, err = sched.AddFunc(conf.ObserverDigestSpec, func() {
		if err := sendObserverDigests(observerSvc, mailSvc, logger); err != nil {
			logger.Error(fmt.Sprintf("observer digest run failed: %v", err), err)
		}
	}); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling observer digest: %v", err), err)
	}
	sched.Start()
	defer sched.Stop()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,

			UserSvc:      usrSvc,
			QuestSvc:     questSvc,
			BadgeSvc:     badgeSvc,
			CreditSvc:    creditSvc,
			LearningSvc:  learningSvc,
			ObserverSvc:  observerSvc,
			GeneratorSvc: generatorSvc,
		},
	)

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

func setUpDB(conf *core.Config) (*sql.DB, error) {
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

// sendObserverDigests mails every accepted observer a summary of their
// student's activity over the past week.
func sendObserverDigests(observerSvc observer.Service, mailSvc core.EmailService, logger core.Logger) error {
	ctx := context.Background()
	links, err := observerSvc.AcceptedLinks(ctx)
	if err != nil {
		return err
	}

	since := time.Now().UTC().Add(-7 * 24 * time.Hour)
	for _, link := range links {
		progress, err := observerSvc.ProgressOf(ctx, link.StudentID, since)
		if err != nil {
			logger.Error(fmt.Sprintf("assembling digest for student %s: %v", link.StudentID, err), err)
			continue
		}
		mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Address: link.ObserverEmail}},
			Subject:      fmt.Sprintf("Weekly progress: %s", progress.StudentName),
			TemplateName: "weekly-digest",
			TemplateData: progress,
		})
	}
	logger.Info(fmt.Sprintf("observer digest sent for %d link(s)", len(links)))
	return nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
