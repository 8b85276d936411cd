package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/acadhub/backend/apps/api/echo"
	"github.com/acadhub/backend/core"
	"github.com/acadhub/backend/core/course"
	"github.com/acadhub/backend/core/enquiry"
	"github.com/acadhub/backend/core/finance"
	"github.com/acadhub/backend/core/sales"
	"github.com/acadhub/backend/core/store"
	"github.com/acadhub/backend/core/student"
	emailsvc "github.com/acadhub/backend/services/email"
	logsvc "github.com/acadhub/backend/services/logger"
	inmemstore "github.com/acadhub/backend/storage/entitystore/inmem"
	pgstore "github.com/acadhub/backend/storage/entitystore/postgres"
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

	// set up entity store
	st, err := setUpStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up entity store: %v", err), err)
	}
	defer func() {
		if err = st.Close(); err != nil {
			logger.Error("failed to close entity store", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	finSvc := finance.NewService(st)
	crsSvc := course.NewService(st)
	stuSvc := student.NewService(st, crsSvc, finSvc, mailSvc)
	enqSvc := enquiry.NewService(st, crsSvc)
	matSvc := sales.NewMaterialService(st)
	salesSvc := sales.NewService(st, matSvc, finSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		StudentSvc:  stuSvc,
		CourseSvc:   crsSvc,
		EnquirySvc:  enqSvc,
		FinanceSvc:  finSvc,
		SalesSvc:    salesSvc,
		MaterialSvc: matSvc,
	})
	server.Start()

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

func setUpStore(conf *core.Config) (store.Store, error) {
	switch conf.Store.Backend {
	case "postgres":
		if err := pgstore.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := pgstore.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = pgstore.Migrate(db.DB); err != nil {
			return nil, err
		}
		return pgstore.New(db), nil
	default:
		return inmemstore.Open(), nil
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
