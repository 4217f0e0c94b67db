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
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/karibu/apps/api/echo"
	"github.com/trezcool/karibu/core"
	"github.com/trezcool/karibu/core/event"
	"github.com/trezcool/karibu/core/registry"
	dispatchsvc "github.com/trezcool/karibu/services/dispatch"
	emailsvc "github.com/trezcool/karibu/services/email"
	logsvc "github.com/trezcool/karibu/services/logger"
	webhooksvc "github.com/trezcool/karibu/services/webhook"
	"github.com/trezcool/karibu/storage/database"
	markerstore "github.com/trezcool/karibu/storage/markers"
	blobstore "github.com/trezcool/karibu/storage/registry/blob"
	filestore "github.com/trezcool/karibu/storage/registry/file"
	pgstore "github.com/trezcool/karibu/storage/registry/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up registry storage
	store, db, err := setUpRegistryStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up registry store: %v", err), err)
	}
	if db != nil {
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing database: %v", err), err)
			}
		}()
	}

	// set up services
	var webhookSvc core.WebhookService
	var mailSvc core.EmailService
	if conf.Debug {
		webhookSvc = webhooksvc.NewConsoleService()
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		webhookSvc = webhooksvc.NewService()
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	dispatchSvc := dispatchsvc.NewService(conf)
	regSvc := registry.NewService(store)

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

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Announcement Scheduler

	if conf.Announce.Enabled {
		scheduler := event.NewScheduler(event.SchedulerDeps{
			EventDate:   conf.Announce.EventDate,
			EventStart:  conf.Announce.EventStart,
			GraceWindow: conf.Announce.GraceWindow,
			BaseURL:     conf.Announce.SelfBaseURL,
			Markers:     markerstore.NewFileStore(conf.Markers.FilePath),
			Logger:      logger,
		})
		scheduler.Start()
		defer scheduler.Stop()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		RegistrySvc: regSvc,
		WebhookSvc:  webhookSvc,
		DispatchSvc: dispatchSvc,
		EmailSvc:    mailSvc,
		Validate:    validate,
		Translator:  translator,
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

// setUpRegistryStore selects the registry backend: an explicit setting wins,
// otherwise presence of a blob token, then of a database name, decides; the
// JSON file is the default. The blob store reads through to the local file
// store when the remote is unreachable.
func setUpRegistryStore(conf *core.Config) (registry.Store, *sqlx.DB, error) {
	switch conf.RegistryBackend() {
	case core.RegistryBackendBlob:
		local := filestore.NewStore(conf.Registry.FilePath)
		return blobstore.NewStore(conf.Blob.BaseURL, conf.Blob.Token, conf.Blob.Key, local), nil, nil

	case core.RegistryBackendPostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			return nil, nil, err
		}
		return pgstore.NewStore(db), db, nil
	}
	return filestore.NewStore(conf.Registry.FilePath), nil, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
