package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/dig"

	dig_container "github.com/trezcool/darasa/apps/api/di/dig"
	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	logsvc "github.com/trezcool/darasa/services/logger"
)

type app struct {
	dig.In

	Conf     *core.Config
	Logger   *logsvc.Logger
	CloseDB  dig_container.CloseDB
	Server   echoapi.Server
	Shutdown dig_container.ShutdownChan
}

func main() {
	c := dig_container.New()
	if err := c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(a app) {
	conf, logger := a.Conf, a.Logger

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	defer func() {
		if err := a.CloseDB(); err != nil {
			logger.Error("failed to close database", err)
		}
	}()
	defer func() { _ = logger.Sync() }()
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))
		serverErrors <- a.Server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-a.Shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}
