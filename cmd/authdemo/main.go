// authdemo wires the session core the way a host application would: build
// the App once at startup, resume background refresh if a session survives
// from the last run, and keep it alive until the process is told to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peregrine-app/authcore/app"
	"github.com/peregrine-app/authcore/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("authdemo failed")
	}
	log.Info().Msg("authdemo stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)
	displayAppname(cfg.AppName)

	application, err := app.New(cfg, log.Logger)
	if err != nil {
		return err
	}

	application.Start()
	if application.Store().IsLoggedIn() {
		email, _ := application.Store().Email()
		log.Info().Str("email", email).Msg("resumed existing session")
	} else {
		log.Info().Msg("no stored session, waiting for a sign-in")
	}

	waitForStopSignal()
	application.Stop()
	return nil
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
