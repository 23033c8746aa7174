package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/v8codecache/ircache/pkg/ircache/server"
)

var log = logrus.New()

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(logrus.DebugLevel)
	}

	opts := server.Options{
		SharedMemoryName: os.Getenv("IR_CACHE_SHM_NAME"),
		CacheFilePath:    os.Getenv("IR_CACHE_FILE"),
	}

	srv, err := server.New(opts, log)
	if err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	runErrors := make(chan error, 1)
	go func() {
		runErrors <- srv.Run()
	}()

	var runErr error
	select {
	case runErr = <-runErrors:
		if runErr != nil {
			log.Errorf("server loop error: %v", runErr)
		}
	case <-ctx.Done():
		log.Infoln("shutdown signal received")
		if err := srv.Shutdown(); err != nil {
			log.Errorf("shutdown error: %v", err)
		}
		runErr = <-runErrors
		if runErr != nil {
			log.Errorf("server loop error: %v", runErr)
		}
	}

	if err := srv.Close(); err != nil {
		log.Errorf("cleanup error: %v", err)
		runErr = err
	}

	if runErr != nil {
		os.Exit(1)
	}
	log.Infoln("ircache server stopped")
}
