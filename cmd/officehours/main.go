package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Raytar/officehours"
	"github.com/sirupsen/logrus"
)

var log = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.InfoLevel,
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else if cfg.LogLevel != "" {
		log.Warnf("Unknown log level %q, using %s", cfg.LogLevel, log.GetLevel())
	}

	srv, err := officehours.New(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Errorln("Failed to close server:", err)
		}
	}()

	// run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Errorln(err)
	}
}
