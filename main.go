package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"telemind/app/client/aiprovider"
	"telemind/app/client/telegram"
	"telemind/app/config"
	"telemind/app/service/engine"
	"telemind/app/service/ingest"
	"telemind/app/service/processor"
	"telemind/app/service/reminder"
	"telemind/app/store"
	"telemind/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, store.New)
	do.Provide(di, telegram.NewClient)
	do.Provide(di, aiprovider.NewClient)
	do.Provide(di, processor.New)
	do.Provide(di, ingest.New)
	do.Provide(di, reminder.New)
	do.Provide(di, engine.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go do.MustInvoke[*ingest.Service](di).Run(appCtx)

	go do.MustInvoke[*reminder.Service](di).Run(appCtx)

	go do.MustInvoke[*engine.Service](di).Run(appCtx)

	<-appCtx.Done()
}
