package main

import (
	"context"
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/aihub/flora-search/app/bootstrap"
	"github.com/aihub/flora-search/app/router"
	"github.com/aihub/flora-search/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer func() {
		if err := app.Shutdown(); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
		logger.Sync()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.StartEventConsumer(ctx); err != nil {
		logger.Warn("Kafka consumer disabled", zap.Error(err))
	}

	router.Init(router.Deps{
		Searcher:       app.Engine,
		Catalog:        app.Store,
		MaxUploadBytes: app.Config.Server.MaxUploadBytes,
		DefaultResults: app.Config.Server.DefaultResults,
		Logger:         logger.Named("http"),
	})

	port, err := strconv.Atoi(app.Config.Server.Port)
	if err != nil {
		logger.Fatal("Invalid server port", zap.String("port", app.Config.Server.Port))
	}
	web.BConfig.AppName = app.Config.App.Name
	web.BConfig.Listen.HTTPPort = port

	logger.Info("Starting flora search server", zap.Int("port", port))
	web.Run()
}
