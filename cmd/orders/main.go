package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	docs "payments/docs/orders"
	"payments/internal/orders/app"
	"payments/pkg/broker"
	"payments/pkg/config"
	"payments/pkg/db"
	"payments/pkg/httpserver"
	"payments/pkg/metrics"
	"payments/pkg/observability"

	"github.com/prometheus/client_golang/prometheus"
)

// @title           Orders Service API
// @version         1.0
// @description     Сервис заказов

// @BasePath /orders/api

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conf, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if conf.Postgres.MigrationsDir == "" {
		conf.Postgres.MigrationsDir = "resources/migrations/orders"
	}

	logger := observability.InitLogger(conf.LoggingLevel)

	logger.Infof("LOGGING_LEVEL = %s", conf.LoggingLevel)

	docs.SwaggerInfo.Host = conf.Server.SwaggerHost
	docs.SwaggerInfo.Schemes = []string{conf.Server.SwaggerSchema}

	m := metrics.New(prometheus.DefaultRegisterer)

	fiberServer := httpserver.NewFiber(m)

	store, err := db.NewPostgres(ctx, conf.Postgres)
	if err != nil {
		logger.Fatal(err)
	}

	rabbit := broker.NewRabbit(conf.Broker.Rabbit, logger, m)
	if err := rabbit.Connect(ctx); err != nil {
		logger.Fatal(err)
	}

	server, err := app.NewApp(ctx, &conf, logger, store, fiberServer, rabbit, m)
	if err != nil {
		logger.Fatal(err)
	}

	logger.Info("Orders service started successfully")
	logger.Info(fmt.Sprintf("Server config: %+v", conf.Server))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("error listening for server: %w \n", err)
				return
			}

			logger.Infof("server %v closed\n", conf.Server.Port)
		}
	}()

	//graceful shutdown
	osSignal := <-interrupt
	switch osSignal {
	case os.Interrupt:
		logger.Infof("%v Got SIGINT...", conf.Server.Port)
	case syscall.SIGTERM:
		logger.Infof("%v Got SIGTERM...", conf.Server.Port)
	}

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Fatalf("server %v forced to shutdown: %v", conf.Server.Port, err)
		return
	}

	store.Close()
	logger.Infof("postgres db connection closed")

	logger.Infof("server shutdown %v done", conf.Server.Port)
}
