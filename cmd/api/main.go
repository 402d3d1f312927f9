package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/auth"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/config"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/httpx"
	kafkax "github.com/Arthur67-cmd/bita-tgethr-cafe/internal/kafka"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/logging"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/menu"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/orders"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/postgres"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.Init(cfg.ServiceName, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// Stores & services
	orderRepo := &orders.Repo{DB: db}
	menuRepo := &menu.Repo{DB: db, Redis: rdb}
	authSvc := &auth.Service{
		Users:    &auth.Repo{DB: db},
		Secret:   []byte(cfg.JWTSecret),
		TokenTTL: cfg.TokenTTL,
	}

	// Router & handlers
	router := httpx.NewRouter(authSvc.Middleware)

	oh := &httpx.OrdersHandler{
		Writer:   &orders.Writer{Store: orderRepo, Catalog: menuRepo},
		Machine:  &orders.Machine{Store: orderRepo},
		Store:    orderRepo,
		Producer: prod,
		Redis:    rdb,
		Service:  cfg.ServiceName,
	}
	oh.Register(router)
	(&httpx.MenuHandler{Repo: menuRepo}).Register(router)
	(&httpx.AuthHandler{Service: authSvc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "err", err)
	}

	stop() // cancels the producer loop so it flushes and exits
	prod.WaitClosed()
	log.Info("bye")
}
