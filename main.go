package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediguide/internal/api"
	"mediguide/internal/app"
	"mediguide/internal/config"
	"mediguide/internal/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.BasicConfig.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("init application", "error", err)
	}

	handlers := api.NewHandler(application.Session)
	if cfg.BasicConfig.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.BasicConfig.ServerAddress,
		Handler: router,
	}
	go func() {
		lg.Info("server listening", "addr", srv.Addr, "provider", cfg.BasicConfig.ChatProvider, "index", cfg.Index.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown", "error", err)
	}
	if err := application.Close(shutdownCtx); err != nil {
		lg.Error("close application", "error", err)
	}
}
