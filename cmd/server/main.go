package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Brownie44l1/animegan-api/internal/config"
	"github.com/Brownie44l1/animegan-api/internal/handlers"
	"github.com/Brownie44l1/animegan-api/internal/log"
	"github.com/Brownie44l1/animegan-api/internal/model"
	"github.com/Brownie44l1/animegan-api/internal/pipeline"
	"github.com/Brownie44l1/animegan-api/internal/tensor"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level)

	dir, err := filepath.Abs(cfg.Output.Dir)
	if err != nil {
		log.Error("failed to resolve output dir", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("failed to create output dir", "dir", dir, "error", err)
		os.Exit(1)
	}

	contract := cfg.Contract()
	modelPath := contract.ModelPath(dir)
	if _, err := os.Stat(modelPath); err != nil {
		log.Warn("model not found yet, predictions will fail until it is placed", "path", modelPath)
	}

	engine, err := model.NewORTEngine(contract, cfg.EngineOptions())
	if err != nil {
		log.Error("failed to create inference engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	resampler, err := tensor.NewResampler(cfg.Image.Filter)
	if err != nil {
		log.Error("failed to create resampler", "error", err)
		os.Exit(1)
	}

	adapter, err := pipeline.New(engine, contract, resampler, pipeline.WithPrefix(cfg.Output.Prefix))
	if err != nil {
		log.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	handler := handlers.NewHandler(adapter, dir, cfg.Server.MaxUploadBytes)
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("server starting",
		"port", cfg.Server.Port,
		"model", modelPath,
		"filter", cfg.Image.Filter,
		"reuse_sessions", cfg.Inference.ReuseSessions)
	log.Info("endpoints",
		"health", "GET /health",
		"predict", "POST /predict?width=W&height=H (raw BGRA body)",
		"predict_image", "POST /predict/image (multipart field 'image')",
		"outputs", "GET /outputs/{name}")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}
}
