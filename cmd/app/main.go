package main

import (
	"SignSync/internal/config"
	"SignSync/pkg/log"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	loaded, err := config.LoadDotEnv()
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Error loading .env file")
	}

	validator := config.NewValidator()
	env, err := config.ParseEnv(validator)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Invalid configuration")
	}

	logger := log.NewLogger(log.Options{
		Level: env.LogLevel,
		Dir:   env.LogDir,
		Env:   env.AppEnv,
	})
	logger.WithField("dotenv", loaded).Debug("Configuration loaded")

	model, err := config.NewClassifier(context.Background(), logger, env, config.DefaultArtifactSource)
	if err != nil {
		logger.Fatalf("Error loading classifier: %v", err)
	}

	fiberApp := config.NewFiber(logger, env)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithEnv(env),
		config.WithValidator(validator),
		config.WithClassifier(model),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	if err := server.RegisterHandler(); err != nil {
		logger.Fatalf("Error registering handlers: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}
