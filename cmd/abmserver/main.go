// Package main is the entry point for the token-economy simulation server:
// it loads configuration, wires the job queue and streaming layer, and
// serves the HTTP/WebSocket API until an interrupt or termination signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tokenlab/abm-engine/internal/apiserver"
	"github.com/tokenlab/abm-engine/internal/config"
	"github.com/tokenlab/abm-engine/internal/jobs"
	"github.com/tokenlab/abm-engine/internal/logging"
	"github.com/tokenlab/abm-engine/internal/streaming"
)

func main() {
	host := flag.String("host", "0.0.0.0", "Server host")
	port := flag.Int("port", 8080, "Server port")
	configPath := flag.String("config", "./config.yaml", "Path to simulation config file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	maxConcurrentJobs := flag.Int("max-jobs", 5, "Maximum concurrently running jobs")
	jobTTL := flag.Duration("job-ttl", 24*time.Hour, "TTL for completed job records")
	cacheTTL := flag.Duration("cache-ttl", 2*time.Hour, "TTL for cached simulation results")
	flag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting ABM simulation server",
		zap.String("host", *host),
		zap.Int("port", *port),
		zap.String("config", *configPath),
	)

	// The base config is used only to validate the file is readable at
	// startup; each request builds its own config.SimulationConfig from the
	// submitted payload.
	if _, err := config.Load(*configPath); err != nil {
		logger.Warn("Failed to load base config file, continuing with request-supplied configs only",
			zap.String("path", *configPath),
			zap.Error(err),
		)
	}

	queue := jobs.NewQueue(jobs.Config{
		MaxConcurrentJobs: *maxConcurrentJobs,
		JobTTL:            *jobTTL,
		CacheTTL:          *cacheTTL,
		Logger:            logger,
	})
	if err := queue.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("Failed to register job queue metrics", zap.Error(err))
	}

	streamer := streaming.NewStreamer(queue)

	server := apiserver.NewServer(apiserver.Config{
		Logger:       logger,
		Queue:        queue,
		Streamer:     streamer,
		Host:         *host,
		Port:         *port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully",
		zap.String("http", fmt.Sprintf("http://%s/api/v1", net.JoinHostPort(*host, strconv.Itoa(*port)))),
		zap.String("ws", fmt.Sprintf("ws://%s/ws/jobs/{id}", net.JoinHostPort(*host, strconv.Itoa(*port)))),
	)

	<-sigChan
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	queue.Shutdown()

	logger.Info("Server stopped")
}
