// Package main is the entry point for the OPC UA subscription engine
// process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexus-edge/opcua-subscription-engine/internal/adapter/opcua"
	"github.com/nexus-edge/opcua-subscription-engine/internal/command"
	"github.com/nexus-edge/opcua-subscription-engine/internal/condition"
	"github.com/nexus-edge/opcua-subscription-engine/internal/config"
	"github.com/nexus-edge/opcua-subscription-engine/internal/health"
	"github.com/nexus-edge/opcua-subscription-engine/internal/metrics"
	"github.com/nexus-edge/opcua-subscription-engine/internal/subscription"
	"github.com/nexus-edge/opcua-subscription-engine/pkg/logging"
)

const (
	serviceName    = "opcua-subscription-engine"
	serviceVersion = "1.0.0"
)

func main() {
	logger := logging.New(serviceName, serviceVersion)
	logger.Info().Msg("starting opcua subscription engine")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logging.NewWithLevel(serviceName, serviceVersion, cfg.Logging.Level, cfg.Logging.Format)
	logger.Info().Str("env", cfg.Environment).Msg("configuration loaded")

	metricsRegistry := metrics.NewRegistry()

	// Subscriptions count sent notifications and keep-alives themselves, so
	// the engine gets no registry; giving it one would count each send twice.
	publishEngine := opcua.NewLoggingPublishEngine(nil, logger)
	guardedEngine := subscription.NewGuardedPublishEngine(publishEngine, "publish-engine", logger)

	directory := opcua.NewDirectory()

	factory := func(req subscription.CreateMonitoredItemRequest, id uint32, revisedSamplingInterval float64, revisedQueueSize uint32) subscription.MonitoredItem {
		return opcua.NewSampledItem(req, id, revisedSamplingInterval, revisedQueueSize)
	}

	manager := subscription.NewManager(guardedEngine, directory, factory, metricsRegistry, logger)

	conditionRegistry := condition.NewRegistry()

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(cfg.Command.BrokerURL).
		SetClientID(cfg.Command.ClientID).
		SetConnectTimeout(cfg.Command.WriteTimeout)
	mqttClient := mqtt.NewClient(mqttOpts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal().Err(token.Error()).Msg("failed to connect to mqtt broker")
	}
	defer mqttClient.Disconnect(250)

	commandHandler := command.NewHandler(mqttClient, conditionRegistry, command.Config{
		TopicPrefix:           cfg.Command.TopicPrefix,
		QoS:                   cfg.Command.QoS,
		Timeout:               cfg.Command.WriteTimeout,
		EnableAcknowledgement: true,
	}, logger)
	if err := commandHandler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start command handler")
	}

	healthChecker := health.NewChecker(manager, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.HealthHandler)
	mux.HandleFunc("/health/live", healthChecker.LivenessHandler)
	mux.HandleFunc("/health/ready", healthChecker.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("starting http server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	manager.Shutdown()

	if err := commandHandler.Stop(); err != nil {
		logger.Error().Err(err).Msg("error stopping command handler")
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down http server")
	}

	logger.Info().Msg("opcua subscription engine shutdown complete")
}
