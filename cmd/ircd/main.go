// Command ircd starts the daemon: load and validate the YAML
// configuration, wire the Server, and run until an interrupt or
// terminate signal triggers graceful shutdown.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/eaescob/go-ircd/internal/audit"
	"github.com/eaescob/go-ircd/internal/config"
	"github.com/eaescob/go-ircd/internal/server"
)

func main() {
	configPath := flag.String("config", "ircd.yaml", "path to the YAML configuration file")
	metricsPort := flag.Int("metrics-port", 0, "port to serve Prometheus metrics on (0 disables)")
	flag.Parse()

	log := logrus.New()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}

	if *metricsPort != 0 {
		metricsCfg := audit.DefaultMetricsServerConfig()
		metricsCfg.Port = *metricsPort
		audit.StartMetricsServer(metricsCfg)
		log.WithField("port", *metricsPort).Info("metrics server started")
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to construct server")
	}

	if err := srv.Start(); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
	log.WithField("server_name", cfg.Server.Name).Info("ircd started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	if err := srv.Stop(); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
}

func loadConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
