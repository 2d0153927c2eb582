package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/config"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/datastore"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/logging"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/server"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults used if empty)")
	listenAddr := flag.String("listen", "", "TCP bind address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database file path (overrides config)")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	st, err := datastore.NewProviderFactory(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	slog.Info("starting icbd", "version", version.String())
	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
