package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthmonitor/internal/alert"
	"healthmonitor/internal/config"
	"healthmonitor/internal/monitor"
	"healthmonitor/internal/probe"
	"healthmonitor/internal/server"
	"healthmonitor/internal/store"
)

func main() {
	var configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("initialise store: %v", err)
	}
	defer st.Close()

	probes := buildProbes(cfg)
	log.Printf("Loaded %d probe(s) from %s", len(probes), *configPath)

	alerter := alert.New(cfg.WebhookURL, cfg.AlertCooldown.Std(), st)

	mon, err := monitor.New(monitor.Config{
		Interval:     cfg.CheckInterval.Std(),
		ProbeTimeout: cfg.ProbeTimeout.Std(),
		TickDeadline: cfg.TickDeadline.Std(),
	}, probes, st, alerter)
	if err != nil {
		log.Fatalf("initialise monitor: %v", err)
	}
	mon.Start()
	defer mon.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ListenAddr == "" {
		log.Printf("Monitoring every %s (no status API)", cfg.CheckInterval.Std())
		<-ctx.Done()
		return
	}

	srv := server.New(cfg.ListenAddr, st)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("Status API listening on %s (check interval %s)", cfg.ListenAddr, cfg.CheckInterval.Std())
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DatabaseDSN != "" {
		return store.NewMySQLStore(cfg.DatabaseDSN)
	}
	return store.NewFileStore(cfg.DataDirectory)
}

func buildProbes(cfg config.Config) []probe.Probe {
	var probes []probe.Probe
	if cfg.TargetEndpointURL != "" {
		probes = append(probes, probe.NewEndpointProbe("endpoint", cfg.TargetEndpointURL))
	}
	if len(cfg.ArtifactPaths) > 0 {
		probes = append(probes, probe.NewArtifactProbe("artifacts", cfg.ArtifactPaths))
	}
	if cfg.DependencyAddress != "" {
		probes = append(probes, probe.NewDependencyProbe("dependency", cfg.DependencyAddress, cfg.DependencyWarnAfter.Std()))
	}
	return probes
}
