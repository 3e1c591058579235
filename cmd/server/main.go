package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hostpulse/server/internal/config"
	"github.com/hostpulse/server/internal/mock"
	"github.com/hostpulse/server/internal/monitor"
	"github.com/hostpulse/server/internal/provider"
	"github.com/hostpulse/server/internal/sysinfo"
	"github.com/hostpulse/server/internal/telemetry"
	"github.com/hostpulse/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	mockMode := flag.Bool("mock", false, "Use synthetic metrics instead of the host")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	envPath := flag.String("env", "config.env", "Path to env file (PORT, REQUIRED_PW, AUTH_PW, HEARTBEAT_INTERVAL)")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(*envPath); err != nil {
		log.Fatalf("Failed to apply environment: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	var p provider.Provider
	if *mockMode {
		log.Printf("Starting in mock mode (pattern %s)", cfg.Mock.Pattern)
		p = mock.NewProvider(cfg.Mock.Pattern)
	} else {
		log.Println("Starting in real mode (host metrics)")
		p = provider.NewGopsutil()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	summarizer := sysinfo.NewSummarizer(p, cfg.Server.LogoPrefix)
	logBanner(ctx, cfg, summarizer)

	store := telemetry.NewStore()
	mon := monitor.New(cfg.Samplers, store, p)
	if err := mon.Start(ctx); err != nil {
		log.Fatalf("Failed to start monitor: %v", err)
	}

	server := ws.NewServer(cfg, store, summarizer)
	server.SetHealthSource(mon)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer close(stopped)
		<-sigCh
		log.Println("Shutting down...")

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Closing sessions: %v", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		if err := mon.Shutdown(shutdownCtx); err != nil {
			log.Printf("Monitor shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on %s (socket path %s)", addr, cfg.Session.Path)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	<-stopped
}

func logBanner(ctx context.Context, cfg *config.Config, summarizer *sysinfo.Summarizer) {
	log.Println("Config:")
	log.Printf("- PORT: %d", cfg.Server.Port)
	log.Printf("- REQUIRED_PW: %s", yesNo(cfg.Auth.Required))
	log.Printf("- AUTH_PW: %s", strings.Repeat("*", len(cfg.Auth.Password)))
	log.Printf("- HEARTBEAT_INTERVAL: %d", cfg.Session.HeartbeatInterval.Milliseconds())
	log.Printf("- push interval: %v (min %v)", cfg.Session.PushInterval, cfg.Session.MinPushInterval)

	summary, err := summarizer.Summary(ctx, sysinfo.SchemeDark)
	if err != nil {
		log.Printf("Host summary unavailable: %v", err)
		return
	}
	log.Printf("Host: %s %s (%d cores), %s memory, %s %s",
		summary.CPU.Manufacturer, summary.CPU.Brand, summary.CPU.Cores,
		humanize.IBytes(summary.Mem), summary.OS.Name, summary.OS.Release)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
