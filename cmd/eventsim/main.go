package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	simsignal "fleetpulse/internal/infrastructure/signal"
	"fleetpulse/pkg/config"
	"fleetpulse/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// .env feeds the FLEETPULSE_* overrides applied by config.Load
	envErr := godotenv.Load()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/root/configs/config.yaml",
		"config.yaml",
	}

	cfg, cfgPath, err := config.LoadFirst(configPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	// eventsim token [subject] prints a bearer token for the dashboard.
	if len(os.Args) > 1 && os.Args[1] == "token" {
		subject := "dashboard"
		if len(os.Args) > 2 {
			subject = os.Args[2]
		}
		token, err := simsignal.IssueToken(cfg.Simulator.JWTSecret, subject, cfg.Simulator.TokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to issue token:", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if envErr != nil {
		log.Debugw("no .env file loaded, using process environment", "error", envErr)
	}

	wsServer := simsignal.NewWebSocketServer(cfg.Simulator.JWTSecret, log)
	emitter := simsignal.NewEmitter(wsServer, cfg.Simulator.Drivers, cfg.Simulator.EmitInterval, time.Now().UnixNano(), log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	mux.HandleFunc("/health", wsServer.HealthCheck)

	srv := &http.Server{
		Addr:    cfg.Simulator.Address,
		Handler: mux,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go emitter.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting FleetPulse event simulator on %s", cfg.Simulator.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Simulator failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	cancel()
	wsServer.DropAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during simulator shutdown", "error", err)
	}
	log.Info("FleetPulse event simulator stopped")
}
