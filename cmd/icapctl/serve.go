package main

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/go-sql-driver/mysql"

	"tokenshield-icapd/internal/adapt"
	"tokenshield-icapd/internal/config"
	"tokenshield-icapd/internal/ratelimit"
	"tokenshield-icapd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ICAP daemon in the foreground",
	Long:  "Starts listening for ICAP connections and adapting REQMOD/RESPMOD bodies through the token vault, using the same environment-variable configuration as icapd.",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminSecret, _ := cmd.Flags().GetString("admin-secret")
		return runServe(adminSecret)
	},
}

func init() {
	serveCmd.Flags().String("admin-secret", "", "admin secret required to start the daemon, when ICAP_ADMIN_SECRET_HASH is configured")
}

func runServe(adminSecret string) error {
	cfg := config.Load()
	if !cfg.VerifyAdminSecret(adminSecret) {
		return fmt.Errorf("admin secret rejected")
	}

	handler, err := adapt.NewTokenVaultHandler(
		fmt.Sprintf("%s:%s@tcp(%s:3306)/%s", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBName),
		cfg.EncryptionKey,
		cfg.Debug,
	)
	if err != nil {
		return fmt.Errorf("failed to start token vault handler: %w", err)
	}
	defer handler.Close()

	limiter := ratelimit.New(
		cfg.RateLimitAttempts,
		time.Duration(cfg.RateLimitWindowS)*time.Second,
		time.Duration(cfg.RateLimitBlockS)*time.Second,
	)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Cleanup()
		}
	}()

	srv := &server.Server{
		Limits: server.Limits{
			MaxInitialLine: cfg.MaxInitialLineLength,
			MaxICAPHeader:  cfg.MaxICAPHeaderSize,
			MaxChunk:       cfg.MaxChunkSize,
		},
		Handler: handler,
		Limiter: limiter,
		Debug:   cfg.Debug,
	}

	listener, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.Port, err)
	}
	defer listener.Close()

	log.Printf("icapd listening on port %s", cfg.Port)
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("ERROR: failed to accept connection: %v", err)
			continue
		}
		go srv.HandleConnection(conn)
	}
}
