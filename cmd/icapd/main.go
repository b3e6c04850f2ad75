// Command icapd is the standalone ICAP daemon: a thin wrapper around
// internal/server that reads its configuration from the environment and
// never touches the operator CLI surface icapctl adds on top.
package main

import (
	"fmt"
	"log"
	"net"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"tokenshield-icapd/internal/adapt"
	"tokenshield-icapd/internal/config"
	"tokenshield-icapd/internal/ratelimit"
	"tokenshield-icapd/internal/server"
)

func main() {
	cfg := config.Load()

	handler, err := adapt.NewTokenVaultHandler(
		fmt.Sprintf("%s:%s@tcp(%s:3306)/%s", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBName),
		cfg.EncryptionKey,
		cfg.Debug,
	)
	if err != nil {
		log.Fatalf("Failed to start token vault handler: %v", err)
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
		log.Fatalf("Failed to listen on port %s: %v", cfg.Port, err)
	}
	defer listener.Close()

	log.Printf("TokenShield ICAP daemon listening on port %s", cfg.Port)
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}
		go srv.HandleConnection(conn)
	}
}
