package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/lanshare/internal/server"
	"github.com/Tyrowin/lanshare/internal/transfer"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires storage, the hub and the HTTP server, then blocks until a signal
// or a server failure. Deferred cleanups run before main exits.
func run() error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	db, err := transfer.OpenIndexDB(cfg.BlobIndexDir)
	if err != nil {
		return fmt.Errorf("blob index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing blob index...")
		_ = db.Close()
	}()

	disk, err := transfer.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("upload directory unavailable: %w", err)
	}
	gateway := transfer.NewGateway(log, transfer.NewIndex(db, log), disk, cfg.MaxUploadSize)
	defer func() {
		log.Info("Removing shared files...")
		if err := gateway.Close(); err != nil {
			log.Warn("Shared file cleanup incomplete", "err", err)
		}
	}()

	hub := server.NewHub(server.NewRoom(cfg.MaxHistoryEntries), gateway, log)
	go hub.Run()

	handlers := server.NewHandlers(hub, gateway, cfg, log)
	httpServer := server.CreateServer(cfg.Port, server.NewRouter(handlers, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.StartServer(httpServer, log)
	}()

	printBanner(os.Stdout, cfg.Port, disk.Dir(), cfg.MaxUploadSize)

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			_ = hub.Shutdown(cfg.ShutdownTimeout)
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log); err != nil {
		log.Warn("HTTP server did not stop cleanly", "err", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn("Hub did not stop cleanly", "err", err)
	}
	log.Info("Server stopped")
	return nil
}
