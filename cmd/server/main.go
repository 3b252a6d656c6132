package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/nexus-chat-server/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting Nexus Chat Server...")

	// Load .env if present; environment variables win either way.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment and defaults")
	}

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	// Start the hub before accepting connections
	server.StartHub()

	// Setup routes
	mux := server.SetupRoutes()

	// Create and start server
	httpServer := server.CreateServer(config.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received %s, shutting down...", sig)
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := server.GetHub().Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}
}
