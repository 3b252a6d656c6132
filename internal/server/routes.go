// Package server wires HTTP handlers into a ServeMux for the Nexus chat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/Tyrowin/nexus-chat-server/internal/blob"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, WebSocket endpoint, file uploads, and
// the test page.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler)
	mux.HandleFunc("/test", TestPageHandler)
	mux.HandleFunc("/upload", UploadHandler)
	mux.HandleFunc(blob.URLPrefix, UploadsHandler)
	return mux
}
