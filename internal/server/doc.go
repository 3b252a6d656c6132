// Package server implements the HTTP and WebSocket transport for the Nexus
// chat relay.
//
// It upgrades connections, runs the per-client read/write pumps, and fans
// room notifications out through the Hub, which acts as the broadcast gateway
// for the chat engine in internal/chat. The implementation is organized into
// specialized files for configuration, hub management, clients, routing, and
// HTTP handlers to keep the codebase maintainable and testable as the project
// grows.
package server
