// Package chat implements the room state and event-broadcast core of the
// Nexus chat server: the identity registry binding connections to usernames,
// the room store holding members and message history, and the room engine
// that turns inbound client events into outbound room notifications.
//
// The package is transport-agnostic. Connections are opaque IDs supplied by
// the caller, and the engine returns the notifications to fan out rather
// than delivering them itself.
package chat
