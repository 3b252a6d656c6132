// Package chat defines the wire-level event and notification types shared by
// the room engine and the transport layer.
package chat

import "encoding/json"

// ConnID identifies a transport connection. It is opaque to this package and
// used only as a lookup key; the transport layer assigns it on connect and
// the binding dies with the connection.
type ConnID string

// Inbound event names.
const (
	EventJoin          = "join"
	EventSendMessage   = "send_message"
	EventDeleteMessage = "delete_message"
	EventEditMessage   = "edit_message"
	EventTyping        = "typing"
)

// Outbound event names.
const (
	EventUserJoined     = "user_joined"
	EventUpdateUsers    = "update_users"
	EventReceiveMessage = "receive_message"
	EventMessageDeleted = "message_deleted"
	EventMessageEdited  = "message_edited"
	EventUserTyping     = "user_typing"
	EventUserLeft       = "user_left"
	EventError          = "error"
)

// Envelope is the JSON frame clients send: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the payload of a "join" event.
type JoinPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// SendPayload is the payload of a "send_message" event. The username field is
// advisory from the client; authorship is recorded from the identity bound to
// the connection, so a stated username never grants ownership.
type SendPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// DeletePayload is the payload of a "delete_message" event.
type DeletePayload struct {
	Room string `json:"room"`
	ID   string `json:"id"`
}

// EditPayload is the payload of an "edit_message" event.
type EditPayload struct {
	Room    string `json:"room"`
	ID      string `json:"id"`
	NewText string `json:"newText"`
}

// TypingPayload is the payload of a "typing" event.
type TypingPayload struct {
	Room string `json:"room"`
}

// MessagePayload is broadcast as "receive_message".
type MessagePayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// MessageDeletedPayload is broadcast as "message_deleted".
type MessageDeletedPayload struct {
	ID string `json:"id"`
}

// MessageEditedPayload is broadcast as "message_edited".
type MessageEditedPayload struct {
	ID      string `json:"id"`
	NewText string `json:"newText"`
}

// ErrorPayload is sent as an "error" event to the connection whose frame
// could not be processed. It is never broadcast.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Notification is an outbound event addressed to every current member of a
// room. The transport marshals it as the frame delivered to clients; Room is
// delivery routing only and stays off the wire.
type Notification struct {
	Room  string `json:"-"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Result is the outcome of handling one inbound event: subscription changes
// the transport must apply for the originating connection, notifications to
// fan out, and an optional reply delivered to the origin connection only.
//
// Subscription changes are applied before notifications are delivered, so a
// joining connection receives its own join announcements and a leaving one
// does not receive its own departure.
type Result struct {
	Subscribe     string
	Unsubscribe   string
	Notifications []Notification
	Reply         *Notification
}

func errorReply(msg string) Result {
	return Result{Reply: &Notification{Event: EventError, Data: ErrorPayload{Message: msg}}}
}
