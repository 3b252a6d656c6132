package chat

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Engine is the behavioral core of the relay. It resolves the caller's
// identity, applies the operation against the room store, and returns the
// notifications the transport should fan out. It never delivers anything
// itself and never panics on client input.
//
// Authorization for edit and delete comes from the identity bound to the
// connection, never from a username field in the payload, so a client cannot
// mutate another user's messages by stating a different name. The same rule
// applies to authorship on send.
type Engine struct {
	registry *Registry
	store    *Store
}

// NewEngine creates an engine over the given registry and store.
func NewEngine(registry *Registry, store *Store) *Engine {
	return &Engine{registry: registry, store: store}
}

// Registry returns the engine's identity registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Store returns the engine's room store.
func (e *Engine) Store() *Store { return e.store }

// HandleFrame parses a raw client frame and applies the event it carries.
// Malformed frames and unknown events produce an error reply for the origin
// connection and leave all state untouched.
func (e *Engine) HandleFrame(conn ConnID, frame []byte) Result {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return errorReply("invalid frame: expected {\"event\", \"data\"}")
	}

	switch env.Event {
	case EventJoin:
		var p JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errorReply("invalid join payload")
		}
		return e.Join(conn, p)
	case EventSendMessage:
		var p SendPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errorReply("invalid send_message payload")
		}
		return e.Send(conn, p)
	case EventDeleteMessage:
		var p DeletePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errorReply("invalid delete_message payload")
		}
		return e.Delete(conn, p)
	case EventEditMessage:
		var p EditPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errorReply("invalid edit_message payload")
		}
		return e.Edit(conn, p)
	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return errorReply("invalid typing payload")
		}
		return e.Typing(conn, p)
	default:
		return errorReply("unknown event")
	}
}

// Join binds the connection to (username, room), creates the room if needed,
// and adds the user to its member list. A connection that was already joined
// elsewhere leaves its previous room first, so the old room's member list
// never keeps a ghost entry. The join announcements are always emitted, even
// when the username was already a member.
func (e *Engine) Join(conn ConnID, p JoinPayload) Result {
	if p.Username == "" || p.Room == "" {
		return errorReply("join requires username and room")
	}

	res := Result{Subscribe: p.Room}

	if prior, ok := e.registry.Lookup(conn); ok && prior != (Identity{Username: p.Username, Room: p.Room}) {
		members := e.store.RemoveMember(prior.Room, prior.Username)
		res.Unsubscribe = prior.Room
		res.Notifications = append(res.Notifications,
			Notification{Room: prior.Room, Event: EventUserLeft, Data: prior.Username},
			Notification{Room: prior.Room, Event: EventUpdateUsers, Data: members},
		)
	}

	e.registry.Bind(conn, p.Username, p.Room)
	e.store.EnsureRoom(p.Room)
	members := e.store.AddMember(p.Room, p.Username)

	res.Notifications = append(res.Notifications,
		Notification{Room: p.Room, Event: EventUserJoined, Data: p.Username},
		Notification{Room: p.Room, Event: EventUpdateUsers, Data: members},
	)
	return res
}

// Send appends a message to the room's log under a fresh id and announces it.
// Authorship is the connection-bound username; sending before join or into a
// room that does not exist is a silent no-op.
func (e *Engine) Send(conn ConnID, p SendPayload) Result {
	if p.Room == "" {
		return errorReply("send_message requires room")
	}

	identity, ok := e.registry.Lookup(conn)
	if !ok {
		return Result{}
	}

	msg := Message{
		ID:       uuid.NewString(),
		Username: identity.Username,
		Text:     p.Message,
	}
	if !e.store.AppendMessage(p.Room, msg) {
		return Result{}
	}

	return Result{Notifications: []Notification{{
		Room:  p.Room,
		Event: EventReceiveMessage,
		Data:  MessagePayload{ID: msg.ID, Username: msg.Username, Message: msg.Text},
	}}}
}

// Edit replaces the text of a message the caller owns. Unknown ids and
// messages owned by someone else no-op identically, with no notification.
func (e *Engine) Edit(conn ConnID, p EditPayload) Result {
	if p.Room == "" || p.ID == "" {
		return errorReply("edit_message requires room and id")
	}

	identity, _ := e.registry.Lookup(conn)
	if !e.store.EditMessage(p.Room, p.ID, identity.Username, p.NewText) {
		return Result{}
	}

	return Result{Notifications: []Notification{{
		Room:  p.Room,
		Event: EventMessageEdited,
		Data:  MessageEditedPayload{ID: p.ID, NewText: p.NewText},
	}}}
}

// Delete removes a message the caller owns, with the same no-op semantics as
// Edit for unknown ids and foreign messages.
func (e *Engine) Delete(conn ConnID, p DeletePayload) Result {
	if p.Room == "" || p.ID == "" {
		return errorReply("delete_message requires room and id")
	}

	identity, _ := e.registry.Lookup(conn)
	if !e.store.DeleteMessage(p.Room, p.ID, identity.Username) {
		return Result{}
	}

	return Result{Notifications: []Notification{{
		Room:  p.Room,
		Event: EventMessageDeleted,
		Data:  MessageDeletedPayload{ID: p.ID},
	}}}
}

// Typing relays a typing indicator to the room. Nothing is stored; unbound
// connections relay under the Unknown sentinel, matching the identity used
// for any other malformed sequence.
func (e *Engine) Typing(conn ConnID, p TypingPayload) Result {
	if p.Room == "" {
		return errorReply("typing requires room")
	}

	identity, _ := e.registry.Lookup(conn)
	return Result{Notifications: []Notification{{
		Room:  p.Room,
		Event: EventUserTyping,
		Data:  identity.Username,
	}}}
}

// Disconnect tears down the connection's binding and room membership. A
// connection that never joined produces no notifications, and a second
// disconnect for the same connection is a no-op.
func (e *Engine) Disconnect(conn ConnID) Result {
	prior, ok := e.registry.Unbind(conn)
	if !ok {
		return Result{}
	}

	members := e.store.RemoveMember(prior.Room, prior.Username)
	return Result{
		Unsubscribe: prior.Room,
		Notifications: []Notification{
			{Room: prior.Room, Event: EventUserLeft, Data: prior.Username},
			{Room: prior.Room, Event: EventUpdateUsers, Data: members},
		},
	}
}
