package chat

import (
	"encoding/json"
	"reflect"
	"testing"
)

func newTestEngine() *Engine {
	return NewEngine(NewRegistry(), NewStore(0))
}

func join(t *testing.T, e *Engine, conn ConnID, username, room string) Result {
	t.Helper()
	res := e.Join(conn, JoinPayload{Username: username, Room: room})
	if res.Reply != nil {
		t.Fatalf("Join(%s, %s) replied with error: %+v", username, room, res.Reply.Data)
	}
	return res
}

func sentMessageID(t *testing.T, res Result) string {
	t.Helper()
	for _, n := range res.Notifications {
		if n.Event == EventReceiveMessage {
			return n.Data.(MessagePayload).ID
		}
	}
	t.Fatal("no receive_message notification in result")
	return ""
}

func notifEvents(res Result) []string {
	events := make([]string, 0, len(res.Notifications))
	for _, n := range res.Notifications {
		events = append(events, n.Event)
	}
	return events
}

// TestEngineJoinAnnouncements verifies that join always emits user_joined and
// update_users to the joined room, subscribes the connection, and keeps the
// member list duplicate-free across repeated joins of the same pair.
func TestEngineJoinAnnouncements(t *testing.T) {
	e := newTestEngine()

	res := join(t, e, "c1", "alice", "r1")
	if res.Subscribe != "r1" {
		t.Errorf("Subscribe = %q, want r1", res.Subscribe)
	}
	want := []string{EventUserJoined, EventUpdateUsers}
	if got := notifEvents(res); !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}

	// Same (username, room) again: both announcements repeat, membership
	// stays single.
	res = join(t, e, "c1", "alice", "r1")
	if got := notifEvents(res); !reflect.DeepEqual(got, want) {
		t.Errorf("repeat join notifications = %v, want %v", got, want)
	}
	if res.Unsubscribe != "" {
		t.Errorf("repeat join Unsubscribe = %q, want none", res.Unsubscribe)
	}
	if got := e.Store().Members("r1"); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("Members() = %v, want [alice]", got)
	}
}

// TestEngineRejoinLeavesPriorRoom verifies the re-join rule: a second join
// from a bound connection leaves the old room first, announcing the departure
// there before the arrival in the new room.
func TestEngineRejoinLeavesPriorRoom(t *testing.T) {
	e := newTestEngine()
	join(t, e, "c1", "alice", "r1")

	res := join(t, e, "c1", "alice", "r2")
	if res.Unsubscribe != "r1" || res.Subscribe != "r2" {
		t.Errorf("Unsubscribe/Subscribe = %q/%q, want r1/r2", res.Unsubscribe, res.Subscribe)
	}

	want := []string{EventUserLeft, EventUpdateUsers, EventUserJoined, EventUpdateUsers}
	if got := notifEvents(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	if res.Notifications[0].Room != "r1" || res.Notifications[2].Room != "r2" {
		t.Errorf("departure targeted %q and arrival %q, want r1 and r2",
			res.Notifications[0].Room, res.Notifications[2].Room)
	}

	if got := e.Store().Members("r1"); len(got) != 0 {
		t.Errorf("old room members = %v, want empty", got)
	}
	if got := e.Store().Members("r2"); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("new room members = %v, want [alice]", got)
	}
}

// TestEngineSendRecordsBoundAuthor verifies that send records authorship from
// the connection-bound identity, ignoring the advisory username field, and
// that each send gets a fresh unique id.
func TestEngineSendRecordsBoundAuthor(t *testing.T) {
	e := newTestEngine()
	join(t, e, "c1", "alice", "r1")

	res := e.Send("c1", SendPayload{Room: "r1", Username: "mallory", Message: "hi"})
	if len(res.Notifications) != 1 || res.Notifications[0].Event != EventReceiveMessage {
		t.Fatalf("notifications = %v, want one receive_message", notifEvents(res))
	}
	payload := res.Notifications[0].Data.(MessagePayload)
	if payload.Username != "alice" {
		t.Errorf("recorded author = %q, want bound identity alice", payload.Username)
	}
	if payload.Message != "hi" {
		t.Errorf("recorded text = %q, want hi", payload.Message)
	}

	seen := map[string]bool{payload.ID: true}
	for i := 0; i < 50; i++ {
		id := sentMessageID(t, e.Send("c1", SendPayload{Room: "r1", Message: "x"}))
		if seen[id] {
			t.Fatalf("duplicate message id %q", id)
		}
		seen[id] = true
	}
}

// TestEngineSendPreconditions verifies the silent no-op cases: sending before
// join and sending into a room that does not exist.
func TestEngineSendPreconditions(t *testing.T) {
	e := newTestEngine()

	res := e.Send("c1", SendPayload{Room: "r1", Message: "early"})
	if len(res.Notifications) != 0 || res.Reply != nil {
		t.Errorf("send before join produced output: %+v", res)
	}

	join(t, e, "c1", "alice", "r1")
	res = e.Send("c1", SendPayload{Room: "ghost", Message: "lost"})
	if len(res.Notifications) != 0 || res.Reply != nil {
		t.Errorf("send into absent room produced output: %+v", res)
	}
	if e.Store().Messages("ghost") != nil {
		t.Error("send into absent room created the room")
	}
}

// TestEngineEditDeleteOwnership walks the cross-user scenario: bob cannot
// delete alice's message, alice can, and the deletion is announced once.
func TestEngineEditDeleteOwnership(t *testing.T) {
	e := newTestEngine()
	join(t, e, "a", "alice", "r1")
	join(t, e, "b", "bob", "r1")

	id := sentMessageID(t, e.Send("a", SendPayload{Room: "r1", Message: "hi"}))

	res := e.Delete("b", DeletePayload{Room: "r1", ID: id})
	if len(res.Notifications) != 0 {
		t.Fatalf("bob's delete of alice's message was announced: %v", notifEvents(res))
	}
	if len(e.Store().Messages("r1")) != 1 {
		t.Fatal("bob's delete removed alice's message")
	}

	res = e.Delete("a", DeletePayload{Room: "r1", ID: id})
	if len(res.Notifications) != 1 || res.Notifications[0].Event != EventMessageDeleted {
		t.Fatalf("alice's delete notifications = %v, want one message_deleted", notifEvents(res))
	}
	if got := res.Notifications[0].Data.(MessageDeletedPayload); got.ID != id {
		t.Errorf("message_deleted id = %q, want %q", got.ID, id)
	}
	if len(e.Store().Messages("r1")) != 0 {
		t.Error("message still present after owner delete")
	}
}

// TestEngineEditRoundTrip verifies that edit changes only the text, keeping
// id and author, and that a later delete removes exactly that message while
// preserving the order of the others.
func TestEngineEditRoundTrip(t *testing.T) {
	e := newTestEngine()
	join(t, e, "a", "alice", "r1")

	first := sentMessageID(t, e.Send("a", SendPayload{Room: "r1", Message: "one"}))
	second := sentMessageID(t, e.Send("a", SendPayload{Room: "r1", Message: "two"}))
	third := sentMessageID(t, e.Send("a", SendPayload{Room: "r1", Message: "three"}))

	res := e.Edit("a", EditPayload{Room: "r1", ID: second, NewText: "two!"})
	if len(res.Notifications) != 1 || res.Notifications[0].Event != EventMessageEdited {
		t.Fatalf("edit notifications = %v, want one message_edited", notifEvents(res))
	}

	msgs := e.Store().Messages("r1")
	if msgs[1].Text != "two!" || msgs[1].ID != second || msgs[1].Username != "alice" {
		t.Errorf("edited message = %+v, want text two!, id and author kept", msgs[1])
	}

	e.Delete("a", DeletePayload{Room: "r1", ID: second})
	msgs = e.Store().Messages("r1")
	if len(msgs) != 2 || msgs[0].ID != first || msgs[1].ID != third {
		t.Errorf("messages after delete = %v, want [%s %s]", msgs, first, third)
	}
}

// TestEngineTyping verifies the stateless typing relay, including the Unknown
// sentinel for connections that never joined.
func TestEngineTyping(t *testing.T) {
	e := newTestEngine()
	join(t, e, "a", "alice", "r1")

	res := e.Typing("a", TypingPayload{Room: "r1"})
	if len(res.Notifications) != 1 || res.Notifications[0].Event != EventUserTyping {
		t.Fatalf("typing notifications = %v, want one user_typing", notifEvents(res))
	}
	if res.Notifications[0].Data != "alice" {
		t.Errorf("user_typing data = %v, want alice", res.Notifications[0].Data)
	}

	res = e.Typing("stranger", TypingPayload{Room: "r1"})
	if res.Notifications[0].Data != Unknown.Username {
		t.Errorf("unbound user_typing data = %v, want %q", res.Notifications[0].Data, Unknown.Username)
	}
}

// TestEngineDisconnect verifies the departure flow: membership is removed,
// user_left and update_users are emitted once, and a second disconnect from
// the now-unbound connection is silent.
func TestEngineDisconnect(t *testing.T) {
	e := newTestEngine()
	join(t, e, "a", "alice", "r1")

	res := e.Disconnect("a")
	want := []string{EventUserLeft, EventUpdateUsers}
	if got := notifEvents(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("disconnect notifications = %v, want %v", got, want)
	}
	if res.Unsubscribe != "r1" {
		t.Errorf("Unsubscribe = %q, want r1", res.Unsubscribe)
	}
	if got := res.Notifications[1].Data.([]string); len(got) != 0 {
		t.Errorf("update_users after leave = %v, want empty", got)
	}
	if got := e.Store().Members("r1"); len(got) != 0 {
		t.Errorf("Members() after disconnect = %v, want empty", got)
	}

	res = e.Disconnect("a")
	if len(res.Notifications) != 0 || res.Unsubscribe != "" {
		t.Errorf("second disconnect produced output: %+v", res)
	}
}

// TestEngineHandleFrame exercises the dispatch boundary: well-formed frames
// route to their handlers, while malformed frames and unknown events produce
// an error reply and touch no state.
func TestEngineHandleFrame(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		wantErr   bool
		wantEvent string
	}{
		{
			name:      "valid join",
			frame:     `{"event":"join","data":{"username":"alice","room":"r1"}}`,
			wantEvent: EventUserJoined,
		},
		{
			name:    "not json",
			frame:   `{{{`,
			wantErr: true,
		},
		{
			name:    "unknown event",
			frame:   `{"event":"launch_missiles","data":{}}`,
			wantErr: true,
		},
		{
			name:    "join with missing fields",
			frame:   `{"event":"join","data":{"username":"alice"}}`,
			wantErr: true,
		},
		{
			name:    "join without data",
			frame:   `{"event":"join"}`,
			wantErr: true,
		},
		{
			name:    "send with wrong payload type",
			frame:   `{"event":"send_message","data":"nope"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine()
			res := e.HandleFrame("c1", []byte(tt.frame))

			if tt.wantErr {
				if res.Reply == nil || res.Reply.Event != EventError {
					t.Fatalf("expected error reply, got %+v", res)
				}
				if len(res.Notifications) != 0 {
					t.Errorf("error case still produced notifications: %v", notifEvents(res))
				}
				if got := e.Store().Members("r1"); len(got) != 0 {
					t.Errorf("error case mutated state: members = %v", got)
				}
				return
			}

			if res.Reply != nil {
				t.Fatalf("unexpected reply: %+v", res.Reply)
			}
			if len(res.Notifications) == 0 || res.Notifications[0].Event != tt.wantEvent {
				t.Errorf("notifications = %v, want first %s", notifEvents(res), tt.wantEvent)
			}
		})
	}
}

// TestNotificationWireShape pins the broadcast frame format: the room is
// routing metadata and must not leak onto the wire, while event and data use
// the exact contract field names.
func TestNotificationWireShape(t *testing.T) {
	n := Notification{
		Room:  "r1",
		Event: EventMessageEdited,
		Data:  MessageEditedPayload{ID: "m1", NewText: "hello"},
	}

	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	want := `{"event":"message_edited","data":{"id":"m1","newText":"hello"}}`
	if string(raw) != want {
		t.Errorf("frame = %s, want %s", raw, want)
	}
}
