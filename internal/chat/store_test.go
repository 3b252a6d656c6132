package chat

import (
	"reflect"
	"testing"
)

// TestStoreMemberOrderAndUniqueness verifies that members are kept in join
// order, that re-adding an existing member is a no-op, and that removal
// preserves the order of the remaining members.
func TestStoreMemberOrderAndUniqueness(t *testing.T) {
	store := NewStore(0)

	store.AddMember("r1", "alice")
	store.AddMember("r1", "bob")
	store.AddMember("r1", "carol")
	store.AddMember("r1", "alice")

	want := []string{"alice", "bob", "carol"}
	if got := store.Members("r1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Members() = %v, want %v", got, want)
	}

	got := store.RemoveMember("r1", "bob")
	want = []string{"alice", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RemoveMember() snapshot = %v, want %v", got, want)
	}

	// Removing an absent member or from an absent room is a no-op.
	if got := store.RemoveMember("r1", "bob"); !reflect.DeepEqual(got, want) {
		t.Errorf("repeat RemoveMember() snapshot = %v, want %v", got, want)
	}
	if got := store.RemoveMember("nope", "alice"); len(got) != 0 {
		t.Errorf("RemoveMember() on absent room = %v, want empty", got)
	}
}

// TestStoreEnsureRoomIdempotent verifies that EnsureRoom creates an empty
// room once and leaves existing state alone on repeat calls.
func TestStoreEnsureRoomIdempotent(t *testing.T) {
	store := NewStore(0)

	store.EnsureRoom("r1")
	store.AddMember("r1", "alice")
	store.EnsureRoom("r1")

	if got := store.Members("r1"); len(got) != 1 {
		t.Errorf("Members() after repeat EnsureRoom = %v, want [alice]", got)
	}
}

// TestStoreAppendMessage verifies that messages append in send order and that
// appending into an absent room reports failure without creating the room.
func TestStoreAppendMessage(t *testing.T) {
	store := NewStore(0)
	store.EnsureRoom("r1")

	if !store.AppendMessage("r1", Message{ID: "m1", Username: "alice", Text: "hi"}) {
		t.Fatal("AppendMessage() failed for existing room")
	}
	if !store.AppendMessage("r1", Message{ID: "m2", Username: "bob", Text: "yo"}) {
		t.Fatal("AppendMessage() failed for existing room")
	}
	if store.AppendMessage("nope", Message{ID: "m3", Username: "alice", Text: "lost"}) {
		t.Error("AppendMessage() succeeded for absent room")
	}

	msgs := store.Messages("r1")
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("Messages() = %v, want m1 then m2", msgs)
	}
	if store.Messages("nope") != nil {
		t.Error("Messages() for absent room should be nil")
	}
}

// TestStoreHistoryCap verifies that a nonzero cap trims the oldest messages
// on append.
func TestStoreHistoryCap(t *testing.T) {
	store := NewStore(2)
	store.EnsureRoom("r1")

	store.AppendMessage("r1", Message{ID: "m1", Username: "alice"})
	store.AppendMessage("r1", Message{ID: "m2", Username: "alice"})
	store.AppendMessage("r1", Message{ID: "m3", Username: "alice"})

	msgs := store.Messages("r1")
	if len(msgs) != 2 || msgs[0].ID != "m2" || msgs[1].ID != "m3" {
		t.Errorf("Messages() with cap 2 = %v, want [m2 m3]", msgs)
	}
}

// TestStoreEditMessage verifies the ownership rule: an edit succeeds only
// when both id and author match, leaves id and author untouched, and a wrong
// owner is indistinguishable from a missing id.
func TestStoreEditMessage(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		username string
		want     bool
	}{
		{name: "owner edits own message", id: "m1", username: "alice", want: true},
		{name: "non-owner is refused", id: "m1", username: "bob", want: false},
		{name: "unknown id is refused", id: "mX", username: "alice", want: false},
		{name: "absent room is refused", id: "m1", username: "alice", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(0)
			store.EnsureRoom("r1")
			store.AppendMessage("r1", Message{ID: "m1", Username: "alice", Text: "hi"})

			roomName := "r1"
			if tt.name == "absent room is refused" {
				roomName = "r2"
			}

			got := store.EditMessage(roomName, tt.id, tt.username, "edited")
			if got != tt.want {
				t.Fatalf("EditMessage() = %v, want %v", got, tt.want)
			}

			msgs := store.Messages("r1")
			if tt.want {
				if msgs[0].Text != "edited" || msgs[0].ID != "m1" || msgs[0].Username != "alice" {
					t.Errorf("edited message = %+v, want text changed, id and author kept", msgs[0])
				}
			} else if msgs[0].Text != "hi" {
				t.Errorf("refused edit still changed text to %q", msgs[0].Text)
			}
		})
	}
}

// TestStoreDeleteMessage verifies that delete removes exactly one matching
// message, keeps the relative order of the rest, and refuses non-owners and
// unknown ids identically.
func TestStoreDeleteMessage(t *testing.T) {
	store := NewStore(0)
	store.EnsureRoom("r1")
	store.AppendMessage("r1", Message{ID: "m1", Username: "alice", Text: "one"})
	store.AppendMessage("r1", Message{ID: "m2", Username: "bob", Text: "two"})
	store.AppendMessage("r1", Message{ID: "m3", Username: "alice", Text: "three"})

	if store.DeleteMessage("r1", "m2", "alice") {
		t.Error("DeleteMessage() let alice delete bob's message")
	}
	if store.DeleteMessage("r1", "mX", "alice") {
		t.Error("DeleteMessage() reported success for unknown id")
	}
	if !store.DeleteMessage("r1", "m1", "alice") {
		t.Fatal("DeleteMessage() refused the owner")
	}

	msgs := store.Messages("r1")
	if len(msgs) != 2 || msgs[0].ID != "m2" || msgs[1].ID != "m3" {
		t.Errorf("Messages() after delete = %v, want [m2 m3]", msgs)
	}
}

// TestStoreSnapshotsAreCopies verifies that mutating a returned snapshot does
// not leak into store state.
func TestStoreSnapshotsAreCopies(t *testing.T) {
	store := NewStore(0)
	store.AddMember("r1", "alice")
	store.AppendMessage("r1", Message{ID: "m1", Username: "alice", Text: "hi"})

	members := store.Members("r1")
	members[0] = "mallory"
	if got := store.Members("r1"); got[0] != "alice" {
		t.Error("Members() snapshot shares backing storage with the store")
	}

	msgs := store.Messages("r1")
	msgs[0].Text = "tampered"
	if got := store.Messages("r1"); got[0].Text != "hi" {
		t.Error("Messages() snapshot shares backing storage with the store")
	}
}
