package chat

import "sync"

// Message is a chat message held in a room's log. ID is globally unique and
// immutable; Text is the only field that changes after creation.
type Message struct {
	ID       string
	Username string
	Text     string
}

type room struct {
	members  []string
	messages []Message
}

// Store owns all room state: per-room member lists kept in join order without
// duplicates, and per-room message logs kept in send order. All access is
// guarded by a single mutex; room counts and sizes are small enough that a
// coarse lock is not a bottleneck.
type Store struct {
	mu         sync.Mutex
	rooms      map[string]*room
	maxHistory int
}

// NewStore creates an empty store. maxHistory caps each room's message log,
// trimming the oldest entries on append; zero means unbounded.
func NewStore(maxHistory int) *Store {
	return &Store{
		rooms:      make(map[string]*room),
		maxHistory: maxHistory,
	}
}

// SetMaxHistory replaces the per-room message log cap. Zero disables it.
func (s *Store) SetMaxHistory(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxHistory = n
}

func (s *Store) ensureLocked(name string) *room {
	r, ok := s.rooms[name]
	if !ok {
		r = &room{}
		s.rooms[name] = r
	}
	return r
}

// EnsureRoom creates an empty room under the given name if one does not
// already exist. Idempotent.
func (s *Store) EnsureRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(name)
}

// AddMember appends the username to the room's member list unless it is
// already present, creating the room if needed. It returns a snapshot of the
// member list taken under the same lock, so callers broadcast a consistent
// view.
func (s *Store) AddMember(roomName, username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.ensureLocked(roomName)
	if !containsMember(r.members, username) {
		r.members = append(r.members, username)
	}
	return snapshotMembers(r.members)
}

// RemoveMember removes the username from the room's member list, preserving
// the order of the remaining members. It is a no-op if the room or username
// is absent and returns a snapshot of the resulting member list.
func (s *Store) RemoveMember(roomName, username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomName]
	if !ok {
		return []string{}
	}
	for i, m := range r.members {
		if m == username {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	return snapshotMembers(r.members)
}

// Members returns a snapshot of the room's member list in join order.
func (s *Store) Members(roomName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomName]
	if !ok {
		return []string{}
	}
	return snapshotMembers(r.members)
}

// AppendMessage appends a message to the room's log. It reports false without
// storing anything if the room does not exist; sending into a room nobody has
// joined is a silent no-op at the engine level.
func (s *Store) AppendMessage(roomName string, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomName]
	if !ok {
		return false
	}
	r.messages = append(r.messages, msg)
	if s.maxHistory > 0 && len(r.messages) > s.maxHistory {
		r.messages = r.messages[len(r.messages)-s.maxHistory:]
	}
	return true
}

// EditMessage sets the text of the first message in the room whose id and
// author both match. It reports whether an edit happened; a missing id and a
// non-owning caller are deliberately indistinguishable so existence cannot be
// probed.
func (s *Store) EditMessage(roomName, id, username, newText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomName]
	if !ok {
		return false
	}
	for i := range r.messages {
		if r.messages[i].ID == id && r.messages[i].Username == username {
			r.messages[i].Text = newText
			return true
		}
	}
	return false
}

// DeleteMessage removes the first message in the room whose id and author
// both match, preserving the relative order of the remaining messages. Same
// not-found/not-owner semantics as EditMessage.
func (s *Store) DeleteMessage(roomName, id, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomName]
	if !ok {
		return false
	}
	for i := range r.messages {
		if r.messages[i].ID == id && r.messages[i].Username == username {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Messages returns a snapshot of the room's message log in send order.
func (s *Store) Messages(roomName string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomName]
	if !ok {
		return nil
	}
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func containsMember(members []string, username string) bool {
	for _, m := range members {
		if m == username {
			return true
		}
	}
	return false
}

func snapshotMembers(members []string) []string {
	out := make([]string, len(members))
	copy(out, members)
	return out
}
