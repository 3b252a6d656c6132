// Package server coordinates client registration, room-scoped event fan-out,
// and connection cleanup for the Nexus chat system via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/chat"
)

// clientFrame pairs a raw inbound frame with the client that sent it.
type clientFrame struct {
	client *Client
	frame  []byte
}

// Hub is the broadcast gateway: it owns the set of WebSocket clients, tracks
// which room each connection is subscribed to, and fans engine notifications
// out to every connection currently in the target room. All room and identity
// semantics live in the chat engine; the hub only moves frames.
type Hub struct {
	engine *chat.Engine

	clients map[*Client]bool
	rooms   map[string]map[*Client]struct{}

	frames     chan clientFrame
	register   chan *Client
	unregister chan *Client

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates and initializes a new Hub instance with its own chat engine,
// channels, and client maps. The returned Hub is ready to manage WebSocket
// connections once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		engine:     chat.NewEngine(chat.NewRegistry(), chat.NewStore(0)),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]struct{}),
		frames:     make(chan clientFrame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

var hub = NewHub()

// Engine returns the hub's chat engine.
func (h *Hub) Engine() *chat.Engine {
	return h.engine
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and inbound event dispatch. This method should be called in
// a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client registered from %s. Total clients: %d", client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.dropClient(client)

		case cf := <-h.frames:
			h.dispatch(cf.client, cf.frame)
		}
	}
}

// dispatch hands one inbound frame to the engine and applies the outcome. A
// panic while handling one client's frame is contained here so it cannot take
// down the shared loop.
func (h *Hub) dispatch(client *Client, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic dispatching frame from %s: %v", client.addr, r)
		}
	}()

	h.apply(client, h.engine.HandleFrame(client.id, frame))
}

// apply carries out an engine result for the originating client: subscription
// changes first, then room broadcasts, then any direct reply. Applying the
// subscription before broadcasting means a joiner sees its own join
// announcements and a leaver does not see its own departure.
func (h *Hub) apply(client *Client, res chat.Result) {
	if res.Unsubscribe != "" {
		h.unsubscribe(client, res.Unsubscribe)
	}
	if res.Subscribe != "" {
		h.subscribe(client, res.Subscribe)
	}

	for _, n := range res.Notifications {
		h.broadcastToRoom(n)
	}

	if res.Reply != nil {
		payload, err := json.Marshal(res.Reply)
		if err != nil {
			log.Printf("Error marshaling reply for %s: %v", client.addr, err)
			return
		}
		if !h.safeSend(client, payload) {
			h.dropClient(client)
		}
	}
}

func (h *Hub) subscribe(client *Client, roomName string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.rooms[roomName]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomName] = members
	}
	members[client] = struct{}{}
}

func (h *Hub) unsubscribe(client *Client, roomName string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.rooms[roomName]
	if !ok {
		return
	}
	delete(members, client)
	// Drop empty delivery sets so dead room names do not accumulate.
	if len(members) == 0 {
		delete(h.rooms, roomName)
	}
}

// broadcastToRoom marshals a notification once and sends it to every
// connection subscribed to the room, using a snapshot taken under the lock so
// delivery matches the member list the engine saw.
func (h *Hub) broadcastToRoom(n chat.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("Error marshaling %s notification for room %q: %v", n.Event, n.Room, err)
		return
	}

	targets := h.roomSnapshot(n.Room)

	var failed []*Client
	for _, client := range targets {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		log.Printf("Client from %s removed due to full send buffer", client.addr)
		h.dropClient(client)
	}
}

// roomSnapshot returns a thread-safe snapshot of the clients subscribed to a room.
func (h *Hub) roomSnapshot(roomName string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.rooms[roomName]
	clients := make([]*Client, 0, len(members))
	for client := range members {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// dropClient removes a client from the hub and tears down its chat state. It
// is safe to call more than once for the same client: the engine treats a
// second disconnect as a no-op, and an already-removed client only skips the
// channel close.
func (h *Hub) dropClient(client *Client) {
	h.mutex.Lock()
	_, registered := h.clients[client]
	if registered {
		delete(h.clients, client)
		client.closed = true
	}
	for roomName, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomName)
		}
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if registered {
		// Close the channel after releasing the lock
		close(client.send)
		log.Printf("Client unregistered from %s. Total clients: %d", client.addr, clientCount)
	}

	// Announce the departure to whoever is left in the room.
	res := h.engine.Disconnect(client.id)
	for _, n := range res.Notifications {
		h.broadcastToRoom(n)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Close all client connections
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
