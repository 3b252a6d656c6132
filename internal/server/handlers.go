// Package server exposes HTTP handlers, including WebSocket upgrades, the
// upload endpoint, health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/nexus-chat-server/internal/blob"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance, and registers it with the hub.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, hub, r.RemoteAddr)

	// Register the client with the hub; the hub will launch the pump goroutines.
	client.hub.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Nexus chat server is running!")
}

// UploadHandler accepts a single multipart file upload, stores it through the
// blob store, and returns the URL it will be served from. The chat core never
// sees the file; clients embed the returned URL in message content themselves.
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "upload endpoint only accepts POST requests")
		return
	}

	cfg := currentConfig()

	// Cap the whole request body; the extra megabyte covers multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "request must carry a multipart \"file\" field")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Error closing upload stream from %s: %v", r.RemoteAddr, err)
		}
	}()

	store := blob.NewStore(cfg.UploadDir, cfg.MaxUploadSize)
	url, err := store.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, blob.ErrTooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "file exceeds maximum upload size")
			return
		}
		log.Printf("Error storing upload from %s: %v", r.RemoteAddr, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	log.Printf("Stored upload %q from %s as %s", header.Filename, r.RemoteAddr, url)
	writeJSON(w, http.StatusOK, UploadResponse{URL: url})
}

// UploadsHandler serves previously uploaded files back by name. Names are
// sanitized through the blob store, so path traversal in the URL cannot reach
// outside the upload directory.
func UploadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, blob.URLPrefix)
	if name == "" || strings.HasSuffix(r.URL.Path, "/") {
		http.NotFound(w, r)
		return
	}

	cfg := currentConfig()
	store := blob.NewStore(cfg.UploadDir, 0)
	http.ServeFile(w, r, store.FilePath(name))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// TestPageHandler serves an HTML test page for exercising the chat protocol.
// It provides a simple web interface to join a room, send, edit, and delete
// messages, and watch presence updates in real time.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Nexus Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #users { color: #555; margin: 10px 0; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .msg button { padding: 1px 6px; margin-left: 6px; font-size: 11px; }
    </style>
</head>
<body>
    <h1>Nexus Chat Test</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room">
        <button onclick="joinRoom()">Join</button>
    </div>
    <div id="users">Users: -</div>
    <div id="log"></div>
    <div>
        <input type="text" id="text" placeholder="Type a message..." size="40" oninput="sendTyping()">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        const log = document.getElementById('log');

        function emit(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: event, data: data}));
            }
        }

        function addLine(html, id) {
            const div = document.createElement('div');
            div.className = 'msg';
            if (id) div.dataset.id = id;
            div.innerHTML = html;
            log.appendChild(div);
            log.scrollTop = log.scrollHeight;
        }

        function joinRoom() {
            const username = document.getElementById('username').value.trim();
            const room = document.getElementById('room').value.trim();
            if (!username || !room) return;

            if (!ws) {
                ws = new WebSocket('ws://' + location.host + '/ws');
                ws.onopen = () => emit('join', {username: username, room: room});
                ws.onmessage = (e) => handleFrame(JSON.parse(e.data));
                ws.onclose = () => { addLine('<em>disconnected</em>'); ws = null; };
            } else {
                emit('join', {username: username, room: room});
            }
        }

        function handleFrame(frame) {
            const room = document.getElementById('room').value.trim();
            switch (frame.event) {
            case 'user_joined':
                addLine('<em>' + frame.data + ' joined</em>');
                break;
            case 'user_left':
                addLine('<em>' + frame.data + ' left</em>');
                break;
            case 'update_users':
                document.getElementById('users').textContent = 'Users: ' + frame.data.join(', ');
                break;
            case 'receive_message':
                addLine('<strong>' + frame.data.username + ':</strong> <span>' + frame.data.message + '</span>' +
                    ' <button onclick="editMessage(\'' + frame.data.id + '\')">edit</button>' +
                    ' <button onclick="deleteMessage(\'' + frame.data.id + '\')">delete</button>',
                    frame.data.id);
                break;
            case 'message_edited': {
                const div = log.querySelector('[data-id="' + frame.data.id + '"] span');
                if (div) div.textContent = frame.data.newText;
                break;
            }
            case 'message_deleted': {
                const div = log.querySelector('[data-id="' + frame.data.id + '"]');
                if (div) div.remove();
                break;
            }
            case 'user_typing':
                document.title = frame.data + ' is typing...';
                setTimeout(() => { document.title = 'Nexus Chat Test'; }, 1000);
                break;
            case 'error':
                addLine('<em>error: ' + frame.data.message + '</em>');
                break;
            }
        }

        function sendMessage() {
            const room = document.getElementById('room').value.trim();
            const input = document.getElementById('text');
            if (!input.value) return;
            emit('send_message', {room: room, message: input.value});
            input.value = '';
        }

        function sendTyping() {
            emit('typing', {room: document.getElementById('room').value.trim()});
        }

        function editMessage(id) {
            const text = prompt('New text:');
            if (text === null) return;
            emit('edit_message', {room: document.getElementById('room').value.trim(), id: id, newText: text});
        }

        function deleteMessage(id) {
            emit('delete_message', {room: document.getElementById('room').value.trim(), id: id});
        }

        document.getElementById('text').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
