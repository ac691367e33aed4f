// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

func newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// WebSocketHandler upgrades GET requests to WebSocket connections and hands
// each new connection to the gateway.
func WebSocketHandler(g *Gateway) http.HandlerFunc {
	upgrader := newUpgrader()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		g.Register(NewClient(conn, g, r.RemoteAddr))
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store,omitempty"`
	Connections int    `json:"connections"`
	OnlineUsers int    `json:"onlineUsers"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the gateway occupancy. When the store can be pinged
// an unreachable store turns the response into a 503.
func HealthHandler(g *Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:      "ok",
			Connections: g.ConnectionCount(),
			OnlineUsers: g.OnlineUsers(),
		}
		code := http.StatusOK

		if p, ok := g.store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), currentConfig().StoreTimeout)
			defer cancel()
			resp.Store = "ok"
			if err := p.Ping(ctx); err != nil {
				g.log.Error("store health check failed", "error", err)
				resp.Status, resp.Store = "degraded", "unreachable"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// IndexHandler answers the root path with a plain text banner.
func IndexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Gigboard gateway is running!")
}

// TestPageHandler serves an HTML page for exercising the event protocol by
// hand: announce a user, send direct messages and create gigs.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Gigboard Gateway Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        fieldset { margin: 10px 0; }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Gigboard Gateway Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <button id="connectButton" onclick="toggleConnection()">Connect</button>

    <fieldset>
        <legend>Identity</legend>
        <input type="text" id="userId" placeholder="user id">
        <button onclick="announce()">Announce</button>
    </fieldset>

    <fieldset>
        <legend>Direct message</legend>
        <input type="text" id="recipientId" placeholder="recipient id">
        <input type="text" id="text" placeholder="message">
        <button onclick="sendMessage()">Send</button>
    </fieldset>

    <fieldset>
        <legend>New gig</legend>
        <input type="text" id="title" placeholder="title">
        <input type="text" id="description" placeholder="description">
        <input type="text" id="tags" placeholder="tags, comma separated">
        <input type="text" id="price" placeholder="price">
        <input type="text" id="unit" placeholder="unit">
        <button onclick="createGig()">Create</button>
    </fieldset>

    <div id="events"></div>

    <script>
        let ws = null;
        const eventsDiv = document.getElementById('events');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');
        const value = (id) => document.getElementById(id).value.trim();

        function log(direction, text) {
            const line = document.createElement('div');
            line.style.color = direction === 'out' ? 'blue' : direction === 'in' ? 'green' : 'gray';
            line.textContent = (direction === 'out' ? '> ' : direction === 'in' ? '< ' : '') + text;
            eventsDiv.appendChild(line);
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function emit(type, payload) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                log('info', 'not connected');
                return;
            }
            const frame = JSON.stringify({ type: type, payload: payload });
            ws.send(frame);
            log('out', frame);
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => { log('info', 'connected'); updateStatus(true); };
            ws.onmessage = (event) => log('in', event.data);
            ws.onclose = () => { log('info', 'connection closed'); updateStatus(false); ws = null; };
            ws.onerror = () => log('info', 'connection error');
        }

        function announce() {
            emit('identity-announce', { userId: value('userId') });
        }

        function sendMessage() {
            emit('message-send', {
                senderId: value('userId'),
                recipientId: value('recipientId'),
                text: value('text')
            });
        }

        function createGig() {
            emit('gig-create', {
                ownerId: value('userId'),
                title: value('title'),
                description: value('description'),
                tags: value('tags').split(',').map(t => t.trim()).filter(t => t),
                price: parseFloat(value('price')),
                unit: value('unit')
            });
        }
    </script>
</body>
</html>`
