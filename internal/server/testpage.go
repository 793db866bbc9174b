package server

import (
	"io"
	"net/http"
)

// TestPageHandler serves a minimal HTML console that speaks the room protocol:
// identify, post text, upload a file, and clear history.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>LanShare Test Console</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 320px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; font-family: monospace; font-size: 12px; }
        input[type="text"] { width: 260px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>LanShare Test Console</h1>
    <div id="status" class="status disconnected">Disconnected</div>
    <div>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
        <input type="text" id="nameInput" placeholder="Device name">
        <button onclick="identify()">Identify</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
        <button onclick="send('clear_history')">Clear history</button>
        <button onclick="send('request_roster')">Roster</button>
    </div>
    <div style="margin-top: 10px">
        <input type="file" id="fileInput">
        <button onclick="upload()">Upload</button>
    </div>
    <div id="log"></div>
    <script>
        let ws = null;
        let connectionId = null;
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');

        function addLine(text) {
            const line = document.createElement('div');
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected as ' + connectionId : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function handleEvent(evt) {
            if (evt.event === 'welcome') {
                connectionId = evt.data.device.id;
                updateStatus(true);
            }
            addLine(evt.event + ' ' + JSON.stringify(evt.data || {}));
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onmessage = function(event) {
                event.data.split('\n').forEach(function(raw) { handleEvent(JSON.parse(raw)); });
            };
            ws.onclose = function() {
                addLine('connection closed');
                connectionId = null;
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws) { ws.close(); } else { connect(); }
        }

        function send(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({event: event, data: data || {}}));
            }
        }

        function identify() {
            send('identify', {name: document.getElementById('nameInput').value, platform: navigator.platform || 'web'});
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            if (input.value.trim()) {
                send('send_message', {content: input.value});
                input.value = '';
            }
        }

        function upload() {
            const file = document.getElementById('fileInput').files[0];
            if (!file || !connectionId) { return; }
            const form = new FormData();
            form.append('connection_id', connectionId);
            form.append('size', file.size);
            form.append('file', file);
            fetch('/upload', {method: 'POST', body: form})
                .then(function(res) { return res.json(); })
                .then(function(body) { addLine('upload ' + JSON.stringify(body)); });
        }
    </script>
</body>
</html>`
