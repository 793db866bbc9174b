// Package server coordinates client registration, room events, and connection
// cleanup for the LanShare websocket system via the Hub type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/lanshare/internal/session"
	"github.com/Tyrowin/lanshare/internal/transfer"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrUnknownConnection is returned when an operation names a connection
	// that is not (or no longer) registered.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrHubClosed is returned once the hub stopped processing events.
	ErrHubClosed = errors.New("hub is not running")
)

// Hub owns the room and every live client. All mutations of the room and all
// writes to client queues happen on the goroutine running Run, so every client
// observes room events in the same order.
type Hub struct {
	room     *Room
	releaser BlobReleaser
	log      *slog.Logger
	clients  map[string]*Client
	events   chan hubEvent
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	// closedMu orders submissions against the final drain in Run.
	closedMu sync.RWMutex
	closed   bool
}

type hubEvent any

type connectEvent struct{ client *Client }

type disconnectEvent struct{ client *Client }

type identifyEvent struct {
	client   *Client
	name     string
	platform string
}

type textEvent struct {
	client  *Client
	content string
}

type fileEvent struct {
	connectionID string
	blob         transfer.Blob
	reply        chan fileResult
}

type fileResult struct {
	entry session.FileEntry
	err   error
}

type clearEvent struct{ client *Client }

type rosterEvent struct{ client *Client }

type rejectEvent struct {
	client  *Client
	message string
}

// NewHub creates a hub for the room. The releaser is told which blobs to free
// when history is cleared; it may be nil.
func NewHub(room *Room, releaser BlobReleaser, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		room:     room,
		releaser: releaser,
		log:      log,
		clients:  make(map[string]*Client),
		events:   make(chan hubEvent, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Room returns the room served by the hub.
func (h *Hub) Room() *Room {
	return h.room
}

// Serve wraps an upgraded connection in a client, registers it, and starts its
// pumps.
func (h *Hub) Serve(conn *websocket.Conn, addr string, opts ClientOptions) (*Client, error) {
	client := NewClient(conn, h, addr, opts)
	if err := h.Connect(client); err != nil {
		return nil, err
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
	return client, nil
}

// Connect registers the client. It receives welcome, history and roster before
// any later room event.
func (h *Hub) Connect(client *Client) error {
	return h.submit(context.Background(), connectEvent{client: client})
}

// Disconnect unregisters the client. Disconnecting twice is a no-op.
func (h *Hub) Disconnect(client *Client) {
	_ = h.submit(context.Background(), disconnectEvent{client: client})
}

// Identify sets the display identity of the client's device.
func (h *Hub) Identify(client *Client, name, platform string) error {
	return h.submit(context.Background(), identifyEvent{client: client, name: name, platform: platform})
}

// SendText appends a text entry from the client and fans it out.
func (h *Hub) SendText(client *Client, content string) error {
	return h.submit(context.Background(), textEvent{client: client, content: content})
}

// ClearHistory empties the room history and releases the blobs it referenced.
func (h *Hub) ClearHistory(client *Client) error {
	return h.submit(context.Background(), clearEvent{client: client})
}

// RequestRoster sends the current roster to the client only.
func (h *Hub) RequestRoster(client *Client) error {
	return h.submit(context.Background(), rosterEvent{client: client})
}

// Reject sends an error event to the client only.
func (h *Hub) Reject(client *Client, message string) error {
	return h.submit(context.Background(), rejectEvent{client: client, message: message})
}

// AnnounceFile appends a file entry for a stored blob on behalf of the
// connection and fans it out. The context only bounds waiting for the hub to
// accept the event: once accepted, the outcome is always returned so the
// caller never discards a blob that history references.
func (h *Hub) AnnounceFile(ctx context.Context, connectionID string, blob transfer.Blob) (session.FileEntry, error) {
	reply := make(chan fileResult, 1)
	if err := h.submit(ctx, fileEvent{connectionID: connectionID, blob: blob, reply: reply}); err != nil {
		return session.FileEntry{}, err
	}

	select {
	case res := <-reply:
		return res.entry, res.err
	case <-h.done:
		select {
		case res := <-reply:
			return res.entry, res.err
		default:
			return session.FileEntry{}, ErrHubClosed
		}
	}
}

func (h *Hub) submit(ctx context.Context, ev hubEvent) error {
	h.closedMu.RLock()
	defer h.closedMu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}

	select {
	case h.events <- ev:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)
	h.log.Info("Hub started and ready to manage WebSocket connections")

	for {
		select {
		case <-h.ctx.Done():
			h.closedMu.Lock()
			h.closed = true
			h.closedMu.Unlock()

			h.drainPending()
			h.shutdownClients()
			return
		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev hubEvent) {
	switch e := ev.(type) {
	case connectEvent:
		h.handleConnect(e.client)
	case disconnectEvent:
		h.handleDisconnect(e.client)
	case identifyEvent:
		h.handleIdentify(e)
	case textEvent:
		h.handleText(e)
	case fileEvent:
		entry, err := h.handleFile(e)
		e.reply <- fileResult{entry: entry, err: err}
	case clearEvent:
		h.handleClear(e.client)
	case rosterEvent:
		h.handleRoster(e.client)
	case rejectEvent:
		h.handleReject(e)
	default:
		h.log.Error("Unhandled hub event", "type", fmt.Sprintf("%T", ev))
	}
}

// drainPending settles events queued before shutdown: pending clients are
// closed and pending file announcements fail.
func (h *Hub) drainPending() {
	for {
		select {
		case ev := <-h.events:
			switch e := ev.(type) {
			case connectEvent:
				if e.client != nil {
					close(e.client.send)
				}
			case fileEvent:
				e.reply <- fileResult{err: ErrHubClosed}
			}
		default:
			return
		}
	}
}

func (h *Hub) handleConnect(client *Client) {
	if client == nil {
		h.log.Warn("Received nil client registration; skipping")
		return
	}

	device, err := h.room.Presence.Register(client.id)
	if err != nil {
		h.log.Error("Client registration refused", "conn", client.id, "addr", client.addr, "err", err)
		close(client.send)
		return
	}
	h.clients[client.id] = client
	h.log.Info("Client registered", "conn", client.id, "addr", client.addr, "clients", len(h.clients))

	h.deliver(client, EventWelcome, WelcomePayload{Device: toDeviceView(device)})

	history, err := toEntryViews(h.room.History.Snapshot())
	if err != nil {
		h.log.Error("Encoding history failed", "err", err)
		history = []EntryView{}
	}
	h.deliver(client, EventLoadHistory, LoadHistoryPayload{Entries: history})

	h.broadcastRoster()
}

func (h *Hub) handleDisconnect(client *Client) {
	if client == nil || h.clients[client.id] != client {
		return
	}
	h.detach(client)
	h.log.Info("Client unregistered", "conn", client.id, "addr", client.addr, "clients", len(h.clients))
	h.broadcastRoster()
}

func (h *Hub) handleIdentify(e identifyEvent) {
	if !h.isLive(e.client) {
		h.log.Debug("Identify from unknown connection ignored")
		return
	}
	device, ok := h.room.Presence.Identify(e.client.id, e.name, e.platform)
	if !ok {
		return
	}
	h.log.Info("Device identified", "conn", device.ConnectionID, "name", device.Name, "platform", device.Platform)
	h.broadcastRoster()
}

func (h *Hub) handleText(e textEvent) {
	if !h.isLive(e.client) {
		h.log.Debug("Message from unknown connection ignored")
		return
	}
	device, ok := h.room.Presence.Lookup(e.client.id)
	if !ok {
		return
	}

	entry := session.TextEntry{
		ID:        session.EntryID(uuid.NewString()),
		Content:   e.content,
		Sender:    device.Name,
		SenderID:  device.ConnectionID,
		Timestamp: time.Now().UTC(),
	}
	if _, err := h.room.History.Append(entry); err != nil {
		h.log.Warn("Message rejected", "conn", e.client.id, "err", err)
		h.deliver(e.client, EventError, ErrorPayload{Message: "Message could not be stored"})
		return
	}
	h.broadcastEntry(entry)
}

func (h *Hub) handleFile(e fileEvent) (session.FileEntry, error) {
	device, ok := h.room.Presence.Lookup(e.connectionID)
	if !ok {
		return session.FileEntry{}, ErrUnknownConnection
	}

	entry := session.FileEntry{
		ID:        session.EntryID(uuid.NewString()),
		Filename:  e.blob.Filename,
		Size:      e.blob.Size,
		BlobID:    e.blob.ID,
		MimeType:  e.blob.MimeType,
		Category:  e.blob.Category,
		Sender:    device.Name,
		SenderID:  device.ConnectionID,
		Timestamp: time.Now().UTC(),
	}
	if _, err := h.room.History.Append(entry); err != nil {
		return session.FileEntry{}, err
	}
	h.log.Info("File shared", "conn", device.ConnectionID, "file", entry.Filename, "size", entry.Size)
	h.broadcastEntry(entry)
	return entry, nil
}

func (h *Hub) handleClear(client *Client) {
	if !h.isLive(client) {
		h.log.Debug("Clear from unknown connection ignored")
		return
	}

	removed := h.room.History.Clear()
	if ids := session.BlobIDs(removed); len(ids) > 0 && h.releaser != nil {
		h.releaser.Release(ids...)
	}
	h.log.Info("History cleared", "conn", client.id, "entries", len(removed))
	h.broadcast(EventHistoryCleared, nil)
}

func (h *Hub) handleRoster(client *Client) {
	if !h.isLive(client) {
		return
	}
	h.deliver(client, EventUserUpdate, h.roster())
}

func (h *Hub) handleReject(e rejectEvent) {
	if !h.isLive(e.client) {
		return
	}
	h.deliver(e.client, EventError, ErrorPayload{Message: e.message})
}

func (h *Hub) isLive(client *Client) bool {
	return client != nil && h.clients[client.id] == client
}

func (h *Hub) roster() UserUpdatePayload {
	devices := toDeviceViews(h.room.Presence.Snapshot())
	return UserUpdatePayload{Devices: devices, Count: len(devices)}
}

func (h *Hub) broadcastRoster() {
	h.broadcast(EventUserUpdate, h.roster())
}

func (h *Hub) broadcastEntry(entry session.Entry) {
	view, err := toEntryView(entry)
	if err != nil {
		h.log.Error("Encoding entry failed", "err", err)
		return
	}
	h.broadcast(EventNewMessage, NewMessagePayload{Entry: view})
}

// deliver queues one event for a single client.
func (h *Hub) deliver(client *Client, event string, payload any) {
	message, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("Encoding event failed", "event", event, "err", err)
		return
	}
	if !h.enqueue(client, message) {
		h.dropSlow([]*Client{client})
	}
}

// broadcast queues one event for every live client, the sender included.
func (h *Hub) broadcast(event string, payload any) {
	message, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("Encoding event failed", "event", event, "err", err)
		return
	}

	h.log.Debug("Broadcasting event", "event", event, "clients", len(h.clients))

	var slow []*Client
	for _, client := range h.clients {
		if !h.enqueue(client, message) {
			slow = append(slow, client)
		}
	}
	h.dropSlow(slow)
}

func (h *Hub) enqueue(client *Client, message []byte) bool {
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// dropSlow disconnects clients whose queue is full, then tells the others.
func (h *Hub) dropSlow(slow []*Client) {
	removed := 0
	for _, client := range slow {
		if !h.isLive(client) {
			continue
		}
		h.detach(client)
		removed++
		h.log.Warn("Client removed due to full send buffer", "conn", client.id, "addr", client.addr)
	}
	if removed > 0 {
		h.broadcastRoster()
	}
}

func (h *Hub) detach(client *Client) {
	delete(h.clients, client.id)
	h.room.Presence.Unregister(client.id)
	close(client.send)
}

// shutdownClients closes every live client queue; writePump answers with a
// close frame.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	count := len(h.clients)
	for _, client := range h.clients {
		h.detach(client)
	}

	h.log.Info("Closed client connections", "count", count)
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		h.log.Warn("Hub loop did not stop before timeout")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-timer.C:
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
