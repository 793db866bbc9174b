// Package server implements the HTTP and WebSocket surface of LanShare.
//
// The Hub owns the room (presence and history) and serializes every room event
// on one goroutine. Clients, the upload handler and the health endpoint talk to
// it through its methods. The implementation is organized into specialized files
// for configuration, hub management, clients, wire events, routing, and HTTP
// handlers.
package server
