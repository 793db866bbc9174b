// Package presence tracks which devices are connected to the room.
package presence

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ErrDuplicateConnection is returned when registering an id that is already live.
var ErrDuplicateConnection = errors.New("connection already registered")

// PlaceholderPlatform is the platform tag of a device that has not identified yet.
const PlaceholderPlatform = "unknown"

// Device is the identity a live connection announces to the room.
type Device struct {
	ConnectionID string
	Name         string
	Platform     string
	ConnectedAt  time.Time
}

// Identified reports whether the device has announced a platform of its own.
func (d Device) Identified() bool {
	return d.Platform != PlaceholderPlatform
}

// Registry maps live connection ids to devices and remembers registration order.
// Reads are safe from any goroutine; the hub is the only writer.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Register adds a device with a placeholder identity for the connection.
func (r *Registry) Register(connectionID string) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[connectionID]; exists {
		return Device{}, ErrDuplicateConnection
	}

	device := Device{
		ConnectionID: connectionID,
		Name:         placeholderName(connectionID),
		Platform:     PlaceholderPlatform,
		ConnectedAt:  time.Now().UTC(),
	}
	r.devices[connectionID] = device
	r.order = append(r.order, connectionID)
	return device, nil
}

// Identify updates the display name and platform of a live device. It returns
// false and changes nothing when the connection is unknown.
func (r *Registry) Identify(connectionID, name, platform string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[connectionID]
	if !ok {
		return Device{}, false
	}
	device.Name = name
	device.Platform = platform
	r.devices[connectionID] = device
	return device, true
}

// Unregister removes the device. Removing an unknown id is a no-op that
// returns false.
func (r *Registry) Unregister(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[connectionID]; !ok {
		return false
	}
	delete(r.devices, connectionID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == connectionID })
	return true
}

// Lookup returns the device registered for the connection.
func (r *Registry) Lookup(connectionID string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[connectionID]
	return device, ok
}

// Snapshot returns the live devices in registration order.
func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(id string, _ int) Device { return r.devices[id] })
}

// Len returns the number of live devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

func placeholderName(connectionID string) string {
	short := connectionID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Device-" + short
}
