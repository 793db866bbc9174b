package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAssignsPlaceholder(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	device, err := registry.Register("0123456789abcdef")
	req.NoError(err)
	req.Equal("Device-01234567", device.Name)
	req.Equal(PlaceholderPlatform, device.Platform)
	req.False(device.Identified())
	req.False(device.ConnectedAt.IsZero())
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.Register("conn-a")
	req.NoError(err)
	_, err = registry.Register("conn-a")
	req.ErrorIs(err, ErrDuplicateConnection)
	req.Equal(1, registry.Len())
}

// TestRegistry_RegisterThenUnregister verifies that no device leaks when a
// connection leaves right after joining.
func TestRegistry_RegisterThenUnregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, err := registry.Register("conn-a")
	req.NoError(err)
	req.True(registry.Unregister("conn-a"))

	req.Empty(registry.Snapshot())
	req.Zero(registry.Len())
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	_, _ = registry.Register("conn-a")

	req.True(registry.Unregister("conn-a"))
	req.False(registry.Unregister("conn-a"))
	req.False(registry.Unregister("never-seen"))
}

func TestRegistry_Identify(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	_, _ = registry.Register("conn-a")

	device, ok := registry.Identify("conn-a", "Chrome on Windows PC", "Windows PC")
	req.True(ok)
	req.Equal("Chrome on Windows PC", device.Name)
	req.True(device.Identified())

	stored, ok := registry.Lookup("conn-a")
	req.True(ok)
	req.Equal(device, stored)

	// re-identify
	device, ok = registry.Identify("conn-a", "Laptop", "Linux")
	req.True(ok)
	req.Equal("Laptop", device.Name)
}

// TestRegistry_IdentifyUnknownIsNoop verifies the disconnect race: identifying a
// connection that already left changes nothing.
func TestRegistry_IdentifyUnknownIsNoop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	_, ok := registry.Identify("gone", "Phone", "Android")
	req.False(ok)
	req.Empty(registry.Snapshot())
}

func TestRegistry_SnapshotKeepsRegistrationOrder(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		_, err := registry.Register(id)
		req.NoError(err)
	}
	registry.Unregister("c2")
	registry.Identify("c3", "Renamed", "iOS")

	ids := lo.Map(registry.Snapshot(), func(d Device, _ int) string { return d.ConnectionID })
	req.Equal([]string{"c1", "c3", "c4"}, ids)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			_, _ = registry.Register(id)
			registry.Identify(id, "device", "test")
			_ = registry.Snapshot()
			if i%2 == 0 {
				registry.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	req.Equal(25, registry.Len())
	req.Len(registry.Snapshot(), 25)
}
