package device

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Options carries driver construction parameters from config.
type Options struct {
	Width          int
	Height         int
	BucketCapacity int
	FrameFormat    FrameFormat
	SnapshotPath   string
	Logger         *slog.Logger
}

// Factory builds a Gateway for a registered driver.
type Factory func(Options) (Gateway, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a driver available to Open. Registering a name twice replaces
// the earlier factory.
func Register(name string, factory Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[name] = factory
	registryMu.Unlock()
}

// Drivers lists registered driver names in sorted order.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open constructs the named driver.
func Open(name string, opts Options) (Gateway, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	factory, ok := registry[key]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDriver, name, strings.Join(Drivers(), ", "))
	}
	gw, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s driver: %w", key, err)
	}
	return gw, nil
}

func init() {
	Register("simulator", func(opts Options) (Gateway, error) {
		return NewSimulator(opts), nil
	})
}
