package vespadet

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// BackendOptions are passed to a BackendFactory
type BackendOptions struct {
	// Threads is the number of CPU threads an interpreter may use
	Threads int
	// Core selects the accelerator core where supported, negative for auto
	Core int
	// Inputs and Outputs declare the tensors of engines that can not read
	// them from the model
	Inputs  []TensorSpec
	Outputs []TensorSpec
	// Recordings are raw output tensor dumps replayed on every invoke
	Recordings [][]byte
	Logger     *zap.Logger
}

// BackendFactory creates a Backend
type BackendFactory func(opts BackendOptions) (Backend, error)

var (
	registryMu sync.Mutex
	registry   = map[string]BackendFactory{}
)

// RegisterBackend makes a Backend available by name.  Engines compiled in
// through build tags register themselves on init.
func RegisterBackend(name string, f BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("backend %q already registered", name))
	}

	registry[name] = f
}

// NewBackend creates the named Backend
func NewBackend(name string, opts BackendOptions) (Backend, error) {
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("backend %q is not available, compiled in backends are %v",
			name, Backends())
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return f(opts)
}

// Backends returns the names of the registered backends
func Backends() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))

	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func init() {
	RegisterBackend("replay", func(opts BackendOptions) (Backend, error) {

		if len(opts.Inputs) == 0 || len(opts.Outputs) == 0 {
			return nil, fmt.Errorf("replay backend needs declared input and output tensors")
		}

		var fn InvokeFunc

		if len(opts.Recordings) > 0 {
			fn = Replay(opts.Recordings...)
		}

		return NewReplayBackend(opts.Inputs, opts.Outputs, fn), nil
	})
}
