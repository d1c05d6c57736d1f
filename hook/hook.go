// Package hook runs user-configured post-processing on a book
// directory after its tags have been written.
package hook

import (
	"context"
	"fmt"
	"sync"
)

// Hook processes the files of a book directory after a successful
// resolution.
type Hook interface {
	ProcessBook(ctx context.Context, paths []string) error
}

var registry = map[string]func(conf string) (Hook, error){}
var registryMu sync.Mutex

// Register adds a hook to the global registry.
func Register[H Hook](name string, hk func(conf string) (H, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		panic(fmt.Errorf("hook %q already registered", name))
	}

	registry[name] = func(conf string) (Hook, error) {
		return hk(conf)
	}
}

// New initialises a hook from the registry with the provided conf.
func New(name string, conf string) (Hook, error) {
	registryMu.Lock()
	newHook, ok := registry[name]
	registryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("hook not found")
	}
	return newHook(conf)
}
