package dnn

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// BackendFactory constructs a backend instance.
type BackendFactory func() Backend

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// RegisterBackend registers a backend factory under name.
// It panics if the name is already taken.
func RegisterBackend(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := backends[name]; ok {
		panic("dnn: backend already registered: " + name)
	}
	backends[name] = factory

	logrus.WithFields(logrus.Fields{
		"function": "RegisterBackend",
		"backend":  name,
	}).Debug("Registered inference backend")
}

// Resolve returns a new instance of the backend registered under name.
func Resolve(name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrBackendNotFound, name, strings.Join(Backends(), ", "))
	}
	return factory(), nil
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
