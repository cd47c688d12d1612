package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "duckdb", "postgres", "sqlserver"
	DisplayName string `json:"display_name"` // "DuckDB", "PostgreSQL"
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
}

// AdapterFactory opens a Backend from a generic config map.
type AdapterFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (Backend, error)

// AdapterRegistration contains info + factory for creating a backend.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory AdapterFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetFactory returns the factory for a backend type.
// Returns nil if type is not registered.
func GetFactory(dsType string) AdapterFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
