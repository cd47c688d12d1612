package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// BackendFactory creates backends from the registry.
type BackendFactory interface {
	// Open creates a backend of the given type.
	Open(ctx context.Context, dsType string, config map[string]any) (Backend, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewBackendFactory returns a factory that uses the global registry.
func NewBackendFactory(logger *zap.Logger) BackendFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{logger: logger}
}

func (f *registryFactory) Open(ctx context.Context, dsType string, config map[string]any) (Backend, error) {
	return Open(ctx, dsType, config, f.logger)
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

// Open creates a backend through the global registry.
func Open(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (Backend, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported backend type: %s (not compiled in)", dsType)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return factory(ctx, config, logger.Named(dsType))
}

// Ensure registryFactory implements BackendFactory at compile time.
var _ BackendFactory = (*registryFactory)(nil)
