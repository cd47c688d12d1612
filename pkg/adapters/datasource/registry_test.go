package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type stubBackend struct {
	Backend
	dsType string
	config map[string]any
}

func (s *stubBackend) Type() string { return s.dsType }

func TestRegistry_RegisterAndOpen(t *testing.T) {
	Register(AdapterRegistration{
		Info: AdapterInfo{Type: "stub_test", DisplayName: "Stub", Kind: KindRelational},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (Backend, error) {
			return &stubBackend{dsType: "stub_test", config: config}, nil
		},
	})

	assert.True(t, IsRegistered("stub_test"))
	assert.False(t, IsRegistered("nonexistent"))

	found := false
	for _, info := range RegisteredAdapters() {
		if info.Type == "stub_test" {
			found = true
			assert.Equal(t, KindRelational, info.Kind)
		}
	}
	assert.True(t, found)

	factory := NewBackendFactory(zaptest.NewLogger(t))
	b, err := factory.Open(context.Background(), "stub_test", map[string]any{"host": "h"})
	require.NoError(t, err)
	assert.Equal(t, "stub_test", b.Type())
	assert.Equal(t, "h", b.(*stubBackend).config["host"])
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := Open(context.Background(), "oracle", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported backend type")
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(0))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(-5))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(MaxQueryLimit+1))
	assert.Equal(t, 25, EffectiveLimit(25))
}

func TestColumnStats_Ratios(t *testing.T) {
	s := ColumnStats{RowCount: 200, NonNullCount: 150, DistinctCount: 30}
	assert.InDelta(t, 25.0, s.NullPercentage(), 0.001)
	assert.InDelta(t, 0.2, s.CardinalityRatio(), 0.001)

	empty := ColumnStats{}
	assert.Equal(t, 0.0, empty.NullPercentage())
	assert.Equal(t, 0.0, empty.CardinalityRatio())
}

func TestFormatValue(t *testing.T) {
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	ts := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
	assert.Equal(t, "2024-03-09", FormatValue(day))
	assert.Equal(t, "2024-03-09T14:30:00Z", FormatValue(ts))
	assert.Equal(t, "42", FormatValue(int64(42)))
	assert.Equal(t, "3.5", FormatValue(3.5))
}
