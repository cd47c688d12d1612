package database

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
)

func TestMigrationFiles_Paired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs, "every up migration needs a down migration")

	versions := make([]string, 0, len(ups))
	for v := range ups {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	assert.True(t, strings.HasPrefix(versions[0], "000001_"))
}

func TestNewRedisClient_Disabled(t *testing.T) {
	client, err := NewRedisClient(t.Context(), &config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
